// Package crypto implements server-side password hashing and verification.
//
// Digests are self-describing strings: argon2id in PHC format, or a standard
// bcrypt digest. Either form verifies regardless of the algorithm chosen for
// new digests.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters (tuned for server-side hashing).
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 2
	argonKeyLen  uint32 = 32
	argonSaltLen        = 16
)

// BcryptCost is the work factor for new bcrypt digests.
const BcryptCost = bcrypt.DefaultCost

var errMalformedDigest = errors.New("malformed digest")

// ErrPasswordTooLong is returned when a password exceeds the bcrypt input limit of 72 bytes.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashArgon2id returns the PHC encoding of an argon2id digest of password
// under a fresh random salt.
func HashArgon2id(password string) (string, error) {
	salt, err := RandBytes(argonSaltLen)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// HashBcrypt returns a bcrypt digest of password.
func HashBcrypt(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword reports whether password matches digest. Unknown or malformed
// digests never match.
func VerifyPassword(password, digest string) bool {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		ok, err := verifyArgon2id(password, digest)
		return err == nil && ok
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	default:
		return false
	}
}

type argonParams struct {
	memory  uint32
	time    uint32
	threads uint8
}

func verifyArgon2id(password, digest string) (bool, error) {
	p, salt, expected, err := decodeArgon2id(digest)
	if err != nil {
		return false, err
	}
	key := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(key, expected) == 1, nil
}

// decodeArgon2id parses $argon2id$v=19$m=..,t=..,p=..$salt$hash. Parameters far
// above ours are refused so a stored digest cannot pin the CPU.
func decodeArgon2id(digest string) (argonParams, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return argonParams{}, nil, nil, errMalformedDigest
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return argonParams{}, nil, nil, errMalformedDigest
	}
	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return argonParams{}, nil, nil, errMalformedDigest
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 ||
		mem > argonMemory*2 || it > argonTime*2 {
		return argonParams{}, nil, nil, errMalformedDigest
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return argonParams{}, nil, nil, errMalformedDigest
	}
	hash, err := b64.DecodeString(parts[5])
	if err != nil || len(hash) < 16 || len(hash) > 128 {
		return argonParams{}, nil, nil, errMalformedDigest
	}
	return argonParams{memory: mem, time: it, threads: uint8(par)}, salt, hash, nil
}
