package repository

import (
	"context"

	"github.com/and161185/playlister/internal/errs"
)

// probeEmail is never a registrable address.
const probeEmail = "readiness-probe@playlister.invalid"

// Probe performs a cheap indexed read. A not-found answer means the backend is reachable.
func Probe(ctx context.Context, users UserRepository) error {
	_, err := users.FindUserByEmail(ctx, probeEmail)
	if err == nil || errs.IsNotFound(err) {
		return nil
	}
	return err
}
