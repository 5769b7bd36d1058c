// Package grpcserver runs the admin gRPC listener that reports storage readiness
// through the standard health service.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "playlister"

const stopGrace = 5 * time.Second

// ProbeFunc returns nil while the backing storage is usable.
type ProbeFunc func(ctx context.Context) error

// Admin serves grpc.health.v1 with status driven by periodic probes.
type Admin struct {
	server   *grpc.Server
	health   *health.Server
	probe    ProbeFunc
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewAdmin builds the admin server. A nil probe always reports SERVING.
func NewAdmin(probe ProbeFunc, interval time.Duration, log *zap.Logger) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	a := &Admin{server: gs, health: hs, probe: probe, interval: interval, timeout: interval / 2, log: log}
	a.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return a
}

func (a *Admin) set(st healthpb.HealthCheckResponse_ServingStatus) {
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(ServiceName, st)
}

// Check runs one probe and publishes the result.
func (a *Admin) Check(ctx context.Context) bool {
	if a.probe == nil {
		a.set(healthpb.HealthCheckResponse_SERVING)
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := a.probe(ctx); err != nil {
		a.log.Warn("storage probe failed", zap.Error(err))
		a.set(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	a.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Serve probes on an interval and serves on ln until ctx is done.
func (a *Admin) Serve(ctx context.Context, ln net.Listener) error {
	a.Check(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- a.server.Serve(ln) }()
	a.log.Info("admin grpc starting", zap.String("addr", ln.Addr().String()))

	tick := time.NewTicker(a.interval)
	defer tick.Stop()
	for {
		select {
		case err := <-serveErr:
			return err
		case <-tick.C:
			a.Check(ctx)
		case <-ctx.Done():
			a.health.Shutdown()
			a.stop()
			return nil
		}
	}
}

// stop drains in-flight calls; open Watch streams are cut after stopGrace.
func (a *Admin) stop() {
	done := make(chan struct{})
	go func() {
		a.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(stopGrace):
		a.server.Stop()
		<-done
	}
}
