// Command codecd hosts the codec core as a long-running process: it owns the
// shared worker pool, the reclamation registry, and metric export, and logs
// periodic registry snapshots until asked to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/mosaicav/codeccore/config"
	"github.com/mosaicav/codeccore/core/reclaim"
	"github.com/mosaicav/codeccore/internal/observability"
	"github.com/mosaicav/codeccore/lib/async"
	"github.com/mosaicav/codeccore/lib/telemetry"
)

const (
	daemonLoggerPrefix       = "codecd "
	statusInterval           = 30 * time.Second
	shutdownTimeout          = 30 * time.Second
	workerShutdownTimeout    = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfgPath := parseFlags()
	ctx, cancel := newSignalContext()
	defer cancel()

	logger := newDaemonLogger()
	observability.SetLogger(structuredLogger{logger})

	settings, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	logger.Printf("configuration initialised: workers=%d, saturation=%d, sweep=%s",
		settings.Workers.Count, settings.Saturation.Threshold, settings.Reclaim.SweepInterval)

	_, telemetryShutdown, err := telemetry.Init(ctx, settings.Telemetry)
	if err != nil {
		logger.Fatalf("initialize telemetry: %v", err)
	}
	if settings.Telemetry.OTLPEndpoint != "" {
		logger.Printf("telemetry initialized: endpoint=%s, service=%s",
			settings.Telemetry.OTLPEndpoint, settings.Telemetry.ServiceName)
	} else {
		logger.Print("telemetry disabled")
	}

	workers, err := async.NewPool(settings.Workers.Count, settings.Workers.QueueDepth)
	if err != nil {
		logger.Fatalf("initialise worker pool: %v", err)
	}

	registry := reclaim.NewRegistry(reclaim.Options{
		InactivityThreshold: settings.Reclaim.InactivityThreshold,
		BufferIdleThreshold: settings.Reclaim.BufferIdleThreshold,
	})

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() {
		registry.Run(ctx, settings.Reclaim.SweepInterval)
	})
	lifecycle.Go(func() {
		runStatusLoop(ctx, logger, registry)
	})

	logger.Print("codecd started; awaiting shutdown signal")
	<-ctx.Done()
	logger.Print("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	shutdownStart := time.Now()
	performGracefulShutdown(shutdownCtx, logger, cancel, &lifecycle, workers, telemetryShutdown)
	logger.Printf("shutdown completed in %v", time.Since(shutdownStart))
}

func parseFlags() string {
	cfgPath := flag.String("config", "", fmt.Sprintf("Path to configuration file (default: $%s)", config.EnvConfigPath))
	flag.Parse()
	return *cfgPath
}

func newSignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func newDaemonLogger() *log.Logger {
	return log.New(os.Stdout, daemonLoggerPrefix, log.LstdFlags|log.Lmicroseconds)
}

// runStatusLoop logs a registry snapshot on a fixed cadence so operators can
// see live instance and buffer counts without a metrics backend.
func runStatusLoop(ctx context.Context, logger *log.Logger, registry *reclaim.Registry) {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := registry.Snapshot()
			logger.Printf("status: codecs=%d buffers=%d snapshot=%s",
				len(snap.Codecs), len(snap.Buffers), snap.String())
		}
	}
}

func performGracefulShutdown(ctx context.Context, logger *log.Logger, mainCancel context.CancelFunc, lifecycle *conc.WaitGroup, workers *async.Pool, telemetryShutdown func(context.Context) error) {
	shutdownStep := func(name string, timeout time.Duration, fn func(context.Context) error) {
		stepCtx, stepCancel := context.WithTimeout(ctx, timeout)
		defer stepCancel()
		logger.Printf("shutdown: %s...", name)
		if err := fn(stepCtx); err != nil {
			logger.Printf("shutdown: %s failed: %v", name, err)
		} else {
			logger.Printf("shutdown: %s completed", name)
		}
	}

	logger.Print("shutdown: cancelling main context")
	mainCancel()

	shutdownStep("waiting for lifecycle goroutines", workerShutdownTimeout, func(stepCtx context.Context) error {
		done := make(chan struct{})
		go func() {
			lifecycle.Wait()
			close(done)
		}()
		select {
		case <-done:
			return nil
		case <-stepCtx.Done():
			return fmt.Errorf("timeout waiting for goroutines: %w", stepCtx.Err())
		}
	})

	shutdownStep("draining worker pool", workerShutdownTimeout, func(stepCtx context.Context) error {
		return workers.Shutdown(stepCtx)
	})

	shutdownStep("shutting down telemetry", telemetryShutdownTimeout, telemetryShutdown)
}

// structuredLogger adapts the daemon's stdlib logger to the shared structured
// logging interface.
type structuredLogger struct {
	l *log.Logger
}

func (s structuredLogger) Debug(msg string, fields ...observability.Field) { s.print("DEBUG", msg, fields) }
func (s structuredLogger) Info(msg string, fields ...observability.Field)  { s.print("INFO", msg, fields) }
func (s structuredLogger) Error(msg string, fields ...observability.Field) { s.print("ERROR", msg, fields) }

func (s structuredLogger) print(level, msg string, fields []observability.Field) {
	if len(fields) == 0 {
		s.l.Printf("%s %s", level, msg)
		return
	}
	line := level + " " + msg
	for _, f := range fields {
		line += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	s.l.Print(line)
}
