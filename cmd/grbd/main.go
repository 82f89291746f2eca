// Command grbd is the reference host binary: it embeds enginehost.FakeEngine
// in place of a real game process and drives internal/activation the way a
// game engine's main loop would — one Activate call at startup, one Tick per
// frame, one Shutdown at exit. It exists so the bridge can be exercised and
// demoed without a real engine attached.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aesthetic-engine/grb/internal/activation"
	"github.com/aesthetic-engine/grb/internal/enginehost"
	"github.com/aesthetic-engine/grb/internal/grblog"
	"github.com/spf13/cobra"
)

func main() {
	var logLevel string
	var logFile string
	var fps float64

	root := &cobra.Command{
		Use:   "grbd",
		Short: "grbd — reference host for the grb runtime debug bridge",
		Long:  "Runs a fake engine process and activates the grb bridge against it, exactly as a real game host would at startup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := grblog.Init(logLevel, logFile); err != nil {
				return fmt.Errorf("grbd: init logging: %w", err)
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, enginehost.NewFakeEngine(), fps)
		},
	}
	root.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.Flags().StringVar(&logFile, "log-file", "", "additionally tee logs to this file")
	root.Flags().Float64Var(&fps, "fps", 60, "simulated frame rate driving the tick loop")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// run drives one grbd session to completion: activate, tick until ctx is
// cancelled, shut down. Takes the engine and context as parameters so tests
// can supply a short-lived context and inspect the engine afterward.
func run(ctx context.Context, engine *enginehost.FakeEngine, fps float64) error {
	bridge, err := activation.Activate(ctx, engine)
	if err != nil {
		return fmt.Errorf("grbd: activation failed: %w", err)
	}
	if bridge == nil {
		grblog.Log.Info("grb bridge did not activate (gate closed); running engine with no bridge")
		<-ctx.Done()
		return nil
	}

	interval := time.Second / time.Duration(fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			grblog.Log.Info("grbd shutting down")
			return bridge.Shutdown()
		case now := <-ticker.C:
			engine.Tick()
			bridge.Tick(now)
		}
	}
}
