package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
	"github.com/farmalink/erpbridge/internal/transport"
)

var serveInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler and the ops HTTP API",
	Long: `Serve starts the ops API (health probes, latest-run view, metrics)
and a scheduler that triggers a first-wave pass followed by a
second-wave retry pass over every module on a fixed interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := transport.NewServer(a.logger, a.metrics, a.sqlDB, a.rdb, a.runs)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.logger.Info("ops api listening", zap.Int("port", a.cfg.APIPort))
			return server.Listen(fmt.Sprintf(":%d", a.cfg.APIPort))
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.Shutdown()
		})
		g.Go(func() error {
			return a.schedule(gctx)
		})

		err = g.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// schedule triggers both waves on the configured interval. A run refused
// by the single-run gate is logged and retried on the next tick.
func (a *app) schedule(ctx context.Context) error {
	modules := doctype.Names()
	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		for _, wave := range []domain.Wave{domain.WaveFirst, domain.WaveSecond} {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := a.runModules(ctx, modules, wave, ""); err != nil {
				if errors.Is(err, domain.ErrRunInProgress) {
					a.logger.Warn("run skipped, previous run still in progress")
					continue
				}
				a.logger.Error("scheduled run failed", zap.String("wave", string(wave)), zap.Error(err))
			}
		}
	}
}

func init() {
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 15*time.Minute, "delay between scheduled passes")
	rootCmd.AddCommand(serveCmd)
}
