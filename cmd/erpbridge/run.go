package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/farmalink/erpbridge/internal/doctype"
	"github.com/farmalink/erpbridge/internal/domain"
)

var (
	runWave string
	runFile string
)

var runCmd = &cobra.Command{
	Use:   "run [module...]",
	Short: "Run one synchronization pass over the named modules",
	Long: `Run executes one synchronization run: inbox files are validated,
aggregated into documents, persisted to the status ledger, submitted to
the ERP, and exported as reports. Without module arguments every
registered module is processed.

The second wave resubmits only the documents whose recorded status is
retryable, reconciling lot allocations against the ERP first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wave := domain.Wave(runWave)
		if !wave.IsValid() {
			return fmt.Errorf("invalid wave %q, use %q or %q", runWave, domain.WaveFirst, domain.WaveSecond)
		}

		modules := args
		if len(modules) == 0 {
			modules = doctype.Names()
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.runModules(ctx, modules, wave, runFile)
	},
}

func init() {
	runCmd.Flags().StringVar(&runWave, "wave", string(domain.WaveFirst), "submission wave: first or second")
	runCmd.Flags().StringVar(&runFile, "file", "", "process only this file name")
	rootCmd.AddCommand(runCmd)
}
