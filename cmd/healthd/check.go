package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/healthreport/config"
	"github.com/jonwraymond/healthreport/health"
)

// errUnhealthy makes the process exit 1 without printing an error.
var errUnhealthy = errors.New("application status is ERROR")

func newCheckCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run every configured check once and print the JSON report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, configPath, nil)
			if err != nil {
				return err
			}

			agg := newAggregator(cfg, nil)
			report := agg.GetStatus(ctx, cfg.BuildChecks())

			body, err := json.MarshalIndent(health.JSONEnvelope{Status: health.NewReportDocument(report)}, "", "  ")
			if err != nil {
				return fmt.Errorf("encode report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))

			if report.ApplicationStatus == health.StatusError {
				return errUnhealthy
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "healthd.yaml", "Path to the checks configuration")
	return cmd
}
