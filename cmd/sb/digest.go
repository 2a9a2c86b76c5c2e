package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/digest"
)

func newDigestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Waiting-conversation digest commands",
	}
	cmd.AddCommand(newDigestRunCmd())
	return cmd
}

func newDigestRunCmd() *cobra.Command {
	var (
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Build the digest now and post it",
		Long:  "Builds the waiting-conversation digest and posts it to every configured platform. With --dry-run, prints it instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDigest(cmd, configPath, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the digest without posting")
	return cmd
}

func runDigest(cmd *cobra.Command, configPath string, dryRun bool) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	m, err := newMediator(cfg, gormDB, discardDelivery)
	if err != nil {
		return err
	}

	if dryRun {
		report, err := digest.Build(cmd.Context(), m, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprint(out, digest.Format(report))
		return nil
	}

	notifiers, err := digest.NotifiersFromConfig(cfg.Digest)
	if err != nil {
		return err
	}
	if len(notifiers) == 0 {
		return fmt.Errorf("digest: no slack or discord token configured")
	}
	s, err := digest.NewScheduler(m, notifiers)
	if err != nil {
		return err
	}
	report, err := s.RunOnce(cmd.Context())
	if err != nil {
		return err
	}
	if len(report.Waiting) == 0 {
		fmt.Fprintf(out, "Nothing waiting across %d conversations; digest not posted\n", report.Total)
		return nil
	}
	fmt.Fprintf(out, "Digest posted: %d of %d conversations waiting\n", len(report.Waiting), report.Total)
	return nil
}
