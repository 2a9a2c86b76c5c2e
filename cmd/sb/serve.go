package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/digest"
	"github.com/zulandar/switchboard/internal/realtime"
	"github.com/zulandar/switchboard/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat API, realtime endpoints and digest schedule",
		Long: `Starts the HTTP server: REST chat API, SSE and websocket delivery,
Prometheus metrics. When digest.schedule is set, also posts the
waiting-conversation digest on that schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides http.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.HTTP.Port
	}

	hub := realtime.NewHub()
	mediator, err := newMediator(cfg, gormDB, hub)
	if err != nil {
		return err
	}

	var scheduler *digest.Scheduler
	if cfg.Digest.Schedule != "" {
		if err := digest.ValidateSchedule(cfg.Digest.Schedule); err != nil {
			return err
		}
		notifiers, err := digest.NotifiersFromConfig(cfg.Digest)
		if err != nil {
			return err
		}
		if len(notifiers) == 0 {
			fmt.Fprintln(out, "Digest schedule set but no slack or discord token configured; digest disabled")
		} else if scheduler, err = digest.NewScheduler(mediator, notifiers); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if scheduler != nil {
		go scheduler.Run(ctx, cfg.Digest.Schedule)
		fmt.Fprintf(out, "Digest scheduled %q\n", cfg.Digest.Schedule)
	}

	return server.Start(ctx, server.StartOpts{
		Mediator: mediator,
		Hub:      hub,
		Port:     port,
		Out:      out,
	})
}
