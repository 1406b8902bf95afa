package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trackit/internal/realtime"
	"trackit/pkg/config"
	"trackit/pkg/logger"
)

func watchCmd() *cobra.Command {
	var (
		url       string
		token     string
		projectID int64
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Subscribe to board change signals and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.NewLogger(config.LogConfig{Level: "warn", Development: true})
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			c := &realtime.Client{
				URL:       url,
				Token:     token,
				ProjectID: projectID,
				OnConnect: func() {
					fmt.Fprintf(out, "%s connected to %s\n", time.Now().Format(time.TimeOnly), url)
				},
				OnSignal: func(id int64) {
					fmt.Fprintf(out, "%s board %d changed\n", time.Now().Format(time.TimeOnly), id)
				},
				Logger: log,
			}

			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&url, "server", "s", "http://localhost:5091/kanbanHub", "Board hub endpoint")
	cmd.Flags().StringVarP(&token, "token", "t", "", "Access token")
	cmd.Flags().Int64VarP(&projectID, "project", "p", realtime.AllProjects, "Only print signals for this project")

	return cmd
}
