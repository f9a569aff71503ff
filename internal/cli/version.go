package cli

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.stdout, "Blackout %s\n", Version)
			fmt.Fprintf(a.stdout, "Commit: %s\n", Commit)
			fmt.Fprintf(a.stdout, "Built:  %s\n", BuildDate)
			fmt.Fprintf(a.stdout, "Go:     %s\n", runtime.Version())
			return nil
		},
	}
}

func (a *app) healthCheckCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "health-check",
		Short: "Check that a running server answers /health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = fmt.Sprintf("http://localhost:%d/health", a.cfg.Server.Port)
			}

			client := &http.Client{Timeout: 5 * time.Second}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return failed(fmt.Errorf("health check failed: %w", err))
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return failed(fmt.Errorf("health check failed: HTTP %d", resp.StatusCode))
			}
			fmt.Fprintln(a.stdout, "Health check passed")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Health endpoint (default: localhost on the configured port)")
	return cmd
}
