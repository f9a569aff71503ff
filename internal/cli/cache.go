package cli

import (
	"encoding/json"
	"fmt"

	"github.com/raaihank/blackout/internal/cache"
	"github.com/raaihank/blackout/internal/store"
	"github.com/spf13/cobra"
)

func (a *app) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the Redis result cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Cache.Enabled {
				fmt.Fprintln(a.stdout, "Cache is disabled.")
				return nil
			}
			rc, err := cache.NewRedisCache(a.cfg.Cache, a.log.WithComponent("cache").Logger)
			if err != nil {
				return failed(err)
			}
			defer rc.Close()

			stats, err := rc.Stats(cmd.Context())
			if err != nil {
				return failed(fmt.Errorf("reading cache stats: %w", err))
			}
			return failed(a.printJSON(stats))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Cache.Enabled {
				fmt.Fprintln(a.stdout, "Cache is disabled.")
				return nil
			}
			rc, err := cache.NewRedisCache(a.cfg.Cache, a.log.WithComponent("cache").Logger)
			if err != nil {
				return failed(err)
			}
			defer rc.Close()

			if err := rc.Clear(cmd.Context()); err != nil {
				return failed(fmt.Errorf("clearing cache: %w", err))
			}
			fmt.Fprintln(a.stdout, "Cache cleared.")
			return nil
		},
	})

	return cmd
}

func (a *app) jobsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs from the audit store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Store.Enabled {
				fmt.Fprintln(a.stdout, "Job store is disabled.")
				return nil
			}
			js, err := store.New(cmd.Context(), a.cfg.Store, a.log.WithComponent("store").Logger)
			if err != nil {
				return failed(err)
			}
			defer js.Close()

			jobs, err := js.Recent(cmd.Context(), limit)
			if err != nil {
				return failed(err)
			}
			stats, err := js.Stats(cmd.Context())
			if err != nil {
				return failed(err)
			}
			return failed(a.printJSON(map[string]any{"jobs": jobs, "stats": stats}))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of jobs to list")
	return cmd
}

func (a *app) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, string(data))
	return nil
}
