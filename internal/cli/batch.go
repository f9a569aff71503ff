package cli

import (
	"encoding/json"
	"fmt"

	"github.com/raaihank/blackout/internal/batch"
	"github.com/raaihank/blackout/internal/redact"
	"github.com/spf13/cobra"
)

func (a *app) batchCmd() *cobra.Command {
	var (
		input     string
		output    string
		workers   int
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Redact the text column of a CSV, Parquet or JSON lines dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Batch
			if workers > 0 {
				cfg.Workers = workers
			}
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}

			engine, err := a.newEngine()
			if err != nil {
				return failed(err)
			}
			p := batch.NewProcessor(redact.NewHolder(engine), cfg, a.log.Logger)

			result, err := p.ProcessFile(cmd.Context(), input, output)
			if err != nil {
				return failed(err)
			}

			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return failed(err)
			}
			fmt.Fprintln(a.stdout, string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Input dataset (.csv, .parquet, .jsonl)")
	cmd.Flags().StringVar(&output, "output", "", "Output dataset (.csv, .parquet, .jsonl)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Redaction workers (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records per batch (default from config)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
