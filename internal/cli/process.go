package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/raaihank/blackout/internal/pipeline"
	"github.com/spf13/cobra"
)

func (a *app) processCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "process FILE...",
		Short: "Extract, clean up, redact and export documents",
		Long: "Process runs each file through text extraction (OCR for scans), optional layout cleanup, " +
			"redaction and export to the configured formats. Files are processed concurrently.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDocuments(cmd.Context(), args, (*pipeline.Pipeline).ProcessAll)
		},
	}
}

func (a *app) redactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redact FILE...",
		Short: "Redact existing text, DOCX or PDF files to <name>_redacted.txt",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDocuments(cmd.Context(), args, (*pipeline.Pipeline).RedactAll)
		},
	}
}

type batchRunner func(*pipeline.Pipeline, context.Context, []string) ([]*pipeline.Outcome, []error)

// runDocuments reports one line per file. It fails if any file failed.
func (a *app) runDocuments(ctx context.Context, paths []string, run batchRunner) error {
	svc, err := a.newServices(ctx, a.cfg.Export)
	if err != nil {
		return failed(err)
	}
	defer svc.Close()

	outcomes, errs := run(svc.pipeline, ctx, paths)

	var failures int
	for i, path := range paths {
		if errs[i] != nil {
			failures++
			fmt.Fprintf(a.stderr, "%s: %v\n", path, errs[i])
			continue
		}
		out := outcomes[i]
		fmt.Fprintf(a.stdout, "%s -> %s (labels: %d, patterns: %d)\n",
			path, strings.Join(out.OutputFiles, ", "), out.Result.LabelMatches, out.Result.PatternMatches)
		for _, w := range out.Errors {
			fmt.Fprintf(a.stderr, "%s: warning: %s\n", path, w)
		}
	}

	if failures > 0 {
		return failed(fmt.Errorf("%d of %d files failed", failures, len(paths)))
	}
	return nil
}
