package cli

import (
	"fmt"

	"github.com/raaihank/blackout/internal/catalog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// catalogView is the effective catalog as printed by `blackout catalog`
type catalogView struct {
	Fingerprint   string                `yaml:"fingerprint"`
	Glyph         string                `yaml:"glyph"`
	OverlapPolicy string                `yaml:"overlap_policy"`
	Labels        []catalog.Label       `yaml:"labels"`
	Patterns      []catalog.PatternRule `yaml:"patterns"`
	Errors        []string              `yaml:"errors,omitempty"`
}

func (a *app) catalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the effective label and pattern catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.newEngine()
			if err != nil {
				return failed(err)
			}

			view := catalogView{
				Fingerprint:   engine.Fingerprint(),
				Glyph:         string(engine.Glyph()),
				OverlapPolicy: string(engine.Policy()),
				Labels:        engine.Labels().Entries(),
			}
			for _, p := range engine.Patterns().Patterns() {
				view.Patterns = append(view.Patterns, p.Rule)
			}
			for _, e := range engine.Patterns().Errors() {
				view.Errors = append(view.Errors, e.Error())
			}

			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(view); err != nil {
				return failed(fmt.Errorf("failed to print catalog: %w", err))
			}
			return failed(enc.Close())
		},
	}
}
