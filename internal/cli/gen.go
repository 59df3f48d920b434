package cli

import (
	"github.com/spf13/cobra"

	"github.com/syssam/sqlcore/internal/fieldgen"
)

// GenOptions holds flags for the gen command.
type GenOptions struct {
	*RootOptions
	Package string
	Output  string
	Workers int
}

// NewGenCommand creates the gen command.
func NewGenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "gen <table>...",
		Short:   "Generate entity structs and typed predicate fields for tables",
		Example: `  sqlcore gen -d postgres --dsn "$DATABASE_URL" -p models -o ./models users orders`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer{format: opts.Format, w: cmd.OutOrStdout()}
			tables, err := inspectTables(cmd.Context(), opts.RootOptions, args)
			if err != nil {
				return err
			}
			g, err := fieldgen.New(fieldgen.Config{Package: opts.Package, OutDir: opts.Output, Workers: opts.Workers})
			if err != nil {
				return err
			}
			paths, err := g.Generate(cmd.Context(), tables)
			if err != nil {
				return err
			}
			if out.format == "json" {
				return out.json(paths)
			}
			for _, p := range paths {
				out.line("wrote %s", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Package, "package", "p", "models", "package name of the generated files")
	cmd.Flags().StringVarP(&opts.Output, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "files generated in parallel")

	return cmd
}
