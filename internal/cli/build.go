package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/sqlcore/core"
	"github.com/syssam/sqlcore/engine"
	"github.com/syssam/sqlcore/schema"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	CallOptions
	// Columns defines the table offline as name[:pk][:identity] terms.
	// Without it the table is inspected through the DSN.
	Columns []string
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Print the SQL and parameters of a call",
		Example: `  sqlcore build -d postgres -t users --columns id:pk:identity,name,age \
    -w '{"and":[{"field":"age","op":">=","values":[18]}]}' --order -age --limit 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), opts, printer{format: opts.Format, w: cmd.OutOrStdout()})
		},
	}
	opts.CallOptions.register(cmd)
	cmd.Flags().StringSliceVar(&opts.Columns, "columns", nil, "offline table columns as name[:pk][:identity]")

	return cmd
}

func runBuild(ctx context.Context, opts *BuildOptions, out printer) error {
	call, err := opts.call()
	if err != nil {
		return err
	}
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	resolver := schema.NewResolver()
	handle := engine.DB(cfg.Dialect, nil)
	if len(opts.Columns) > 0 {
		t, err := parseTable(opts.Table, opts.Columns)
		if err != nil {
			return err
		}
		resolver.Register(t)
	} else {
		db, cfg, err := opts.open(ctx)
		if err != nil {
			return fmt.Errorf("%w (or define the table with --columns)", err)
		}
		defer db.Close()
		insp, err := schema.NewInspector(cfg.Dialect, db)
		if err != nil {
			return err
		}
		resolver = schema.NewResolver(schema.WithInspector(insp))
	}
	stmt, err := core.New(core.WithResolver(resolver)).Compile(ctx, withHandle(call, handle))
	if err != nil {
		return err
	}
	if out.format == "json" {
		return out.json(stmt)
	}
	out.line("%s", stmt.SQL)
	if len(stmt.Params) == 0 {
		return nil
	}
	rows := make([][]string, len(stmt.Params))
	for i, p := range stmt.Params {
		rows[i] = []string{p.Name, cell(p.Value), fmt.Sprintf("%T", p.Value)}
	}
	return out.table([]string{"Param", "Value", "Type"}, rows)
}

func withHandle(call core.Call, h *engine.Handle) core.Call {
	call.Handle = h
	return call
}

// parseTable builds a table from name[:pk][:identity] column terms.
func parseTable(name string, terms []string) (*schema.Table, error) {
	cols := make([]schema.Column, 0, len(terms))
	for _, term := range terms {
		parts := strings.Split(term, ":")
		c := schema.Column{Name: parts[0], Physical: parts[0]}
		for _, opt := range parts[1:] {
			switch opt {
			case "pk":
				c.PrimaryKey = true
			case "identity":
				c.Identity = true
			default:
				return nil, fmt.Errorf("column %q: unknown option %q", parts[0], opt)
			}
		}
		cols = append(cols, c)
	}
	return schema.NewTable(name, nil, cols...)
}
