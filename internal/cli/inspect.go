package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/syssam/sqlcore/schema"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <table>...",
		Short: "Print the columns of tables as the resolver sees them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), rootOpts, args, printer{format: rootOpts.Format, w: cmd.OutOrStdout()})
		},
	}
}

// columnInfo is the JSON form of an inspected column.
type columnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Key      bool   `json:"primary_key,omitempty"`
	Identity bool   `json:"identity,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`
}

func runInspect(ctx context.Context, opts *RootOptions, tables []string, out printer) error {
	resolved, err := inspectTables(ctx, opts, tables)
	if err != nil {
		return err
	}
	if out.format == "json" {
		doc := make(map[string][]columnInfo, len(resolved))
		for _, t := range resolved {
			for _, c := range t.Columns() {
				doc[t.Name()] = append(doc[t.Name()], columnInfo{
					Name: c.Physical, Type: c.DBType, Key: c.PrimaryKey, Identity: c.Identity, Nullable: c.Nullable,
				})
			}
		}
		return out.json(doc)
	}
	for _, t := range resolved {
		out.line("%s", t.Name())
		var rows [][]string
		for _, c := range t.Columns() {
			rows = append(rows, []string{
				c.Physical, c.DBType,
				strconv.FormatBool(c.PrimaryKey), strconv.FormatBool(c.Identity), strconv.FormatBool(c.Nullable),
			})
		}
		if err := out.table([]string{"Column", "Type", "Key", "Identity", "Nullable"}, rows); err != nil {
			return err
		}
	}
	return nil
}

// inspectTables resolves tables through the atlas inspector of the
// configured database.
func inspectTables(ctx context.Context, opts *RootOptions, names []string) ([]*schema.Table, error) {
	db, cfg, err := opts.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	insp, err := schema.NewInspector(cfg.Dialect, db)
	if err != nil {
		return nil, err
	}
	r := schema.NewResolver(schema.WithInspector(insp))
	tables := make([]*schema.Table, 0, len(names))
	for _, name := range names {
		t, err := r.ResolveName(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}
