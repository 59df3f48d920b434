package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/syssam/sqlcore/config"
	"github.com/syssam/sqlcore/core"
	"github.com/syssam/sqlcore/engine"
	"github.com/syssam/sqlcore/schema"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	CallOptions
	BatchSize int
	Watch     bool
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a call against a database and print the result",
		Example: `  sqlcore exec -d sqlite --dsn app.db -t users -w '{"field":"name","op":"LIKE","values":["a%"]}'
  sqlcore exec -c sqlcore.yaml -t users --op count
  sqlcore exec -c sqlcore.yaml -t users --op count --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := printer{format: opts.Format, w: cmd.OutOrStdout()}
			if opts.Watch {
				return watchExec(cmd.Context(), opts, out)
			}
			return runExec(cmd.Context(), opts, out)
		},
	}
	opts.CallOptions.register(cmd)
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 0, "rows per statement of insertmany and upsert")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "run again whenever the config file changes, until interrupted")

	return cmd
}

func runExec(ctx context.Context, opts *ExecOptions, out printer) error {
	call, err := opts.call()
	if err != nil {
		return err
	}
	call.BatchSize = opts.BatchSize
	db, cfg, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	insp, err := schema.NewInspector(cfg.Dialect, db)
	if err != nil {
		return err
	}
	c := cfg.Core(engine.DB(cfg.Dialect, db), opts.logger, core.WithResolver(schema.NewResolver(schema.WithInspector(insp))))
	res, err := c.Invoke(cfg.Context(ctx), call)
	if err != nil {
		return err
	}
	return printResult(out, call, res)
}

// watchExec runs the call, then again after each change of the config
// file. Failed runs and invalid configurations are logged and skipped.
func watchExec(ctx context.Context, opts *ExecOptions, out printer) error {
	if opts.Config == "" {
		return errors.New("--watch requires a config file")
	}
	if err := runExec(ctx, opts, out); err != nil {
		opts.logger.ErrorContext(ctx, "exec failed", "error", err)
	}
	return config.Watch(ctx, opts.Config, func(cfg *config.Config, err error) {
		if err != nil {
			opts.logger.WarnContext(ctx, "config reload failed", "path", opts.Config, "error", err)
			return
		}
		opts.merge(cfg)
		opts.logger.InfoContext(ctx, "config reloaded", "path", opts.Config)
		if err := runExec(ctx, opts, out); err != nil {
			opts.logger.ErrorContext(ctx, "exec failed", "error", err)
		}
	})
}

func printResult(out printer, call core.Call, res *core.Result) error {
	switch {
	case out.format == "json" && call.Op.IsAggregate():
		return out.json(map[string]any{"value": res.Scalar})
	case out.format == "json" && call.Op.IsRead():
		rows := make([]map[string]any, len(res.Rows))
		for i, r := range res.Rows {
			rows[i] = r.Map()
		}
		return out.json(rows)
	case out.format == "json":
		return out.json(map[string]any{"affected": res.Affected, "ids": res.IDs})
	case call.Op.IsAggregate():
		out.line("%s", cell(res.Scalar))
		return nil
	case call.Op.IsRead():
		if len(res.Rows) == 0 {
			out.line("(0 rows)")
			return nil
		}
		body := make([][]string, len(res.Rows))
		for i, r := range res.Rows {
			body[i] = make([]string, len(r.Values))
			for j, v := range r.Values {
				body[i][j] = cell(v)
			}
		}
		if err := out.table(res.Rows[0].Columns, body); err != nil {
			return err
		}
		out.line("(%d rows)", len(res.Rows))
		return nil
	}
	out.line("%d rows affected", res.Affected)
	for _, id := range res.IDs {
		out.line("id %s", cell(id))
	}
	return nil
}
