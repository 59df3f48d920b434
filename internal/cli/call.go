package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/condition"
	"github.com/syssam/sqlcore/core"
	"github.com/syssam/sqlcore/predicate"
	"github.com/syssam/sqlcore/statement"
)

// CallOptions holds the flags describing one call.
type CallOptions struct {
	Table      string
	Op         string
	Where      string // JSON condition tree
	Rows       string // JSON array of objects
	Fields     []string
	Order      []string // field, or -field for descending
	Qualifiers []string
	Hints      string
	Limit      int
	Offset     int
}

func (o *CallOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Table, "table", "t", "", "target table")
	cmd.Flags().StringVar(&o.Op, "op", "select", "operation (select|count|sum|average|min|max|insert|insertmany|upsert|update|delete)")
	cmd.Flags().StringVarP(&o.Where, "where", "w", "", `JSON condition, e.g. {"and":[{"field":"age","op":">","values":[18]}]}`)
	cmd.Flags().StringVar(&o.Rows, "rows", "", `JSON rows written by insert, upsert and update, e.g. [{"name":"a"}]`)
	cmd.Flags().StringSliceVarP(&o.Fields, "fields", "f", nil, "fields read, aggregated or written")
	cmd.Flags().StringSliceVar(&o.Order, "order", nil, "order terms; prefix a field with - for descending")
	cmd.Flags().StringSliceVar(&o.Qualifiers, "qualifiers", nil, "upsert match fields, the primary key when empty")
	cmd.Flags().StringVar(&o.Hints, "hints", "", "dialect table hint")
	cmd.Flags().IntVar(&o.Limit, "limit", 0, "maximum rows read")
	cmd.Flags().IntVar(&o.Offset, "offset", 0, "rows skipped")
	_ = cmd.MarkFlagRequired("table")
}

// call returns the core call described by the flags.
func (o *CallOptions) call() (core.Call, error) {
	op, err := sqlcore.ParseOp(o.Op)
	if err != nil {
		return core.Call{}, err
	}
	call := core.Call{
		Op:         op,
		Table:      o.Table,
		Fields:     o.Fields,
		Qualifiers: o.Qualifiers,
		Hints:      o.Hints,
		Limit:      o.Limit,
		Offset:     o.Offset,
	}
	if o.Where != "" {
		g, err := condition.ParseJSON([]byte(o.Where))
		if err != nil {
			return call, err
		}
		call.Where = predicate.Tree{Node: g}
	}
	for _, term := range o.Order {
		if field, ok := strings.CutPrefix(term, "-"); ok {
			call.OrderBy = append(call.OrderBy, statement.Desc(field))
		} else {
			call.OrderBy = append(call.OrderBy, statement.Asc(term))
		}
	}
	if o.Rows != "" {
		if call.Rows, err = parseRows(o.Rows); err != nil {
			return call, err
		}
	}
	return call, nil
}

// parseRows decodes JSON rows with integral numbers as int64.
func parseRows(s string) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	for _, row := range rows {
		for k, v := range row {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if i, err := n.Int64(); err == nil {
				row[k] = i
			} else if f, err := n.Float64(); err == nil {
				row[k] = f
			}
		}
	}
	return rows, nil
}
