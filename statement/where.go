package statement

import (
	"github.com/syssam/sqlcore"
	"github.com/syssam/sqlcore/condition"
)

// simplify drops match-all children: an empty child is removed from an AND
// group and turns an OR group into match-all. A group left with one child
// is replaced by the child. A nil result matches all rows.
func simplify(n condition.Node) condition.Node {
	g, ok := n.(*condition.Group)
	if !ok {
		return n
	}
	var kept []condition.Node
	for _, c := range g.Children() {
		sc := simplify(c)
		if sc == nil {
			if g.Conjunction() == condition.Or {
				return nil
			}
			continue
		}
		kept = append(kept, sc)
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return condition.NewGroup(g.Conjunction(), kept...)
}

// where writes the WHERE clause of a condition tree, if any.
func (w *writer) where(g *condition.Group) error {
	if g == nil {
		return nil
	}
	// Fields are checked before match-all branches are dropped.
	err := condition.Walk(g, func(l *condition.Leaf) error {
		_, err := w.table.MustColumn(l.Field())
		return err
	})
	if err != nil {
		return err
	}
	n := simplify(g)
	if n == nil {
		return nil
	}
	w.WriteString(" WHERE ")
	w.filtered = true
	return w.node(n, nil)
}

// node writes n depth-first, left to right. A group nested under a group of
// a different conjunction is parenthesized; same-conjunction groups are
// written inline.
func (w *writer) node(n condition.Node, parent *condition.Conjunction) error {
	switch n := n.(type) {
	case *condition.Leaf:
		return w.leaf(n)
	case *condition.Group:
		conj := n.Conjunction()
		paren := parent != nil && *parent != conj
		if paren {
			w.WriteByte('(')
		}
		for i, c := range n.Children() {
			if i > 0 {
				w.WriteString(" " + conj.String() + " ")
			}
			if err := w.node(c, &conj); err != nil {
				return err
			}
		}
		if paren {
			w.WriteByte(')')
		}
	}
	return nil
}

func (w *writer) leaf(l *condition.Leaf) error {
	col, err := w.column(l.Field())
	if err != nil {
		return err
	}
	w.WriteString(col)
	values := l.Values()
	switch op := l.Operator(); op {
	case condition.IsNull, condition.IsNotNull:
		w.WriteString(" " + op.SQL())
	case condition.In, condition.NotIn:
		w.WriteString(" " + op.SQL() + " (")
		for i, v := range values {
			if i > 0 {
				w.WriteString(", ")
			}
			w.bind(v)
		}
		w.WriteByte(')')
	case condition.Between:
		w.WriteString(" BETWEEN ")
		w.bind(values[0])
		w.WriteString(" AND ")
		w.bind(values[1])
	case condition.Like, condition.NotLike:
		w.WriteString(" " + op.SQL() + " ")
		w.bind(values[0])
		w.WriteString(w.dialect.LikeEscape())
	default:
		if !op.Valid() {
			return sqlcore.NewInvalidConditionError(l.Field(), op.String(), "unknown operator")
		}
		w.WriteString(" " + op.SQL() + " ")
		w.bind(values[0])
	}
	return nil
}
