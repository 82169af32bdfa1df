package value

import (
	"database/sql"
	"fmt"
	"strings"
)

// FromRows adapts a query result into a closeable Sequence of Mappings, one
// per row, keyed by column label. A dotted label such as "parent.name"
// places the column in a nested Mapping under "parent"; a plain column with
// the same name as a nested group is shadowed by the group.
//
// Rows are scanned one at a time as the Sequence is consumed; closing the
// Sequence closes rows.
func FromRows(rows *sql.Rows) (*Sequence, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("value: rows columns: %w", err)
	}
	layout := newRowLayout(cols)

	s := NewSequence(func() (Value, bool, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return nil, false, fmt.Errorf("value: rows: %w", err)
			}
			return nil, false, nil
		}
		dest := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, fmt.Errorf("value: rows scan: %w", err)
		}
		return layout.mapping(dest)
	})
	return s.WithCloser(rows.Close), nil
}

// rowNode is one key of a row Mapping: either a column or a nested group.
type rowNode struct {
	key      string
	column   int // -1 for groups
	children []*rowNode
}

type rowLayout struct {
	root []*rowNode
}

func newRowLayout(cols []string) *rowLayout {
	l := &rowLayout{}
	for i, label := range cols {
		l.root = insertColumn(l.root, strings.Split(label, "."), i)
	}
	return l
}

func insertColumn(nodes []*rowNode, path []string, col int) []*rowNode {
	var n *rowNode
	for _, existing := range nodes {
		if existing.key == path[0] {
			n = existing
			break
		}
	}
	if n == nil {
		n = &rowNode{key: path[0], column: -1}
		nodes = append(nodes, n)
	}
	if len(path) == 1 {
		if len(n.children) == 0 {
			n.column = col
		}
		return nodes
	}
	n.column = -1
	n.children = insertColumn(n.children, path[1:], col)
	return nodes
}

func (l *rowLayout) mapping(dest []any) (Value, bool, error) {
	m, err := nodesMapping(l.root, dest)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func nodesMapping(nodes []*rowNode, dest []any) (*Mapping, error) {
	entries := make([]Entry, 0, len(nodes))
	for _, n := range nodes {
		if n.column < 0 {
			child, err := nodesMapping(n.children, dest)
			if err != nil {
				return nil, err
			}
			entries = append(entries, Entry{Key: n.key, Value: child})
			continue
		}
		raw := dest[n.column]
		if b, ok := raw.([]byte); ok {
			// Drivers report TEXT columns as raw bytes.
			raw = string(b)
		}
		v, err := Adapt(raw)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", n.key, err)
		}
		entries = append(entries, Entry{Key: n.key, Value: v})
	}
	return Entries(entries...), nil
}
