// Package sheet implements the row-set contract shared by every source.
//
// A Sheet owns a set of typed columns, the current row set and the active
// ordering. Sources only provide a load function; the sheet takes care of
// replacing rows atomically, discarding superseded reloads and reapplying
// the ordering after every reload.
package sheet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ColumnType describes how a column's values should be interpreted.
type ColumnType string

const (
	TypeString   ColumnType = "string"
	TypeInt      ColumnType = "int"
	TypeDate     ColumnType = "date"
	TypeDuration ColumnType = "duration"
)

// Column maps a row to one cell value.
//
// Value must return an untyped nil for absent values so that absent cells
// sort and render consistently.
type Column[T any] struct {
	Name  string
	Type  ColumnType
	Value func(T) any
}

// ColumnInfo is the host-facing description of a column.
type ColumnInfo struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// SortKey orders rows by one column.
type SortKey struct {
	Column  string
	Reverse bool
}

// LoadFunc fetches a complete row set.
type LoadFunc[T any] func(ctx context.Context) ([]T, error)

var (
	// ErrSuperseded is returned by Reload when a newer reload started
	// before this one finished. Its rows were discarded.
	ErrSuperseded = errors.New("reload superseded by a newer reload")

	// ErrUnknownColumn is returned when an ordering names a missing column.
	ErrUnknownColumn = errors.New("unknown column")
)

// Sheet is a named, typed row set.
//
// Sheet is safe for concurrent use.
type Sheet[T any] struct {
	name         string
	source       string
	columns      []Column[T]
	defaultOrder []SortKey

	mu         sync.Mutex
	rows       []T
	ordering   []SortKey
	generation uint64
	cancel     context.CancelFunc
}

// New creates an empty sheet.
//
// defaultOrder is applied by Sort when no ordering is active.
func New[T any](name, source string, columns []Column[T], defaultOrder ...SortKey) *Sheet[T] {
	return &Sheet[T]{
		name:         name,
		source:       source,
		columns:      columns,
		defaultOrder: defaultOrder,
	}
}

// Name returns the sheet name.
func (s *Sheet[T]) Name() string { return s.name }

// Source returns the source the sheet was opened from.
func (s *Sheet[T]) Source() string { return s.source }

// Columns describes the sheet's columns in display order.
func (s *Sheet[T]) Columns() []ColumnInfo {
	out := make([]ColumnInfo, len(s.columns))
	for i, c := range s.columns {
		out[i] = ColumnInfo{Name: c.Name, Type: c.Type}
	}
	return out
}

// Column returns the column with the given name.
func (s *Sheet[T]) Column(name string) (Column[T], error) {
	for _, c := range s.columns {
		if c.Name == name {
			return c, nil
		}
	}
	return Column[T]{}, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
}

// Rows returns a copy of the current row set.
func (s *Sheet[T]) Rows() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]T, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the number of rows.
func (s *Sheet[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// Ordering returns the active ordering, if any.
func (s *Sheet[T]) Ordering() []SortKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SortKey(nil), s.ordering...)
}

// OrderBy makes keys the active ordering and sorts the rows.
func (s *Sheet[T]) OrderBy(keys ...SortKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(keys); err != nil {
		return err
	}
	s.ordering = append([]SortKey(nil), keys...)
	return s.sortLocked()
}

// Sort reapplies the active ordering. With no active ordering the default
// ordering becomes active.
func (s *Sheet[T]) Sort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortLocked()
}

// Reload replaces the row set with the result of load.
//
// An in-flight reload of the same sheet is cancelled first. Rows are only
// installed if no newer reload has started; otherwise ErrSuperseded is
// returned. On error the previous rows are left untouched.
func (s *Sheet[T]) Reload(ctx context.Context, load LoadFunc[T]) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.cancel = cancel
	s.mu.Unlock()

	rows, err := load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return err
	}

	s.rows = rows
	return s.sortLocked()
}

// Snapshot materializes every cell of every row at one instant.
func (s *Sheet[T]) Snapshot() *Table {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &Table{
		Name:    s.name,
		Source:  s.source,
		Columns: s.Columns(),
		Rows:    make([][]any, len(s.rows)),
	}
	for i, row := range s.rows {
		cells := make([]any, len(s.columns))
		for j, c := range s.columns {
			cells[j] = c.Value(row)
		}
		t.Rows[i] = cells
	}
	return t
}

func (s *Sheet[T]) validate(keys []SortKey) error {
	for _, k := range keys {
		if _, err := s.Column(k.Column); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sheet[T]) sortLocked() error {
	if len(s.ordering) == 0 {
		if err := s.validate(s.defaultOrder); err != nil {
			return err
		}
		s.ordering = append([]SortKey(nil), s.defaultOrder...)
	}
	if len(s.ordering) == 0 || len(s.rows) < 2 {
		return nil
	}

	accessors := make([]func(T) any, len(s.ordering))
	for i, k := range s.ordering {
		c, err := s.Column(k.Column)
		if err != nil {
			return err
		}
		accessors[i] = c.Value
	}

	// Evaluate sort keys once so time-dependent columns stay consistent.
	type keyed struct {
		row  T
		keys []any
	}
	items := make([]keyed, len(s.rows))
	for i, row := range s.rows {
		keys := make([]any, len(accessors))
		for j, get := range accessors {
			keys[j] = get(row)
		}
		items[i] = keyed{row: row, keys: keys}
	}

	sort.SliceStable(items, func(a, b int) bool {
		for i, k := range s.ordering {
			c := Compare(items[a].keys[i], items[b].keys[i])
			if c == 0 {
				continue
			}
			if k.Reverse {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	for i := range items {
		s.rows[i] = items[i].row
	}
	return nil
}

// Table is a point-in-time rendering of a sheet.
type Table struct {
	Name    string
	Source  string
	Columns []ColumnInfo
	Rows    [][]any
}
