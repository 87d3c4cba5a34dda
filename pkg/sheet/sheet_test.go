package sheet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	name    string
	size    int
	created *time.Time
}

func ts(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func itemColumns() []Column[item] {
	return []Column[item]{
		{Name: "name", Type: TypeString, Value: func(i item) any { return i.name }},
		{Name: "size", Type: TypeInt, Value: func(i item) any { return i.size }},
		{Name: "created", Type: TypeDate, Value: func(i item) any {
			if i.created == nil {
				return nil
			}
			return *i.created
		}},
	}
}

func names(rows []item) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.name
	}
	return out
}

func staticLoad(rows ...item) LoadFunc[item] {
	return func(context.Context) ([]item, error) {
		return append([]item(nil), rows...), nil
	}
}

func TestColumns(t *testing.T) {
	s := New("items", "test", itemColumns())

	assert.Equal(t, []ColumnInfo{
		{Name: "name", Type: TypeString},
		{Name: "size", Type: TypeInt},
		{Name: "created", Type: TypeDate},
	}, s.Columns())

	_, err := s.Column("missing")
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestReload_AppliesDefaultOrder(t *testing.T) {
	s := New("items", "test", itemColumns(), SortKey{Column: "created", Reverse: true})

	err := s.Reload(context.Background(), staticLoad(
		item{name: "old", created: ts(100)},
		item{name: "never"},
		item{name: "new", created: ts(300)},
		item{name: "mid", created: ts(200)},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "mid", "old", "never"}, names(s.Rows()))
	assert.Equal(t, []SortKey{{Column: "created", Reverse: true}}, s.Ordering())
}

func TestReload_KeepsActiveOrder(t *testing.T) {
	s := New("items", "test", itemColumns(), SortKey{Column: "created", Reverse: true})
	require.NoError(t, s.OrderBy(SortKey{Column: "size"}))

	err := s.Reload(context.Background(), staticLoad(
		item{name: "b", size: 2, created: ts(1)},
		item{name: "c", size: 3, created: ts(3)},
		item{name: "a", size: 1, created: ts(2)},
	))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, names(s.Rows()))
}

func TestOrderBy_MultiKeyStable(t *testing.T) {
	s := New("items", "test", itemColumns())
	require.NoError(t, s.Reload(context.Background(), staticLoad(
		item{name: "x", size: 1, created: ts(5)},
		item{name: "y", size: 2, created: ts(5)},
		item{name: "z", size: 3, created: ts(9)},
	)))

	require.NoError(t, s.OrderBy(SortKey{Column: "created", Reverse: true}, SortKey{Column: "size", Reverse: true}))
	assert.Equal(t, []string{"z", "y", "x"}, names(s.Rows()))

	err := s.OrderBy(SortKey{Column: "nope"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestReload_ErrorKeepsPreviousRows(t *testing.T) {
	s := New("items", "test", itemColumns())
	require.NoError(t, s.Reload(context.Background(), staticLoad(item{name: "kept"})))

	boom := errors.New("boom")
	err := s.Reload(context.Background(), func(context.Context) ([]item, error) {
		return []item{{name: "partial"}}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"kept"}, names(s.Rows()))
}

func TestReload_SupersededDiscardsStaleRows(t *testing.T) {
	s := New("items", "test", itemColumns())

	started := make(chan struct{})
	var wg sync.WaitGroup
	var staleErr error

	wg.Add(1)
	go func() {
		defer wg.Done()
		staleErr = s.Reload(context.Background(), func(ctx context.Context) ([]item, error) {
			close(started)
			<-ctx.Done()
			return []item{{name: "stale"}}, nil
		})
	}()

	<-started
	require.NoError(t, s.Reload(context.Background(), staticLoad(item{name: "fresh"})))
	wg.Wait()

	assert.ErrorIs(t, staleErr, ErrSuperseded)
	assert.Equal(t, []string{"fresh"}, names(s.Rows()))
}

func TestSnapshot(t *testing.T) {
	s := New("items", "src", itemColumns())
	require.NoError(t, s.Reload(context.Background(), staticLoad(item{name: "a", size: 7})))

	tbl := s.Snapshot()
	assert.Equal(t, "items", tbl.Name)
	assert.Equal(t, "src", tbl.Source)
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []any{"a", 7, nil}, tbl.Rows[0])
}

func TestCompare(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"nil equal", nil, nil, 0},
		{"nil first", nil, "a", -1},
		{"nil pointer is absent", (*time.Time)(nil), now, -1},
		{"times", now, now.Add(time.Second), -1},
		{"time pointer", &now, now, 0},
		{"durations", 2 * time.Second, time.Second, 1},
		{"ints of mixed width", int32(3), int64(3), 0},
		{"ints", 10, 9, 1},
		{"strings", "a", "b", -1},
		{"mismatched kinds", "b", 9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}
