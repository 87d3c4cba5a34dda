package kvstore

import (
	"context"

	"github.com/3leaps/gosheets/pkg/sheet"
)

// KeyColumn identifies rows in a key-value sheet.
const KeyColumn = "key"

// Entry is one decoded (key, value) pair.
type Entry struct {
	Key   string
	Value string
}

// Load reads every entry from store, decoding both sides with dec.
//
// Store errors are returned; decoding never fails.
func Load(ctx context.Context, store *Store, dec *Decoder) ([]Entry, error) {
	var entries []Entry
	err := store.Each(func(k, v []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		entries = append(entries, Entry{Key: dec.Decode(k), Value: dec.Decode(v)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Columns returns the key-value sheet columns.
func Columns() []sheet.Column[Entry] {
	return []sheet.Column[Entry]{
		{Name: KeyColumn, Type: sheet.TypeString, Value: func(e Entry) any { return e.Key }},
		{Name: "value", Type: sheet.TypeString, Value: func(e Entry) any { return e.Value }},
	}
}

// NewSheet creates an empty key-value sheet named after the database.
//
// Rows keep store order (ascending raw key) until an ordering is applied.
func NewSheet(name, source string) *sheet.Sheet[Entry] {
	return sheet.New(name, source, Columns())
}

// SheetLoad adapts Load to sheet.Sheet.Reload.
func SheetLoad(store *Store, dec *Decoder) sheet.LoadFunc[Entry] {
	return func(ctx context.Context) ([]Entry, error) {
		return Load(ctx, store, dec)
	}
}
