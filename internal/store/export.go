package store

import (
	"context"

	"github.com/streamkit/memstore/internal/model"
)

// ExportAll returns every entry, oldest first, for an operational dump.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.queryEntries(ctx, "export memories", selectEntry+` ORDER BY timestamp ASC`)
}

// Import stores entries from an export. Ids and timestamps are preserved,
// so re-importing the same dump is idempotent; each entry is re-indexed.
func (s *SQLiteStore) Import(ctx context.Context, entries []model.Entry) (int, error) {
	imported := 0
	for i := range entries {
		e := entries[i]
		if _, err := s.Store(ctx, &e); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}
