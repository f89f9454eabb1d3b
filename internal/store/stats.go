package store

import (
	"context"
	"os"
	"time"
)

// Stats holds aggregate store statistics.
type Stats struct {
	DBPath          string         `json:"db_path"`
	DBSizeBytes     int64          `json:"db_size_bytes"`
	TotalEntries    int            `json:"total_entries"`
	TotalUsers      int            `json:"total_users"`
	EntriesByType   map[string]int `json:"entries_by_type"`
	OldestTimestamp *time.Time     `json:"oldest_timestamp,omitempty"`
	NewestTimestamp *time.Time     `json:"newest_timestamp,omitempty"`
	IndexedTokens   int            `json:"indexed_tokens"`
}

// Stats returns aggregates reflecting the store state at the time of the
// call, not a cached snapshot.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	st := &Stats{
		DBPath:        s.path,
		EntriesByType: map[string]int{},
		IndexedTokens: s.idx.TokenCount(),
	}
	if info, err := os.Stat(s.path); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&st.TotalEntries); err != nil {
		return nil, storageErr("stats", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_profiles`).Scan(&st.TotalUsers); err != nil {
		return nil, storageErr("stats", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*) FROM memories GROUP BY memory_type`)
	if err != nil {
		return nil, storageErr("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var memoryType string
		var count int
		if err := rows.Scan(&memoryType, &count); err != nil {
			return nil, storageErr("stats", err)
		}
		st.EntriesByType[memoryType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("stats", err)
	}

	var oldest, newest string
	err = s.db.QueryRowContext(ctx,
		`SELECT MIN(timestamp), MAX(timestamp) FROM memories`).Scan(
		&sqlNullTime{&oldest}, &sqlNullTime{&newest})
	if err != nil {
		return nil, storageErr("stats", err)
	}
	if oldest != "" {
		t, _ := time.Parse(timeLayout, oldest)
		st.OldestTimestamp = &t
	}
	if newest != "" {
		t, _ := time.Parse(timeLayout, newest)
		st.NewestTimestamp = &t
	}

	return st, nil
}

// sqlNullTime scans a nullable timestamp column into a string, leaving it
// empty for NULL.
type sqlNullTime struct{ s *string }

func (n *sqlNullTime) Scan(v interface{}) error {
	switch t := v.(type) {
	case string:
		*n.s = t
	case []byte:
		*n.s = string(t)
	}
	return nil
}
