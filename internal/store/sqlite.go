package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/streamkit/memstore/internal/index"
	"github.com/streamkit/memstore/internal/keyword"
	"github.com/streamkit/memstore/internal/model"
)

const (
	defaultSearchLimit = 10

	// maxSearchCandidates caps how many index matches are hydrated per
	// search, independent of the caller's limit.
	maxSearchCandidates = 200
)

const timeLayout = time.RFC3339Nano

// SQLiteStore implements Store using SQLite, with an in-memory inverted
// index rebuilt from the entry table on open.
type SQLiteStore struct {
	db   *sql.DB
	idx  *index.Engine
	path string
	log  *log.Logger

	profileMu lockTable
}

// NewSQLiteStore opens or creates a SQLite database at the given path and
// rebuilds the keyword index from it.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Single shared connection avoids writer lock contention under
	// concurrent goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:   db,
		idx:  index.NewEngine(keyword.DefaultMinLength),
		path: dbPath,
		log:  log.With("component", "store"),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.rebuildIndex(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("rebuild index: %w", err)
	}

	s.log.Info("memory store opened", "path", dbPath, "indexed", s.idx.EntryCount())
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id            TEXT PRIMARY KEY,
		memory_type   TEXT NOT NULL,
		content       TEXT NOT NULL,
		user_name     TEXT,
		keywords      TEXT,
		importance    TEXT NOT NULL DEFAULT 'medium',
		emotion       TEXT,
		timestamp     TEXT NOT NULL,
		last_accessed TEXT,
		access_count  INTEGER NOT NULL DEFAULT 0,
		metadata      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_name);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
	CREATE INDEX IF NOT EXISTS idx_memories_timestamp ON memories(timestamp DESC);

	CREATE TABLE IF NOT EXISTS user_profiles (
		user_name         TEXT PRIMARY KEY,
		first_seen        TEXT NOT NULL,
		last_seen         TEXT NOT NULL,
		interaction_count INTEGER NOT NULL DEFAULT 0,
		topics            TEXT,
		preferences       TEXT,
		notes             TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// rebuildIndex reconstructs the derived token index from the entry table.
func (s *SQLiteStore) rebuildIndex(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content, keywords FROM memories`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id, content string
		var keywordsJSON sql.NullString
		if err := rows.Scan(&id, &content, &keywordsJSON); err != nil {
			return err
		}
		var supplied []string
		if keywordsJSON.Valid {
			json.Unmarshal([]byte(keywordsJSON.String), &supplied)
		}
		tokens, err := s.idx.Tokenize(content, supplied...)
		if err != nil {
			s.log.Warn("skipping unindexable entry", "id", id)
			continue
		}
		s.idx.Index(id, tokens)
	}
	return rows.Err()
}

func (s *SQLiteStore) ready() error {
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	return nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}

func (s *SQLiteStore) Store(ctx context.Context, e *model.Entry) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	if e.Type == "" {
		e.Type = model.TypeConversation
	}
	if e.Importance == "" {
		e.Importance = model.ImportanceMedium
	}
	if err := e.Validate(); err != nil {
		return "", err
	}

	// Tokenize before touching storage so an unindexable entry is never
	// partially persisted.
	tokens, err := s.idx.Tokenize(e.Content, e.Keywords...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidEntry, err)
	}
	e.Keywords = tokens

	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	keywordsJSON, _ := json.Marshal(e.Keywords)
	var metadataJSON *string
	if len(e.Metadata) > 0 {
		b, _ := json.Marshal(e.Metadata)
		v := string(b)
		metadataJSON = &v
	}

	var lastAccessed *string
	if e.LastAccessed != nil {
		v := e.LastAccessed.Format(timeLayout)
		lastAccessed = &v
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO memories
		 (id, memory_type, content, user_name, keywords, importance, emotion,
		  timestamp, last_accessed, access_count, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), e.Content, nullable(e.UserName), string(keywordsJSON),
		string(e.Importance), nullable(e.Emotion), e.Timestamp.Format(timeLayout),
		lastAccessed, e.AccessCount, metadataJSON)
	if err != nil {
		return "", storageErr("insert memory", err)
	}

	s.idx.Index(e.ID, tokens)
	s.log.Debug("stored memory", "id", e.ID, "type", e.Type, "user", e.UserName)
	return e.ID, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE id = ?`, id)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, storageErr("get memory", err)
	}

	s.touch(ctx, []string{id})
	return &e, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete memory", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.idx.Remove(id)
	return nil
}

func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]model.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	limit := p.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	tokens := s.idx.QueryTokens(p.Query)
	if len(tokens) == 0 {
		return nil, nil
	}

	matches := s.idx.Lookup(tokens)
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	if len(ids) > maxSearchCandidates {
		// ULIDs order lexicographically by creation time, so id descending
		// keeps the newest entries among equal match counts.
		sort.Slice(ids, func(i, j int) bool {
			if matches[ids[i]] != matches[ids[j]] {
				return matches[ids[i]] > matches[ids[j]]
			}
			return ids[i] > ids[j]
		})
		ids = ids[:maxSearchCandidates]
	}

	where := []string{`id IN (` + placeholders(len(ids)) + `)`}
	args := make([]interface{}, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	if p.UserName != "" {
		where = append(where, "user_name = ?")
		args = append(args, p.UserName)
	}
	if p.Type != "" {
		where = append(where, "memory_type = ?")
		args = append(args, string(p.Type))
	}

	rows, err := s.db.QueryContext(ctx, selectEntry+` WHERE `+strings.Join(where, " AND "), args...)
	if err != nil {
		return nil, storageErr("search memories", err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("search memories", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("search memories", err)
	}

	// Match count descending, then newest first as the stable tie-break.
	sort.SliceStable(entries, func(i, j int) bool {
		mi, mj := matches[entries[i].ID], matches[entries[j].ID]
		if mi != mj {
			return mi > mj
		}
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	returned := make([]string, len(entries))
	for i := range entries {
		returned[i] = entries[i].ID
	}
	s.touch(ctx, returned)

	return entries, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int, memoryType model.MemoryType) ([]model.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	query := selectEntry
	args := []interface{}{}
	if memoryType != "" {
		query += ` WHERE memory_type = ?`
		args = append(args, string(memoryType))
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	return s.queryEntries(ctx, "recent memories", query, args...)
}

func (s *SQLiteStore) ByUser(ctx context.Context, userName string, limit int) ([]model.Entry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	return s.queryEntries(ctx, "memories by user",
		selectEntry+` WHERE user_name = ? ORDER BY timestamp DESC LIMIT ?`, userName, limit)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// touch updates access tracking for entries that were actually returned.
// Skipped entirely when the caller has already abandoned the request, so a
// cancelled read leaves no partial state.
func (s *SQLiteStore) touch(ctx context.Context, ids []string) {
	if len(ids) == 0 || ctx.Err() != nil {
		return
	}
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, time.Now().UTC().Format(timeLayout))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ?
		 WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		s.log.Warn("access tracking update failed", "error", err)
	}
}

func (s *SQLiteStore) queryEntries(ctx context.Context, op, query string, args ...interface{}) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	defer rows.Close()

	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr(op, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const selectEntry = `SELECT id, memory_type, content, user_name, keywords, importance,
	emotion, timestamp, last_accessed, access_count, metadata FROM memories`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (model.Entry, error) {
	var e model.Entry
	var userName, keywordsJSON, emotion, lastAccessed, metadataJSON sql.NullString
	var memoryType, importance, timestamp string

	err := row.Scan(
		&e.ID, &memoryType, &e.Content, &userName, &keywordsJSON,
		&importance, &emotion, &timestamp, &lastAccessed, &e.AccessCount, &metadataJSON,
	)
	if err != nil {
		return e, err
	}

	e.Type = model.MemoryType(memoryType)
	e.Importance = model.Importance(importance)
	e.Timestamp, _ = time.Parse(timeLayout, timestamp)
	if userName.Valid {
		e.UserName = userName.String
	}
	if emotion.Valid {
		e.Emotion = emotion.String
	}
	if keywordsJSON.Valid {
		json.Unmarshal([]byte(keywordsJSON.String), &e.Keywords)
	}
	if lastAccessed.Valid {
		t, _ := time.Parse(timeLayout, lastAccessed.String)
		e.LastAccessed = &t
	}
	if metadataJSON.Valid {
		json.Unmarshal([]byte(metadataJSON.String), &e.Metadata)
	}
	return e, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
