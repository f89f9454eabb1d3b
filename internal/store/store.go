// Package store provides the memory storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/streamkit/memstore/internal/model"
)

var (
	// ErrUnavailable means the backing persistence cannot be reached or is
	// not initialized. Surfaced as-is; retry policy belongs to the caller.
	ErrUnavailable = errors.New("storage unavailable")

	// ErrNotFound is returned by id lookups only. A missing user profile is
	// not an error and is reported as an absent result instead.
	ErrNotFound = errors.New("memory not found")
)

// SearchParams holds parameters for keyword search.
type SearchParams struct {
	Query    string
	Limit    int
	UserName string           // optional filter
	Type     model.MemoryType // optional filter
}

// UpsertProfileParams holds one profile observation to merge.
type UpsertProfileParams struct {
	UserName    string
	ObservedAt  time.Time
	Topics      []string
	Preferences map[string]string
	Notes       []string
}

// Store defines the memory storage interface.
type Store interface {
	// Store validates, persists and indexes an entry, assigning an id and
	// timestamp when absent. The entry is fully stored and indexed, or not
	// stored at all.
	Store(ctx context.Context, e *model.Entry) (string, error)

	// Get retrieves an entry by id and bumps its access tracking.
	Get(ctx context.Context, id string) (*model.Entry, error)

	// Delete removes an entry by id from both table and index.
	Delete(ctx context.Context, id string) error

	// Search returns candidates whose token sets intersect the query,
	// ordered by match count then recency. Access tracking is updated for
	// exactly the returned entries.
	Search(ctx context.Context, p SearchParams) ([]model.Entry, error)

	// Recent returns the newest entries, optionally filtered by type.
	Recent(ctx context.Context, limit int, memoryType model.MemoryType) ([]model.Entry, error)

	// ByUser returns the newest entries associated with a user.
	ByUser(ctx context.Context, userName string, limit int) ([]model.Entry, error)

	// GetUserProfile is an exact-key lookup; (nil, nil) when absent.
	GetUserProfile(ctx context.Context, userName string) (*model.Profile, error)

	// UpsertProfile creates or merges a profile observation. Concurrent
	// upserts for the same user are serialized.
	UpsertProfile(ctx context.Context, p UpsertProfileParams) (*model.Profile, error)

	// Users lists known profiles, most recently seen first.
	Users(ctx context.Context, limit int) ([]model.Profile, error)

	// Stats returns aggregate counts reflecting the current store state.
	Stats(ctx context.Context) (*Stats, error)

	// Close closes the store.
	Close() error
}
