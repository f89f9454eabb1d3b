// Package index maintains the inverted keyword index over memory content.
//
// The index is a derived view owned by the store: it can always be rebuilt
// from the entry table and is never authoritative.
package index

import (
	"errors"
	"sync"

	"github.com/streamkit/memstore/internal/keyword"
)

// ErrNoTokens is returned when content normalizes to nothing indexable.
var ErrNoTokens = errors.New("content has no indexable tokens")

// Engine maps normalized tokens to the set of entry ids containing them.
// Safe for concurrent use: writers replace an entry's token set atomically,
// so a concurrent Lookup may miss an entry mid-index but never observes a
// partial token set.
type Engine struct {
	minLength int

	mu      sync.RWMutex
	byToken map[string]map[string]struct{}
	byEntry map[string][]string
}

// NewEngine creates an empty index keeping tokens of at least minLength runes.
func NewEngine(minLength int) *Engine {
	if minLength <= 0 {
		minLength = keyword.DefaultMinLength
	}
	return &Engine{
		minLength: minLength,
		byToken:   make(map[string]map[string]struct{}),
		byEntry:   make(map[string][]string),
	}
}

// Tokenize normalizes content plus any caller-supplied keywords into the
// token set an entry would be indexed under, without touching the index.
// Returns ErrNoTokens when nothing survives normalization.
func (e *Engine) Tokenize(content string, supplied ...string) ([]string, error) {
	tokens := keyword.Tokenize(content, e.minLength)
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		seen[t] = true
	}
	for _, s := range supplied {
		for _, t := range keyword.Tokenize(s, e.minLength) {
			if !seen[t] {
				seen[t] = true
				tokens = append(tokens, t)
			}
		}
	}
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}
	return tokens, nil
}

// QueryTokens normalizes a search query. An empty result is not an error.
func (e *Engine) QueryTokens(query string) []string {
	return keyword.Tokenize(query, e.minLength)
}

// Index registers tokens for an entry id, replacing any prior token set for
// that id. Indexing the same id with unchanged tokens is idempotent.
func (e *Engine) Index(id string, tokens []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeLocked(id)
	for _, t := range tokens {
		ids, ok := e.byToken[t]
		if !ok {
			ids = make(map[string]struct{})
			e.byToken[t] = ids
		}
		ids[id] = struct{}{}
	}
	e.byEntry[id] = tokens
}

// Remove drops an entry from the index. Unknown ids are a no-op.
func (e *Engine) Remove(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeLocked(id)
}

func (e *Engine) removeLocked(id string) {
	for _, t := range e.byEntry[id] {
		delete(e.byToken[t], id)
		if len(e.byToken[t]) == 0 {
			delete(e.byToken, t)
		}
	}
	delete(e.byEntry, id)
}

// Lookup returns the ids whose token sets intersect queryTokens, each with
// the number of matching tokens. No ranking happens here.
func (e *Engine) Lookup(queryTokens []string) map[string]int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matches := make(map[string]int)
	for _, t := range queryTokens {
		for id := range e.byToken[t] {
			matches[id]++
		}
	}
	return matches
}

// TokenCount reports the number of distinct indexed tokens.
func (e *Engine) TokenCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byToken)
}

// EntryCount reports the number of indexed entries.
func (e *Engine) EntryCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byEntry)
}
