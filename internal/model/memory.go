// Package model defines the core memory data types.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MemoryType classifies a memory entry.
type MemoryType string

const (
	TypeConversation MemoryType = "conversation"
	TypeUserInfo     MemoryType = "user_info"
	TypeTopic        MemoryType = "topic"
	TypeFact         MemoryType = "fact"
	TypePreference   MemoryType = "preference"
)

// ValidTypes are the allowed memory types.
var ValidTypes = map[MemoryType]bool{
	TypeConversation: true,
	TypeUserInfo:     true,
	TypeTopic:        true,
	TypeFact:         true,
	TypePreference:   true,
}

// Importance is the ordinal importance level of a memory entry.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// ValidImportances are the allowed importance levels.
var ValidImportances = map[Importance]bool{
	ImportanceLow:      true,
	ImportanceMedium:   true,
	ImportanceHigh:     true,
	ImportanceCritical: true,
}

// ErrInvalidEntry marks a malformed memory entry. Callers can test for it
// with errors.Is; it is a contract violation and never retried.
var ErrInvalidEntry = errors.New("invalid memory entry")

// Entry is a single durable memory record.
type Entry struct {
	ID           string            `json:"id"`
	Type         MemoryType        `json:"memory_type"`
	Content      string            `json:"content"`
	UserName     string            `json:"user_name,omitempty"`
	Keywords     []string          `json:"keywords,omitempty"`
	Importance   Importance        `json:"importance"`
	Emotion      string            `json:"emotion,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
	LastAccessed *time.Time        `json:"last_accessed,omitempty"`
	AccessCount  int               `json:"access_count"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validate checks the entry against the schema invariants: non-empty
// content and closed enumerations. Unknown enum values are rejected, not
// coerced.
func (e *Entry) Validate() error {
	if strings.TrimSpace(e.Content) == "" {
		return fmt.Errorf("%w: content is empty", ErrInvalidEntry)
	}
	if !ValidTypes[e.Type] {
		return fmt.Errorf("%w: unknown memory type %q", ErrInvalidEntry, e.Type)
	}
	if !ValidImportances[e.Importance] {
		return fmt.Errorf("%w: unknown importance %q", ErrInvalidEntry, e.Importance)
	}
	return nil
}

// Profile is the aggregate per-user state accumulated across interactions.
// Created lazily on first interaction, updated in place afterwards; the
// core never deletes it.
type Profile struct {
	UserName         string            `json:"user_name"`
	FirstSeen        time.Time         `json:"first_seen"`
	LastSeen         time.Time         `json:"last_seen"`
	InteractionCount int               `json:"interaction_count"`
	Topics           []string          `json:"topics,omitempty"`
	Preferences      map[string]string `json:"preferences,omitempty"`
	Notes            []string          `json:"notes,omitempty"`
}
