package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/streamkit/memstore/internal/model"
)

// lockTable hands out one mutex per user name so profile read-modify-write
// merges are serialized per user without cross-user contention.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (t *lockTable) forKey(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.locks == nil {
		t.locks = make(map[string]*sync.Mutex)
	}
	l, ok := t.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.locks[key] = l
	}
	return l
}

func (s *SQLiteStore) GetUserProfile(ctx context.Context, userName string) (*model.Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT user_name, first_seen, last_seen, interaction_count, topics, preferences, notes
		 FROM user_profiles WHERE user_name = ?`, userName)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		// Unknown user is an absent result, not an error.
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get profile", err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpsertProfile(ctx context.Context, p UpsertProfileParams) (*model.Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.UserName) == "" {
		return nil, fmt.Errorf("%w: user name is empty", model.ErrInvalidEntry)
	}
	observedAt := p.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	lock := s.profileMu.forKey(p.UserName)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.GetUserProfile(ctx, p.UserName)
	if err != nil {
		return nil, err
	}

	var profile model.Profile
	if existing == nil {
		profile = model.Profile{
			UserName:         p.UserName,
			FirstSeen:        observedAt,
			LastSeen:         observedAt,
			InteractionCount: 1,
			Topics:           unionTopics(nil, p.Topics),
			Preferences:      mergePreferences(nil, p.Preferences),
			Notes:            append([]string(nil), p.Notes...),
		}
	} else {
		profile = *existing
		if observedAt.After(profile.LastSeen) {
			profile.LastSeen = observedAt
		}
		profile.InteractionCount++
		profile.Topics = unionTopics(profile.Topics, p.Topics)
		profile.Preferences = mergePreferences(profile.Preferences, p.Preferences)
		profile.Notes = append(profile.Notes, p.Notes...)
	}

	topicsJSON, _ := json.Marshal(profile.Topics)
	prefsJSON, _ := json.Marshal(profile.Preferences)
	notesJSON, _ := json.Marshal(profile.Notes)

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_profiles
		 (user_name, first_seen, last_seen, interaction_count, topics, preferences, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		profile.UserName, profile.FirstSeen.Format(timeLayout), profile.LastSeen.Format(timeLayout),
		profile.InteractionCount, string(topicsJSON), string(prefsJSON), string(notesJSON))
	if err != nil {
		return nil, storageErr("upsert profile", err)
	}

	s.log.Debug("profile updated", "user", profile.UserName, "interactions", profile.InteractionCount)
	return &profile, nil
}

func (s *SQLiteStore) Users(ctx context.Context, limit int) ([]model.Profile, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_name, first_seen, last_seen, interaction_count, topics, preferences, notes
		 FROM user_profiles ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storageErr("list users", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, storageErr("list users", err)
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func scanProfile(row scanner) (model.Profile, error) {
	var p model.Profile
	var firstSeen, lastSeen string
	var topicsJSON, prefsJSON, notesJSON sql.NullString

	err := row.Scan(&p.UserName, &firstSeen, &lastSeen, &p.InteractionCount,
		&topicsJSON, &prefsJSON, &notesJSON)
	if err != nil {
		return p, err
	}

	p.FirstSeen, _ = time.Parse(timeLayout, firstSeen)
	p.LastSeen, _ = time.Parse(timeLayout, lastSeen)
	if topicsJSON.Valid {
		json.Unmarshal([]byte(topicsJSON.String), &p.Topics)
	}
	if prefsJSON.Valid {
		json.Unmarshal([]byte(prefsJSON.String), &p.Preferences)
	}
	if notesJSON.Valid {
		json.Unmarshal([]byte(notesJSON.String), &p.Notes)
	}
	return p, nil
}

// unionTopics appends new topics, collapsing duplicates and keeping the
// existing insertion order.
func unionTopics(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t] = true
	}
	out := existing
	for _, t := range added {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// mergePreferences merges added into existing, last write wins per key.
func mergePreferences(existing, added map[string]string) map[string]string {
	if len(added) == 0 {
		return existing
	}
	if existing == nil {
		existing = make(map[string]string, len(added))
	}
	for k, v := range added {
		existing[k] = v
	}
	return existing
}
