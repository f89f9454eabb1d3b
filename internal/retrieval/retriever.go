package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/streamkit/memstore/internal/keyword"
	"github.com/streamkit/memstore/internal/model"
	"github.com/streamkit/memstore/internal/store"
)

const (
	// overFetchFactor widens the candidate pool handed to the scorer so the
	// threshold cut still leaves MaxResults survivors.
	overFetchFactor = 4

	// fallbackScore marks entries returned by the recency fallback when the
	// query carries no indexable tokens. It sits exactly at the default
	// threshold.
	fallbackScore = 0.3

	cacheSize = 256

	maxTopicsPerMessage = 3
)

// Retriever turns a raw query plus user into ranked memories and a prompt
// context block.
type Retriever struct {
	store store.Store
	cfg   Config
	cache *expirable.LRU[string, string]
	log   *log.Logger
}

// New builds a Retriever over a store. The recall cache is created only when
// cfg.CacheTTL is positive.
func New(s store.Store, cfg Config) *Retriever {
	r := &Retriever{
		store: s,
		cfg:   cfg,
		log:   log.With("component", "retriever"),
	}
	if cfg.CacheTTL > 0 {
		r.cache = expirable.NewLRU[string, string](cacheSize, nil, cfg.CacheTTL)
	}
	return r
}

// Retrieve returns the memories most relevant to the query for the given
// user, scored and sorted. A query with no indexable tokens falls back to
// the most recent entries at the threshold score.
func (r *Retriever) Retrieve(ctx context.Context, query, userName string) ([]ScoredEntry, error) {
	now := time.Now().UTC()

	if len(keyword.Tokenize(query, keyword.DefaultMinLength)) == 0 {
		return r.recentFallback(ctx)
	}

	candidates, err := r.store.Search(ctx, store.SearchParams{
		Query: query,
		Limit: r.cfg.MaxResults * overFetchFactor,
	})
	if err != nil {
		return nil, err
	}

	scored := Rank(query, candidates, userName, now, r.cfg)
	r.log.Debug("retrieved memories",
		"query", query, "user", userName,
		"candidates", len(candidates), "returned", len(scored))
	return scored, nil
}

func (r *Retriever) recentFallback(ctx context.Context) ([]ScoredEntry, error) {
	recent, err := r.store.Recent(ctx, r.cfg.MaxResults, "")
	if err != nil {
		return nil, err
	}
	scored := make([]ScoredEntry, 0, len(recent))
	for _, e := range recent {
		scored = append(scored, ScoredEntry{Entry: e, Score: fallbackScore})
	}
	return scored, nil
}

// RetrieveContext assembles the prompt context block for a query and user.
// It never fails: on any store error it logs and returns an empty string so
// the caller's conversation loop keeps going without memory.
func (r *Retriever) RetrieveContext(ctx context.Context, query, userName string) string {
	cacheKey := strings.ToLower(query) + "|" + userName
	if r.cache != nil {
		if block, ok := r.cache.Get(cacheKey); ok {
			return block
		}
	}

	scored, err := r.Retrieve(ctx, query, userName)
	if err != nil {
		r.log.Warn("retrieval degraded, continuing without memory", "err", err)
		return ""
	}

	var profile *model.Profile
	if r.cfg.IncludeUserProfile && userName != "" {
		profile, err = r.store.GetUserProfile(ctx, userName)
		if err != nil {
			r.log.Warn("profile lookup failed, omitting user info", "user", userName, "err", err)
			profile = nil
		}
	}

	block := formatBlock(profile, scored, time.Now().UTC())
	if r.cache != nil {
		r.cache.Add(cacheKey, block)
	}
	return block
}

// Interaction is one user/assistant exchange to be remembered.
type Interaction struct {
	UserName    string
	UserMessage string
	AIResponse  string
	Emotion     string
	Importance  model.Importance
}

// StoreInteraction persists an exchange as a conversation memory and folds
// it into the user's profile, stamping both with the same timestamp. The
// profile update is skipped when the entry itself could not be stored, and a
// failed profile update is returned alongside the stored entry's id.
func (r *Retriever) StoreInteraction(ctx context.Context, in Interaction) (string, error) {
	importance := in.Importance
	if importance == "" {
		importance = model.ImportanceMedium
	}

	entry := &model.Entry{
		Type:       model.TypeConversation,
		Content:    fmt.Sprintf("%s: %s\nAI: %s", in.UserName, in.UserMessage, in.AIResponse),
		UserName:   in.UserName,
		Importance: importance,
		Emotion:    in.Emotion,
		Metadata: map[string]string{
			"user_message":   in.UserMessage,
			"ai_response":    in.AIResponse,
			"interaction_id": uuid.NewString(),
		},
	}

	id, err := r.store.Store(ctx, entry)
	if err != nil {
		return "", err
	}

	if in.UserName != "" {
		_, err = r.store.UpsertProfile(ctx, store.UpsertProfileParams{
			UserName:   in.UserName,
			ObservedAt: entry.Timestamp,
			Topics:     keyword.Topics(in.UserMessage, maxTopicsPerMessage),
		})
		if err != nil {
			r.log.Warn("profile update failed after storing interaction", "user", in.UserName, "err", err)
			return id, err
		}
	}

	return id, nil
}
