package retrieval

import (
	"sort"
	"time"

	"github.com/streamkit/memstore/internal/keyword"
	"github.com/streamkit/memstore/internal/model"
)

// keywordWeight is the fixed coefficient of the keyword-match term.
const keywordWeight = 0.5

// ScoredEntry pairs a candidate with its relevance score.
type ScoredEntry struct {
	Entry model.Entry `json:"entry"`
	Score float64     `json:"score"`
}

// Rank scores candidates against a query and requesting user, drops those
// below the threshold, and returns the top MaxResults sorted by score
// descending with newer timestamps breaking ties.
//
// Per candidate, each term normalized to [0,1] before weighting:
//
//	score = keyword_match*0.5 + recency*RecencyWeight
//	      + importance*ImportanceWeight + user_bonus*UserContextWeight
//
// The weighted sum is not re-normalized, but the final score is capped at
// 1.0 so the threshold always has a reachable upper bound.
func Rank(query string, candidates []model.Entry, userName string, now time.Time, cfg Config) []ScoredEntry {
	queryTokens := keyword.Tokenize(query, keyword.DefaultMinLength)

	scored := make([]ScoredEntry, 0, len(candidates))
	for _, e := range candidates {
		score := keywordMatch(queryTokens, &e)*keywordWeight +
			recencyScore(now.Sub(e.Timestamp))*cfg.RecencyWeight +
			importanceScore(e.Importance)*cfg.ImportanceWeight +
			userBonus(userName, e.UserName)*cfg.UserContextWeight
		if score > 1.0 {
			score = 1.0
		}

		if score < cfg.RelevanceThreshold {
			continue
		}
		scored = append(scored, ScoredEntry{Entry: e, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Entry.Timestamp.After(scored[j].Entry.Timestamp)
	})

	if cfg.MaxResults > 0 && len(scored) > cfg.MaxResults {
		scored = scored[:cfg.MaxResults]
	}
	return scored
}

// keywordMatch is the fraction of query tokens present in the candidate's
// token set; 0 when the query has no tokens.
func keywordMatch(queryTokens []string, e *model.Entry) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	tokens := e.Keywords
	if len(tokens) == 0 {
		tokens = keyword.Tokenize(e.Content, keyword.DefaultMinLength)
	}
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	matched := 0
	for _, t := range queryTokens {
		if set[t] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// recencyScore buckets elapsed time since creation; the tightest matching
// bucket wins.
func recencyScore(age time.Duration) float64 {
	switch {
	case age <= time.Hour:
		return 1.0
	case age <= 24*time.Hour:
		return 0.8
	case age <= 7*24*time.Hour:
		return 0.5
	case age <= 30*24*time.Hour:
		return 0.3
	default:
		return 0.1
	}
}

func importanceScore(imp model.Importance) float64 {
	switch imp {
	case model.ImportanceCritical:
		return 1.0
	case model.ImportanceHigh:
		return 0.75
	case model.ImportanceMedium:
		return 0.5
	case model.ImportanceLow:
		return 0.25
	default:
		return 0.5
	}
}

func userBonus(requesting, owner string) float64 {
	if requesting != "" && requesting == owner {
		return 1.0
	}
	return 0
}
