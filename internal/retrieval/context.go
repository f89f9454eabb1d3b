package retrieval

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/streamkit/memstore/internal/model"
)

const maxMemoryLineLength = 200

// formatBlock assembles the final context text: an optional profile summary
// section followed by the ranked memory lines. Empty when there is nothing
// to say.
func formatBlock(profile *model.Profile, scored []ScoredEntry, now time.Time) string {
	var sections []string

	if profile != nil {
		sections = append(sections, formatProfile(profile))
	}
	if len(scored) > 0 {
		lines := make([]string, 0, len(scored)+1)
		lines = append(lines, "[Relevant Memories]")
		for _, se := range scored {
			lines = append(lines, formatMemory(&se.Entry, now))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// formatMemory renders one entry as a single bullet line, truncating long
// content so a handful of memories cannot dominate the prompt. Truncation
// counts runes, not bytes, so multi-byte content is never cut mid-character.
func formatMemory(e *model.Entry, now time.Time) string {
	content := strings.ReplaceAll(e.Content, "\n", " ")
	if runes := []rune(content); len(runes) > maxMemoryLineLength {
		content = string(runes[:maxMemoryLineLength-3]) + "..."
	}
	return fmt.Sprintf("- [%s] %s", timeAgo(now, e.Timestamp), content)
}

// formatProfile renders a compact user summary: interaction count, the
// first few topics and preferences, and the most recent note.
func formatProfile(p *model.Profile) string {
	lines := []string{
		fmt.Sprintf("[User Info: %s]", p.UserName),
		fmt.Sprintf("Interactions: %d", p.InteractionCount),
	}
	if len(p.Topics) > 0 {
		topics := p.Topics
		if len(topics) > 5 {
			topics = topics[:5]
		}
		lines = append(lines, "Topics: "+strings.Join(topics, ", "))
	}
	if len(p.Preferences) > 0 {
		keys := make([]string, 0, len(p.Preferences))
		for k := range p.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > 3 {
			keys = keys[:3]
		}
		prefs := make([]string, 0, len(keys))
		for _, k := range keys {
			prefs = append(prefs, k+": "+p.Preferences[k])
		}
		lines = append(lines, "Preferences: "+strings.Join(prefs, ", "))
	}
	if len(p.Notes) > 0 {
		lines = append(lines, "Notes: "+p.Notes[len(p.Notes)-1])
	}
	return strings.Join(lines, "\n")
}

// timeAgo renders a coarse human-readable age relative to now.
func timeAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("01/02")
	}
}
