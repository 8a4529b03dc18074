package memos

import (
	"sort"
	"strings"
)

// SearchResult is the raw shape returned by the memory service. Every field
// is optional on the wire; absent lists decode to nil and rank as empty.
type SearchResult struct {
	Memories    []MemoryRecord     `json:"memory_detail_list"`
	Preferences []PreferenceRecord `json:"pref_detail_list"`
}

// MemoryRecord is one retrieved long-term memory entry.
type MemoryRecord struct {
	Key        string   `json:"key"`
	Value      string   `json:"value"`
	Tags       []string `json:"tags,omitempty"`
	Relativity float64  `json:"relativity"`
}

// PreferenceRecord is one inferred user preference.
type PreferenceRecord struct {
	Preference string `json:"preference"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// RankOptions bounds the digest. Zero values fall back to defaults.
type RankOptions struct {
	TopMemories    int
	TopPreferences int
	MaxFieldChars  int
}

const (
	defaultTopMemories    = 5
	defaultTopPreferences = 3
	defaultMaxFieldChars  = 400
)

func (o RankOptions) withDefaults() RankOptions {
	if o.TopMemories <= 0 {
		o.TopMemories = defaultTopMemories
	}
	if o.TopPreferences <= 0 {
		o.TopPreferences = defaultTopPreferences
	}
	if o.MaxFieldChars <= 0 {
		o.MaxFieldChars = defaultMaxFieldChars
	}
	return o
}

// Rank condenses a raw search result into the prompt-ready digest. It is a
// pure function: identical inputs produce identical output. Memories are
// ordered by relativity descending with ties keeping their input order;
// preferences keep service order. Both lists are capped and every text field
// is truncated to the rune budget. An empty result ranks to "".
func Rank(raw SearchResult, opts RankOptions) string {
	opts = opts.withDefaults()

	memories := make([]MemoryRecord, len(raw.Memories))
	copy(memories, raw.Memories)
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].Relativity > memories[j].Relativity
	})
	if len(memories) > opts.TopMemories {
		memories = memories[:opts.TopMemories]
	}

	preferences := raw.Preferences
	if len(preferences) > opts.TopPreferences {
		preferences = preferences[:opts.TopPreferences]
	}

	var sections []string

	if len(memories) > 0 {
		var b strings.Builder
		b.WriteString("Relevant memories:")
		for _, m := range memories {
			b.WriteString("\n- ")
			if key := strings.TrimSpace(m.Key); key != "" {
				b.WriteString(truncate(key, opts.MaxFieldChars))
				b.WriteString(": ")
			}
			b.WriteString(truncate(m.Value, opts.MaxFieldChars))
		}
		sections = append(sections, b.String())
	}

	if len(preferences) > 0 {
		var b strings.Builder
		b.WriteString("User preferences:")
		for _, p := range preferences {
			b.WriteString("\n- ")
			b.WriteString(truncate(p.Preference, opts.MaxFieldChars))
			if reasoning := strings.TrimSpace(p.Reasoning); reasoning != "" {
				b.WriteString(" (")
				b.WriteString(truncate(reasoning, opts.MaxFieldChars))
				b.WriteString(")")
			}
		}
		sections = append(sections, b.String())
	}

	return strings.Join(sections, "\n\n")
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
