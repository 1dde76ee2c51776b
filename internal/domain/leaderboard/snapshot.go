package leaderboard

import (
	"time"
)

// MaxEntries is the number of rankings a snapshot keeps.
const MaxEntries = 100

// Snapshot is the materialized ranking for one (type, period). It is
// replaced wholesale on every rebuild.
type Snapshot struct {
	Type        Type      `json:"type"`
	Period      Period    `json:"period"`
	Rankings    []Entry   `json:"rankings"`
	LastUpdated time.Time `json:"lastUpdated"`

	byUser map[string]int
}

// NewSnapshot wraps ranked entries.
func NewSnapshot(key Key, rankings []Entry, at time.Time) *Snapshot {
	if rankings == nil {
		rankings = []Entry{}
	}
	return &Snapshot{
		Type:        key.Type,
		Period:      key.Period,
		Rankings:    rankings,
		LastUpdated: at,
	}
}

// Empty returns a snapshot with no rankings and zero LastUpdated, the
// answer for a board that was never built.
func Empty(key Key) *Snapshot {
	return NewSnapshot(key, nil, time.Time{})
}

// Key returns the board key.
func (s *Snapshot) Key() Key { return Key{Type: s.Type, Period: s.Period} }

// Top returns at most limit entries from the head.
func (s *Snapshot) Top(limit int) []Entry {
	if limit <= 0 || limit > len(s.Rankings) {
		limit = len(s.Rankings)
	}
	return append([]Entry(nil), s.Rankings[:limit]...)
}

// Find returns the entry for userID.
func (s *Snapshot) Find(userID string) (Entry, bool) {
	if s.byUser == nil {
		s.byUser = make(map[string]int, len(s.Rankings))
		for i, e := range s.Rankings {
			s.byUser[e.UserID] = i
		}
	}
	i, ok := s.byUser[userID]
	if !ok {
		return Entry{}, false
	}
	return s.Rankings[i], true
}

// UserRank is the answer of a rank lookup.
type UserRank struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// ClampLimit bounds a requested limit to [1, MaxEntries], using def when
// the request is zero or negative.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxEntries {
		limit = MaxEntries
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}
