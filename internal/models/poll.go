package models

import "time"

// Vote records one identity's choice. At most one vote per identity is
// ever stored for a poll.
type Vote struct {
	UserID      string `json:"userId"`
	OptionIndex int    `json:"optionIndex"`
}

// Poll is a timed, room-scoped question. A poll is active from creation
// until its duration elapses or the host ends it early; expired is
// terminal.
type Poll struct {
	ID                 string    `json:"id"`
	RoomID             string    `json:"roomId"`
	Question           string    `json:"question"`
	Options            []string  `json:"options"`
	Votes              []Vote    `json:"votes"`
	Duration           int       `json:"duration"` // seconds
	CorrectOptionIndex *int      `json:"correctOptionIndex,omitempty"`
	IsActive           bool      `json:"isActive"`
	CreatedAt          time.Time `json:"createdAt"`
}

// Tally aggregates the vote set into per-option counts. Counts are never
// cached; every read recomputes from the votes.
func (p *Poll) Tally() []int {
	results := make([]int, len(p.Options))
	for _, v := range p.Votes {
		if v.OptionIndex >= 0 && v.OptionIndex < len(results) {
			results[v.OptionIndex]++
		}
	}
	return results
}

// Remaining returns how many seconds of the poll are left at the given
// instant, elapsed-adjusted for late joiners. Never negative.
func (p *Poll) Remaining(now time.Time) float64 {
	elapsed := now.Sub(p.CreatedAt).Seconds()
	remaining := float64(p.Duration) - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Expired reports whether the poll's deadline has passed, regardless of
// the persisted IsActive flag. Expiry is derivable from the record alone
// so it survives a relay restart.
func (p *Poll) Expired(now time.Time) bool {
	return !now.Before(p.CreatedAt.Add(time.Duration(p.Duration) * time.Second))
}
