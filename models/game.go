package models

import "time"

// Run is the archived summary of a finished run.
type Run struct {
	ID         string    `json:"id"`
	Lobby      int       `json:"lobby"`
	Versus     bool      `json:"versus"`
	Deck       string    `json:"deck"`
	Stake      int       `json:"stake"`
	Seed       string    `json:"seed"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at"`
	UserIDs    []string  `json:"user_ids"`
	Winner     string    `json:"winner,omitempty"`
}
