package models

import "time"

// Game is a row of the games registry.
type Game struct {
	ID           string `json:"game_id"`
	Name         string `json:"name"`
	Enabled      bool   `json:"enabled"`
	ForceRefresh bool   `json:"-"`
}

// RefreshState records the outcome of the last fetch cycle for a
// (game, language) pair.
type RefreshState struct {
	Game                 string     `json:"game"`
	Language             string     `json:"language"`
	LastRefreshAt        *time.Time `json:"last_refresh_at"`
	LastRefreshSucceeded bool       `json:"last_refresh_succeeded"`
}
