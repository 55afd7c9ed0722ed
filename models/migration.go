package models

import "betatrakt/services/trakt"

// MigrationProgress is emitted after every processed row, success or not.
// Total is fixed before resolution begins and never changes mid-run.
type MigrationProgress struct {
	Total        int    `json:"total"`
	Completed    int    `json:"completed"`
	CurrentLabel string `json:"currentLabel,omitempty"`
}

// MigrationResult aggregates one completed migration run. History and
// Watchlist are nil when the corresponding batch was empty and never
// submitted. Failures keeps per-row problems in processing order.
type MigrationResult struct {
	RunID     string              `json:"runId"`
	History   *trakt.SyncResponse `json:"history,omitempty"`
	Watchlist *trakt.SyncResponse `json:"watchlist,omitempty"`
	Failures  []string            `json:"failures"`
}
