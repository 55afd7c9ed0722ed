package models

import "strconv"

// ShowRow is one show record from a BetaSeries CSV export. The status column
// is the completion percentage: 0 means the show sits on the watchlist, 100
// and above means fully watched, anything else is in progress.
type ShowRow struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Archive   string `json:"archive,omitempty"`
	Episode   string `json:"episode,omitempty"` // last watched episode code, e.g. "S02E05"
	Remaining string `json:"remaining,omitempty"`
	Status    string `json:"status,omitempty"`
	Tags      string `json:"tags,omitempty"`
}

// IsWatchlist reports whether the row belongs on the watchlist rather than
// in watch history. A missing status counts as 0; a status that does not
// parse as a number counts as watched (history).
func (r ShowRow) IsWatchlist() bool {
	status := r.Status
	if status == "" {
		status = "0"
	}
	value, err := strconv.ParseFloat(status, 64)
	if err != nil {
		return false
	}
	return value == 0
}

// MovieRow is one movie record from a BetaSeries CSV export. Status "0"
// means watchlist, "1" means watched; the export emits no other values, and
// rows carrying anything else are excluded from the migration entirely.
type MovieRow struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
	Date   string `json:"date,omitempty"` // watched date, free-form
}

// IsWatchlist reports whether the movie sits on the watchlist.
func (r MovieRow) IsWatchlist() bool {
	return r.Status == "0"
}

// IsWatched reports whether the movie belongs in watch history.
func (r MovieRow) IsWatched() bool {
	return r.Status == "1"
}
