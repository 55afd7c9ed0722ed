package migration

import (
	"regexp"
	"strconv"
	"time"

	"betatrakt/models"
	"betatrakt/services/betaseries"
	"betatrakt/services/trakt"
)

// episodeCodePattern matches the BetaSeries last-episode code, e.g. "S02E05".
var episodeCodePattern = regexp.MustCompile(`(?i)S(\d+)E(\d+)`)

type episodeCode struct {
	Season  int
	Episode int
}

// parseEpisodeCode extracts season and episode numbers from a code string.
// Returns false when the code is empty or does not contain the S..E.. shape.
func parseEpisodeCode(code string) (episodeCode, bool) {
	if code == "" {
		return episodeCode{}, false
	}
	match := episodeCodePattern.FindStringSubmatch(code)
	if match == nil {
		return episodeCode{}, false
	}
	season, _ := strconv.Atoi(match[1])
	episode, _ := strconv.Atoi(match[2])
	return episodeCode{Season: season, Episode: episode}, true
}

func buildShowIDs(ids betaseries.ShowIdentifiers) trakt.IDs {
	return trakt.IDs{
		TVDB: ids.TVDBID,
		IMDB: ids.IMDBID,
		Slug: ids.Slug,
	}
}

func buildMovieIDs(ids betaseries.MovieIdentifiers) trakt.IDs {
	return trakt.IDs{
		TMDB: ids.TMDBID,
		IMDB: ids.IMDBID,
	}
}

func entryTitle(resolved, fallback string) string {
	if resolved != "" {
		return resolved
	}
	return fallback
}

// buildShowHistoryEntry converts a watched show row into a history entry.
// A fully watched show (status unparseable or >= 100, or no usable episode
// code) collapses to a single release-dated entry with no season breakdown.
// Otherwise every season up to the last watched one is marked watched at
// release, and only the final season enumerates episodes 1..N explicitly.
// Returns nil when the resolved identifier set is empty.
func buildShowHistoryEntry(row models.ShowRow, ids betaseries.ShowIdentifiers) *trakt.SyncEntry {
	entryIDs := buildShowIDs(ids)
	if entryIDs.IsZero() {
		return nil
	}

	entry := &trakt.SyncEntry{
		Title:     entryTitle(ids.Title, row.Title),
		IDs:       entryIDs,
		WatchedAt: trakt.WatchedAtReleased,
	}

	status := row.Status
	if status == "" {
		status = "0"
	}
	statusValue, err := strconv.ParseFloat(status, 64)
	if err != nil {
		return entry
	}

	last, ok := parseEpisodeCode(row.Episode)
	if statusValue >= 100 || !ok {
		return entry
	}

	seasons := make([]trakt.SyncSeason, 0, last.Season)
	for season := 1; season <= last.Season; season++ {
		seasonEntry := trakt.SyncSeason{
			Number:    season,
			WatchedAt: trakt.WatchedAtReleased,
		}
		if season == last.Season {
			episodes := make([]trakt.SyncEpisode, 0, last.Episode)
			for episode := 1; episode <= last.Episode; episode++ {
				episodes = append(episodes, trakt.SyncEpisode{
					Number:    episode,
					WatchedAt: trakt.WatchedAtReleased,
				})
			}
			seasonEntry.Episodes = episodes
		}
		seasons = append(seasons, seasonEntry)
	}
	entry.Seasons = seasons

	return entry
}

// buildShowWatchlistEntry converts a watchlist show row into a sync entry:
// just title and ids, no watched_at, no season structure. Returns nil when
// the resolved identifier set is empty.
func buildShowWatchlistEntry(row models.ShowRow, ids betaseries.ShowIdentifiers) *trakt.SyncEntry {
	entryIDs := buildShowIDs(ids)
	if entryIDs.IsZero() {
		return nil
	}
	return &trakt.SyncEntry{
		Title: entryTitle(ids.Title, row.Title),
		IDs:   entryIDs,
	}
}

// movieDateLayouts are the accepted shapes of the CSV watched-date column.
var movieDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// parseWatchedDate turns the row's free-form date into an RFC 3339 instant,
// falling back to the release-date sentinel when missing or unparseable.
func parseWatchedDate(date string) string {
	if date == "" {
		return trakt.WatchedAtReleased
	}
	for _, layout := range movieDateLayouts {
		if parsed, err := time.Parse(layout, date); err == nil {
			return parsed.UTC().Format(time.RFC3339)
		}
	}
	return trakt.WatchedAtReleased
}

// buildMovieHistoryEntry converts a watched movie row into a history entry.
// Returns nil when the resolved identifier set is empty.
func buildMovieHistoryEntry(row models.MovieRow, ids betaseries.MovieIdentifiers) *trakt.SyncEntry {
	entryIDs := buildMovieIDs(ids)
	if entryIDs.IsZero() {
		return nil
	}
	return &trakt.SyncEntry{
		Title:     entryTitle(ids.Title, row.Title),
		IDs:       entryIDs,
		WatchedAt: parseWatchedDate(row.Date),
	}
}

// buildMovieWatchlistEntry converts a watchlist movie row into a sync entry.
// Returns nil when the resolved identifier set is empty.
func buildMovieWatchlistEntry(row models.MovieRow, ids betaseries.MovieIdentifiers) *trakt.SyncEntry {
	entryIDs := buildMovieIDs(ids)
	if entryIDs.IsZero() {
		return nil
	}
	return &trakt.SyncEntry{
		Title: entryTitle(ids.Title, row.Title),
		IDs:   entryIDs,
	}
}
