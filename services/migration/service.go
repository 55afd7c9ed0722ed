package migration

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"betatrakt/models"
	"betatrakt/services/betaseries"
	"betatrakt/services/trakt"
)

var (
	ErrNoRows         = errors.New("no rows to migrate")
	ErrTokensRequired = errors.New("trakt access token is required")
)

// Resolver maps BetaSeries row ids to cross-service identifier sets.
// Implemented by *betaseries.Client.
type Resolver interface {
	ShowIdentifiers(ctx context.Context, showID string) (betaseries.ShowIdentifiers, error)
	MovieIdentifiers(ctx context.Context, movieID string) (betaseries.MovieIdentifiers, error)
}

// Syncer submits assembled payload batches to the target service.
type Syncer interface {
	SyncHistory(ctx context.Context, payload trakt.SyncPayload, accessToken string) (*trakt.SyncResponse, error)
	SyncWatchlist(ctx context.Context, payload trakt.SyncPayload, accessToken string) (*trakt.SyncResponse, error)
}

// ProgressFunc receives a progress update after every processed row.
type ProgressFunc func(models.MigrationProgress)

// Input is everything one migration run needs.
type Input struct {
	Shows       []models.ShowRow
	Movies      []models.MovieRow
	AccessToken string
	OnProgress  ProgressFunc
}

// Service drives the end-to-end migration: partition rows, resolve each one
// against BetaSeries, build sync entries, and submit the two batches.
type Service struct {
	resolver Resolver
	syncer   Syncer
}

// NewService creates a migration service over the given collaborators.
func NewService(resolver Resolver, syncer Syncer) *Service {
	return &Service{resolver: resolver, syncer: syncer}
}

// outcome is the result of processing a single row: either a built entry or
// a human-readable failure. Exactly one of the two fields is set.
type outcome struct {
	entry   *trakt.SyncEntry
	failure string
}

// run tracks mutable state for one migration run.
type run struct {
	id        string
	total     int
	completed int
	failures  []string
	progress  ProgressFunc
}

// advance records one processed row and notifies the caller. Completed can
// never exceed total: every row is counted exactly once.
func (r *run) advance(label string) {
	r.completed++
	if r.progress != nil {
		r.progress(models.MigrationProgress{
			Total:        r.total,
			Completed:    r.completed,
			CurrentLabel: label,
		})
	}
}

func (r *run) collect(out outcome, batch *[]trakt.SyncEntry) {
	if out.entry != nil {
		*batch = append(*batch, *out.entry)
	} else {
		r.failures = append(r.failures, out.failure)
	}
}

// Run executes a full migration and returns the aggregated result. Per-row
// failures are recovered and reported; a failed batch submission aborts the
// run and propagates.
func (s *Service) Run(ctx context.Context, input Input) (models.MigrationResult, error) {
	if input.AccessToken == "" {
		return models.MigrationResult{}, ErrTokensRequired
	}
	if len(input.Shows) == 0 && len(input.Movies) == 0 {
		return models.MigrationResult{}, ErrNoRows
	}

	var showWatchlist, showHistory []models.ShowRow
	for _, row := range input.Shows {
		if row.IsWatchlist() {
			showWatchlist = append(showWatchlist, row)
		} else {
			showHistory = append(showHistory, row)
		}
	}

	// Movie rows with a status other than "0" or "1" are dropped here and do
	// not count toward the progress total.
	var movieWatchlist, movieHistory []models.MovieRow
	for _, row := range input.Movies {
		switch {
		case row.IsWatchlist():
			movieWatchlist = append(movieWatchlist, row)
		case row.IsWatched():
			movieHistory = append(movieHistory, row)
		}
	}

	r := &run{
		id:       uuid.NewString(),
		total:    len(showWatchlist) + len(showHistory) + len(movieWatchlist) + len(movieHistory),
		progress: input.OnProgress,
	}
	log.Printf("migration %s: %d items (%d show watchlist, %d show history, %d movie watchlist, %d movie history)",
		r.id, r.total, len(showWatchlist), len(showHistory), len(movieWatchlist), len(movieHistory))

	watchlistPayload := trakt.SyncPayload{Shows: []trakt.SyncEntry{}, Movies: []trakt.SyncEntry{}}
	historyPayload := trakt.SyncPayload{Shows: []trakt.SyncEntry{}, Movies: []trakt.SyncEntry{}}

	for _, row := range showWatchlist {
		if err := ctx.Err(); err != nil {
			return models.MigrationResult{}, err
		}
		r.collect(s.processShow(ctx, row, buildShowWatchlistEntry), &watchlistPayload.Shows)
		r.advance(row.Title)
	}
	for _, row := range showHistory {
		if err := ctx.Err(); err != nil {
			return models.MigrationResult{}, err
		}
		r.collect(s.processShow(ctx, row, buildShowHistoryEntry), &historyPayload.Shows)
		r.advance(row.Title)
	}
	for _, row := range movieWatchlist {
		if err := ctx.Err(); err != nil {
			return models.MigrationResult{}, err
		}
		r.collect(s.processMovie(ctx, row, buildMovieWatchlistEntry), &watchlistPayload.Movies)
		r.advance(row.Title)
	}
	for _, row := range movieHistory {
		if err := ctx.Err(); err != nil {
			return models.MigrationResult{}, err
		}
		r.collect(s.processMovie(ctx, row, buildMovieHistoryEntry), &historyPayload.Movies)
		r.advance(row.Title)
	}

	result := models.MigrationResult{RunID: r.id, Failures: r.failures}
	if result.Failures == nil {
		result.Failures = []string{}
	}

	if !historyPayload.IsEmpty() {
		resp, err := s.syncer.SyncHistory(ctx, historyPayload, input.AccessToken)
		if err != nil {
			return models.MigrationResult{}, fmt.Errorf("submit history batch: %w", err)
		}
		result.History = resp
	}

	if !watchlistPayload.IsEmpty() {
		resp, err := s.syncer.SyncWatchlist(ctx, watchlistPayload, input.AccessToken)
		if err != nil {
			return models.MigrationResult{}, fmt.Errorf("submit watchlist batch: %w", err)
		}
		result.Watchlist = resp
	}

	log.Printf("migration %s: done, %d failures", r.id, len(result.Failures))
	return result, nil
}

// processShow resolves one show row and builds its entry with the given
// builder. Resolution and build failures become messages, never errors.
func (s *Service) processShow(ctx context.Context, row models.ShowRow, build func(models.ShowRow, betaseries.ShowIdentifiers) *trakt.SyncEntry) outcome {
	ids, err := s.resolver.ShowIdentifiers(ctx, row.ID)
	if err != nil {
		return outcome{failure: fmt.Sprintf("Show %s: %v", row.Title, err)}
	}
	entry := build(row, ids)
	if entry == nil {
		return outcome{failure: fmt.Sprintf("Missing identifiers for show %s (%s)", row.Title, row.ID)}
	}
	return outcome{entry: entry}
}

// processMovie resolves one movie row and builds its entry with the given
// builder.
func (s *Service) processMovie(ctx context.Context, row models.MovieRow, build func(models.MovieRow, betaseries.MovieIdentifiers) *trakt.SyncEntry) outcome {
	ids, err := s.resolver.MovieIdentifiers(ctx, row.ID)
	if err != nil {
		return outcome{failure: fmt.Sprintf("Movie %s: %v", row.Title, err)}
	}
	entry := build(row, ids)
	if entry == nil {
		return outcome{failure: fmt.Sprintf("Missing identifiers for movie %s (%s)", row.Title, row.ID)}
	}
	return outcome{entry: entry}
}
