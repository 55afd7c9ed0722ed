package migration

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"betatrakt/models"
	"betatrakt/services/betaseries"
	"betatrakt/services/trakt"
)

type fakeResolver struct {
	shows      map[string]betaseries.ShowIdentifiers
	movies     map[string]betaseries.MovieIdentifiers
	failShows  map[string]error
	failMovies map[string]error
	calls      []string
}

func (f *fakeResolver) ShowIdentifiers(_ context.Context, id string) (betaseries.ShowIdentifiers, error) {
	f.calls = append(f.calls, "show:"+id)
	if err, ok := f.failShows[id]; ok {
		return betaseries.ShowIdentifiers{}, err
	}
	return f.shows[id], nil
}

func (f *fakeResolver) MovieIdentifiers(_ context.Context, id string) (betaseries.MovieIdentifiers, error) {
	f.calls = append(f.calls, "movie:"+id)
	if err, ok := f.failMovies[id]; ok {
		return betaseries.MovieIdentifiers{}, err
	}
	return f.movies[id], nil
}

type fakeSyncer struct {
	historyCalls   []trakt.SyncPayload
	watchlistCalls []trakt.SyncPayload
	historyErr     error
	watchlistErr   error
}

func (f *fakeSyncer) SyncHistory(_ context.Context, payload trakt.SyncPayload, _ string) (*trakt.SyncResponse, error) {
	f.historyCalls = append(f.historyCalls, payload)
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return &trakt.SyncResponse{Added: &trakt.SyncCounts{Shows: len(payload.Shows), Movies: len(payload.Movies)}}, nil
}

func (f *fakeSyncer) SyncWatchlist(_ context.Context, payload trakt.SyncPayload, _ string) (*trakt.SyncResponse, error) {
	f.watchlistCalls = append(f.watchlistCalls, payload)
	if f.watchlistErr != nil {
		return nil, f.watchlistErr
	}
	return &trakt.SyncResponse{Added: &trakt.SyncCounts{Shows: len(payload.Shows), Movies: len(payload.Movies)}}, nil
}

func TestRunEndToEnd(t *testing.T) {
	resolver := &fakeResolver{
		shows: map[string]betaseries.ShowIdentifiers{
			"s1": {ID: 1, Title: "Watchlist Show", TVDBID: 11},
			"s2": {ID: 2, Title: "Watched Show", TVDBID: 22},
		},
		movies: map[string]betaseries.MovieIdentifiers{
			"m1": {ID: 3, Title: "Watchlist Movie", TMDBID: 33},
		},
	}
	syncer := &fakeSyncer{}
	svc := NewService(resolver, syncer)

	var updates []models.MigrationProgress
	result, err := svc.Run(context.Background(), Input{
		Shows: []models.ShowRow{
			{ID: "s1", Title: "Watchlist Show", Status: "0"},
			{ID: "s2", Title: "Watched Show", Status: "100", Episode: "S03E01"},
		},
		Movies: []models.MovieRow{
			{ID: "m1", Title: "Watchlist Movie", Status: "0"},
		},
		AccessToken: "access",
		OnProgress: func(p models.MigrationProgress) {
			updates = append(updates, p)
		},
	})
	require.NoError(t, err)

	require.Empty(t, result.Failures)
	require.NotEmpty(t, result.RunID)

	require.Len(t, syncer.watchlistCalls, 1)
	require.Len(t, syncer.watchlistCalls[0].Shows, 1)
	require.Len(t, syncer.watchlistCalls[0].Movies, 1)

	require.Len(t, syncer.historyCalls, 1)
	require.Len(t, syncer.historyCalls[0].Shows, 1)
	require.Empty(t, syncer.historyCalls[0].Movies)
	require.Nil(t, syncer.historyCalls[0].Shows[0].Seasons) // status 100: no breakdown

	require.Len(t, updates, 3)
	final := updates[len(updates)-1]
	require.Equal(t, 3, final.Total)
	require.Equal(t, 3, final.Completed)
	for _, update := range updates {
		require.LessOrEqual(t, update.Completed, update.Total)
	}
}

func TestRunRecoversPerRowFailures(t *testing.T) {
	resolver := &fakeResolver{
		shows: map[string]betaseries.ShowIdentifiers{
			"ok": {ID: 1, Title: "Fine Show", TVDBID: 11},
		},
		failShows: map[string]error{
			"boom": &betaseries.RequestError{Status: 500, Body: "upstream down"},
		},
	}
	syncer := &fakeSyncer{}
	svc := NewService(resolver, syncer)

	var updates []models.MigrationProgress
	result, err := svc.Run(context.Background(), Input{
		Shows: []models.ShowRow{
			{ID: "boom", Title: "Broken Show", Status: "100"},
			{ID: "ok", Title: "Fine Show", Status: "100"},
		},
		AccessToken: "access",
		OnProgress: func(p models.MigrationProgress) {
			updates = append(updates, p)
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	require.Contains(t, result.Failures[0], "Broken Show")
	require.Contains(t, result.Failures[0], "500")

	// The run still completes and submits what it could build.
	require.Len(t, syncer.historyCalls, 1)
	require.Len(t, syncer.historyCalls[0].Shows, 1)

	require.Equal(t, 2, updates[len(updates)-1].Completed)
	require.Equal(t, 2, updates[len(updates)-1].Total)
}

func TestRunReportsMissingIdentifiers(t *testing.T) {
	resolver := &fakeResolver{
		shows: map[string]betaseries.ShowIdentifiers{
			"noids": {ID: 1, Title: "Orphan Show"}, // no external ids at all
		},
	}
	syncer := &fakeSyncer{}
	svc := NewService(resolver, syncer)

	result, err := svc.Run(context.Background(), Input{
		Shows:       []models.ShowRow{{ID: "noids", Title: "Orphan Show", Status: "0"}},
		AccessToken: "access",
	})
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	require.Equal(t, "Missing identifiers for show Orphan Show (noids)", result.Failures[0])
	require.Empty(t, syncer.watchlistCalls)
	require.Empty(t, syncer.historyCalls)
	require.Nil(t, result.Watchlist)
	require.Nil(t, result.History)
}

func TestRunDropsUnknownMovieStatuses(t *testing.T) {
	resolver := &fakeResolver{
		movies: map[string]betaseries.MovieIdentifiers{
			"m1": {ID: 1, Title: "Kept Movie", TMDBID: 5},
		},
	}
	syncer := &fakeSyncer{}
	svc := NewService(resolver, syncer)

	var total int
	_, err := svc.Run(context.Background(), Input{
		Movies: []models.MovieRow{
			{ID: "m1", Title: "Kept Movie", Status: "1"},
			{ID: "m2", Title: "Odd Movie", Status: "2"},
			{ID: "m3", Title: "Blank Movie"},
		},
		AccessToken: "access",
		OnProgress: func(p models.MigrationProgress) {
			total = p.Total
		},
	})
	require.NoError(t, err)

	require.Equal(t, 1, total)
	for _, call := range resolver.calls {
		require.False(t, strings.HasSuffix(call, "m2") || strings.HasSuffix(call, "m3"),
			"excluded rows must never be resolved: %s", call)
	}
}

func TestRunProcessesBucketsInOrder(t *testing.T) {
	resolver := &fakeResolver{
		shows: map[string]betaseries.ShowIdentifiers{
			"sw": {ID: 1, Title: "SW", TVDBID: 1},
			"sh": {ID: 2, Title: "SH", TVDBID: 2},
		},
		movies: map[string]betaseries.MovieIdentifiers{
			"mw": {ID: 3, Title: "MW", TMDBID: 3},
			"mh": {ID: 4, Title: "MH", TMDBID: 4},
		},
	}
	syncer := &fakeSyncer{}
	svc := NewService(resolver, syncer)

	_, err := svc.Run(context.Background(), Input{
		Shows: []models.ShowRow{
			{ID: "sh", Title: "SH", Status: "100"},
			{ID: "sw", Title: "SW", Status: "0"},
		},
		Movies: []models.MovieRow{
			{ID: "mh", Title: "MH", Status: "1"},
			{ID: "mw", Title: "MW", Status: "0"},
		},
		AccessToken: "access",
	})
	require.NoError(t, err)

	require.Equal(t, []string{"show:sw", "show:sh", "movie:mw", "movie:mh"}, resolver.calls)
}

func TestRunAbortsOnSubmissionFailure(t *testing.T) {
	resolver := &fakeResolver{
		shows: map[string]betaseries.ShowIdentifiers{
			"s1": {ID: 1, Title: "S1", TVDBID: 1},
			"s2": {ID: 2, Title: "S2", TVDBID: 2},
		},
	}
	syncer := &fakeSyncer{historyErr: fmt.Errorf("trakt sync /sync/history failed: 502 Bad Gateway")}
	svc := NewService(resolver, syncer)

	_, err := svc.Run(context.Background(), Input{
		Shows: []models.ShowRow{
			{ID: "s1", Title: "S1", Status: "100"},
			{ID: "s2", Title: "S2", Status: "0"},
		},
		AccessToken: "access",
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "submit history batch")

	// History is submitted first; its failure aborts before the watchlist.
	require.Len(t, syncer.historyCalls, 1)
	require.Empty(t, syncer.watchlistCalls)
}

func TestRunPreconditions(t *testing.T) {
	svc := NewService(&fakeResolver{}, &fakeSyncer{})

	_, err := svc.Run(context.Background(), Input{AccessToken: "access"})
	require.ErrorIs(t, err, ErrNoRows)

	_, err = svc.Run(context.Background(), Input{Shows: []models.ShowRow{{ID: "1", Title: "S"}}})
	require.ErrorIs(t, err, ErrTokensRequired)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(&fakeResolver{}, &fakeSyncer{})
	_, err := svc.Run(ctx, Input{
		Shows:       []models.ShowRow{{ID: "s1", Title: "S1", Status: "0"}},
		AccessToken: "access",
	})
	require.ErrorIs(t, err, context.Canceled)
}
