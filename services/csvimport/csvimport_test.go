package csvimport

import (
	"errors"
	"strings"
	"testing"
)

func TestParseShows(t *testing.T) {
	input := strings.Join([]string{
		"id,title,archive,episode,remaining,status,tags",
		"1161,Breaking Bad,0,S05E16,0,100,drama",
		"2152, The Wire ,1,S02E05,45,45,",
		",Missing Id,0,S01E01,0,0,",
		"999,,0,S01E01,0,0,",
	}, "\n")

	rows, err := ParseShows(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse shows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].ID != "1161" || rows[0].Episode != "S05E16" || rows[0].Status != "100" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Title != "The Wire" {
		t.Fatalf("expected trimmed title, got %q", rows[1].Title)
	}
	if rows[1].Remaining != "45" || rows[1].Tags != "" {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
}

func TestParseMoviesSemicolonDelimited(t *testing.T) {
	input := strings.Join([]string{
		"id;title;status;date",
		"101;Le Samourai;1;2021-03-14",
		"102;Playtime;0;",
	}, "\n")

	rows, err := ParseMovies(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse movies: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Status != "1" || rows[0].Date != "2021-03-14" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if !rows[1].IsWatchlist() {
		t.Fatalf("expected second row on watchlist, got %+v", rows[1])
	}
}

func TestParseShortRows(t *testing.T) {
	input := "id,title,status,date\n5,Short Row\n"
	rows, err := ParseMovies(strings.NewReader(input))
	if err != nil {
		t.Fatalf("parse movies: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "" {
		t.Fatalf("unexpected rows %+v", rows)
	}
}

func TestParseEmptyInput(t *testing.T) {
	if _, err := ParseShows(strings.NewReader("")); !errors.Is(err, ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader, got %v", err)
	}
}
