package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"tophits/internal/core"
	"tophits/internal/metrics"
)

func TestPlaylistQuery(t *testing.T) {
	if got := PlaylistQuery(2023); got != "Top Hits of 2023" {
		t.Errorf("PlaylistQuery(2023) = %q", got)
	}
}

func TestResolvePlaylists(t *testing.T) {
	catalog := newMockCatalog()

	result, err := ResolvePlaylists(context.Background(), catalog, []int{2023}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("ResolvePlaylists() error: %v", err)
	}

	expected := core.YearPlaylists{2023: "playlist_id_2023"}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("ResolvePlaylists() = %v, expected %v", result, expected)
	}
}

func TestResolvePlaylistsEveryYearMatched(t *testing.T) {
	catalog := &mockCatalog{playlists: map[string]string{
		"Top Hits of 2020": "p2020",
		"Top Hits of 2021": "p2021",
		"Top Hits of 2022": "p2022",
	}}
	years := []int{2022, 2020, 2021}

	result, err := ResolvePlaylists(context.Background(), catalog, years, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("ResolvePlaylists() error: %v", err)
	}

	if len(result) != len(years) {
		t.Fatalf("Expected %d entries, got %d", len(years), len(result))
	}
	for _, year := range years {
		if _, ok := result[year]; !ok {
			t.Errorf("Missing year %d in %v", year, result)
		}
	}

	// Queries follow input order.
	expectedQueries := []string{"Top Hits of 2022", "Top Hits of 2020", "Top Hits of 2021"}
	if !reflect.DeepEqual(catalog.queries, expectedQueries) {
		t.Errorf("Queries = %v, expected %v", catalog.queries, expectedQueries)
	}
}

func TestResolvePlaylistsPartialMatch(t *testing.T) {
	catalog := &mockCatalog{playlists: map[string]string{"Top Hits of 2021": "p2021"}}
	m := metrics.New()

	result, err := ResolvePlaylists(context.Background(), catalog, []int{2019, 2020, 2021}, zap.NewNop(), m)
	if err != nil {
		t.Fatalf("Missing playlists should not be an error, got %v", err)
	}

	expected := core.YearPlaylists{2021: "p2021"}
	if !reflect.DeepEqual(result, expected) {
		t.Errorf("ResolvePlaylists() = %v, expected %v", result, expected)
	}

	if catalog.searchCalls != 3 {
		t.Errorf("Expected one search per year, got %d", catalog.searchCalls)
	}

	if got := testutil.ToFloat64(m.MissingPlaylists); got != 2 {
		t.Errorf("Expected 2 missing playlists recorded, got %v", got)
	}
}

func TestResolvePlaylistsNoMatchAtAll(t *testing.T) {
	catalog := &mockCatalog{}

	result, err := ResolvePlaylists(context.Background(), catalog, []int{1999}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("ResolvePlaylists() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty mapping, got %v", result)
	}
}

func TestResolvePlaylistsValidation(t *testing.T) {
	tests := []struct {
		name  string
		years []int
	}{
		{name: "nil", years: nil},
		{name: "empty", years: []int{}},
		{name: "duplicate", years: []int{2020, 2020}},
		{name: "zero", years: []int{0}},
		{name: "negative", years: []int{2020, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newMockCatalog()

			_, err := ResolvePlaylists(context.Background(), catalog, tt.years, zap.NewNop(), nil)
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
			if catalog.totalCalls() != 0 {
				t.Errorf("Expected no catalog calls, got %d", catalog.totalCalls())
			}
		})
	}
}

func TestResolvePlaylistsSearchError(t *testing.T) {
	searchErr := errors.New("service unavailable")
	catalog := &mockCatalog{searchErr: searchErr}

	_, err := ResolvePlaylists(context.Background(), catalog, []int{2020, 2021}, zap.NewNop(), nil)
	if !errors.Is(err, searchErr) {
		t.Errorf("Expected wrapped search error, got %v", err)
	}
	if catalog.searchCalls != 1 {
		t.Errorf("Run should abort on the first failure, got %d searches", catalog.searchCalls)
	}
}
