package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"tophits/internal/core"
	"tophits/internal/metrics"
)

func TestExtractTracks(t *testing.T) {
	catalog := newMockCatalog()
	playlists := core.YearPlaylists{2023: "playlist_id_2023"}

	records, err := ExtractTracks(context.Background(), catalog, playlists, ExtractOptions{}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("ExtractTracks() error: %v", err)
	}

	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}

	expected := core.TrackRecord{
		Year:             2023,
		TrackName:        "Mock Track",
		AlbumName:        "Mock Album",
		AlbumRelease:     "2023-01-01",
		TrackPopularity:  85,
		TrackDurationMs:  210000,
		ArtistName:       "Mock Artist",
		ArtistFollowers:  123456,
		ArtistPopularity: 90,
		ArtistGenres:     "pop, electropop",
	}
	if records[0] != expected {
		t.Errorf("Record = %+v, expected %+v", records[0], expected)
	}

	if catalog.tracksCalls != 1 || catalog.artistCalls != 1 {
		t.Errorf("Expected 1 tracks call and 1 artist call, got %d and %d", catalog.tracksCalls, catalog.artistCalls)
	}
}

func TestExtractTracksCountsAndOrder(t *testing.T) {
	catalog := newMockCatalog()
	catalog.tracks = map[string][]core.CatalogTrack{
		"p2021": {mockTrack("a"), mockTrack("b"), mockTrack("c")},
		"p2020": {mockTrack("x"), mockTrack("y")},
	}
	playlists := core.YearPlaylists{2021: "p2021", 2020: "p2020"}
	m := metrics.New()

	records, err := ExtractTracks(context.Background(), catalog, playlists, ExtractOptions{}, zap.NewNop(), m)
	if err != nil {
		t.Fatalf("ExtractTracks() error: %v", err)
	}

	if len(records) != 5 {
		t.Fatalf("Expected 5 records, got %d", len(records))
	}

	expectedOrder := []struct {
		year  int
		track string
	}{{2020, "x"}, {2020, "y"}, {2021, "a"}, {2021, "b"}, {2021, "c"}}
	for i, want := range expectedOrder {
		if records[i].Year != want.year || records[i].TrackName != want.track {
			t.Errorf("records[%d] = (%d, %q), expected (%d, %q)",
				i, records[i].Year, records[i].TrackName, want.year, want.track)
		}
	}

	if catalog.artistCalls != 5 {
		t.Errorf("Expected one artist lookup per track, got %d", catalog.artistCalls)
	}

	if got := testutil.ToFloat64(m.RecordsTotal.WithLabelValues(metrics.StageExtract)); got != 5 {
		t.Errorf("Expected 5 extracted records in metrics, got %v", got)
	}
}

func TestExtractTracksTruncation(t *testing.T) {
	long := make([]core.CatalogTrack, 25)
	for i := range long {
		long[i] = mockTrack(fmt.Sprintf("long %d", i))
	}
	short := []core.CatalogTrack{mockTrack("s1"), mockTrack("s2"), mockTrack("s3")}

	newCatalog := func() *mockCatalog {
		c := newMockCatalog()
		c.tracks = map[string][]core.CatalogTrack{"long": long, "short": short}
		return c
	}
	playlists := core.YearPlaylists{2022: "long", 2023: "short"}

	tests := []struct {
		name     string
		opts     ExtractOptions
		expected int
	}{
		{name: "no truncation", opts: ExtractOptions{}, expected: 28},
		{name: "truncate to ten", opts: ExtractOptions{Truncate: true, SampleSize: 10}, expected: 13},
		{name: "sample size ignored when off", opts: ExtractOptions{SampleSize: 10}, expected: 28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newCatalog()

			records, err := ExtractTracks(context.Background(), catalog, playlists, tt.opts, zap.NewNop(), nil)
			if err != nil {
				t.Fatalf("ExtractTracks() error: %v", err)
			}

			if len(records) != tt.expected {
				t.Errorf("Expected %d records, got %d", tt.expected, len(records))
			}
			if catalog.artistCalls != tt.expected {
				t.Errorf("Expected %d artist lookups, got %d", tt.expected, catalog.artistCalls)
			}
		})
	}
}

func TestExtractTracksTruncationKeepsPrefix(t *testing.T) {
	catalog := newMockCatalog()
	tracks := make([]core.CatalogTrack, 12)
	for i := range tracks {
		tracks[i] = mockTrack(fmt.Sprintf("t%02d", i))
	}
	catalog.tracks = map[string][]core.CatalogTrack{"p": tracks}

	records, err := ExtractTracks(context.Background(), catalog, core.YearPlaylists{2024: "p"},
		ExtractOptions{Truncate: true, SampleSize: 10}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("ExtractTracks() error: %v", err)
	}

	for i, record := range records {
		if want := fmt.Sprintf("t%02d", i); record.TrackName != want {
			t.Errorf("records[%d] = %q, expected %q", i, record.TrackName, want)
		}
	}
}

func TestExtractTracksUsesFirstArtist(t *testing.T) {
	catalog := newMockCatalog()
	track := mockTrack("Collab")
	track.ArtistIDs = []string{"lead", "artist_id"}
	catalog.tracks = map[string][]core.CatalogTrack{"p": {track}}
	catalog.artists["lead"] = &core.CatalogArtist{ID: "lead", Name: "Lead Artist", Genres: nil}

	records, err := ExtractTracks(context.Background(), catalog, core.YearPlaylists{2023: "p"},
		ExtractOptions{}, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("ExtractTracks() error: %v", err)
	}

	if records[0].ArtistName != "Lead Artist" {
		t.Errorf("Expected first-listed artist, got %q", records[0].ArtistName)
	}
	if records[0].ArtistGenres != "" {
		t.Errorf("Artist without genres should give an empty cell, got %q", records[0].ArtistGenres)
	}
}

func TestExtractTracksValidation(t *testing.T) {
	tests := []struct {
		name      string
		playlists core.YearPlaylists
		opts      ExtractOptions
	}{
		{name: "nil", playlists: nil},
		{name: "empty", playlists: core.YearPlaylists{}},
		{name: "empty id", playlists: core.YearPlaylists{2023: ""}},
		{name: "invalid year", playlists: core.YearPlaylists{0: "p"}},
		{name: "zero sample size", playlists: core.YearPlaylists{2023: "p"}, opts: ExtractOptions{Truncate: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newMockCatalog()

			_, err := ExtractTracks(context.Background(), catalog, tt.playlists, tt.opts, zap.NewNop(), nil)
			if !errors.Is(err, core.ErrValidation) {
				t.Errorf("Expected ErrValidation, got %v", err)
			}
			if catalog.totalCalls() != 0 {
				t.Errorf("Expected no catalog calls, got %d", catalog.totalCalls())
			}
		})
	}
}

func TestExtractTracksErrors(t *testing.T) {
	remoteErr := errors.New("remote failure")
	playlists := core.YearPlaylists{2023: "playlist_id_2023"}

	t.Run("tracks", func(t *testing.T) {
		catalog := newMockCatalog()
		catalog.tracksErr = remoteErr

		if _, err := ExtractTracks(context.Background(), catalog, playlists, ExtractOptions{}, zap.NewNop(), nil); !errors.Is(err, remoteErr) {
			t.Errorf("Expected wrapped tracks error, got %v", err)
		}
	})

	t.Run("artist", func(t *testing.T) {
		catalog := newMockCatalog()
		catalog.artistErr = remoteErr

		if _, err := ExtractTracks(context.Background(), catalog, playlists, ExtractOptions{}, zap.NewNop(), nil); !errors.Is(err, remoteErr) {
			t.Errorf("Expected wrapped artist error, got %v", err)
		}
	})

	t.Run("track without artist", func(t *testing.T) {
		catalog := newMockCatalog()
		track := mockTrack("Nobody's")
		track.ArtistIDs = nil
		catalog.tracks["playlist_id_2023"] = []core.CatalogTrack{track}

		if _, err := ExtractTracks(context.Background(), catalog, playlists, ExtractOptions{}, zap.NewNop(), nil); err == nil {
			t.Error("Expected an error for a track without artists")
		}
		if catalog.artistCalls != 0 {
			t.Errorf("No artist lookup should be made, got %d", catalog.artistCalls)
		}
	})
}
