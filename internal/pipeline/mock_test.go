package pipeline

import (
	"context"
	"fmt"

	"tophits/internal/core"
)

// mockCatalog serves canned catalog data and counts every call.
type mockCatalog struct {
	playlists map[string]string // query -> playlist id
	tracks    map[string][]core.CatalogTrack
	artists   map[string]*core.CatalogArtist

	searchErr error
	tracksErr error
	artistErr error

	searchCalls int
	tracksCalls int
	artistCalls int
	queries     []string
}

func (m *mockCatalog) SearchPlaylists(_ context.Context, query string, _ int) ([]core.PlaylistMatch, error) {
	m.searchCalls++
	m.queries = append(m.queries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if id, ok := m.playlists[query]; ok {
		return []core.PlaylistMatch{{ID: id, Name: query}}, nil
	}
	return nil, nil
}

func (m *mockCatalog) PlaylistTracks(_ context.Context, playlistID string) ([]core.CatalogTrack, error) {
	m.tracksCalls++
	if m.tracksErr != nil {
		return nil, m.tracksErr
	}
	return m.tracks[playlistID], nil
}

func (m *mockCatalog) Artist(_ context.Context, artistID string) (*core.CatalogArtist, error) {
	m.artistCalls++
	if m.artistErr != nil {
		return nil, m.artistErr
	}
	if artist, ok := m.artists[artistID]; ok {
		return artist, nil
	}
	return nil, fmt.Errorf("artist %s not found", artistID)
}

func (m *mockCatalog) totalCalls() int {
	return m.searchCalls + m.tracksCalls + m.artistCalls
}

func mockTrack(name string) core.CatalogTrack {
	return core.CatalogTrack{
		Name:         name,
		AlbumName:    "Mock Album",
		AlbumRelease: "2023-01-01",
		Popularity:   85,
		DurationMs:   210000,
		ArtistIDs:    []string{"artist_id"},
	}
}

func mockArtist() *core.CatalogArtist {
	return &core.CatalogArtist{
		ID:         "artist_id",
		Name:       "Mock Artist",
		Followers:  123456,
		Popularity: 90,
		Genres:     []string{"pop", "electropop"},
	}
}

// newMockCatalog returns a catalog with one single-track playlist for 2023.
func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		playlists: map[string]string{"Top Hits of 2023": "playlist_id_2023"},
		tracks: map[string][]core.CatalogTrack{
			"playlist_id_2023": {mockTrack("Mock Track")},
		},
		artists: map[string]*core.CatalogArtist{"artist_id": mockArtist()},
	}
}

func sampleRecord(track, artist string, year int) core.TrackRecord {
	return core.TrackRecord{
		Year:             year,
		TrackName:        track,
		AlbumName:        "Album1",
		AlbumRelease:     "2023-01-01",
		TrackPopularity:  90,
		TrackDurationMs:  210000,
		ArtistName:       artist,
		ArtistFollowers:  1000,
		ArtistPopularity: 80,
		ArtistGenres:     "pop",
	}
}
