package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"tophits/internal/core"
	"tophits/internal/metrics"
)

// GenreSeparator joins an artist's genres into a single cell.
const GenreSeparator = ", "

type ExtractOptions struct {
	// Truncate limits each playlist to its first SampleSize tracks.
	Truncate   bool
	SampleSize int
}

// ExtractTracks fetches the tracks of every playlist and enriches each with
// a lookup of its first artist. Playlists are processed in ascending year
// order and tracks in playlist order.
func ExtractTracks(ctx context.Context, catalog core.Catalog, playlists core.YearPlaylists, opts ExtractOptions,
	logger *zap.Logger, m *metrics.Metrics) ([]core.TrackRecord, error) {
	if err := validatePlaylists(playlists, opts); err != nil {
		return nil, err
	}

	years := make([]int, 0, len(playlists))
	for year := range playlists {
		years = append(years, year)
	}
	slices.Sort(years)

	var records []core.TrackRecord
	for _, year := range years {
		playlistID := playlists[year]
		logger.Info("Fetching tracks for playlist",
			zap.Int("year", year),
			zap.String("playlistID", playlistID))

		tracks, err := catalog.PlaylistTracks(ctx, playlistID)
		if err != nil {
			return nil, fmt.Errorf("fetching tracks of playlist %s (%d): %w", playlistID, year, err)
		}

		if opts.Truncate && len(tracks) > opts.SampleSize {
			logger.Debug("Truncating playlist",
				zap.Int("year", year),
				zap.Int("tracks", len(tracks)),
				zap.Int("sampleSize", opts.SampleSize))
			tracks = tracks[:opts.SampleSize]
		}

		for i := range tracks {
			record, err := enrichTrack(ctx, catalog, year, &tracks[i])
			if err != nil {
				return nil, fmt.Errorf("playlist %s (%d) track %d: %w", playlistID, year, i, err)
			}
			records = append(records, record)
		}

		logger.Info("Extracted playlist",
			zap.Int("year", year),
			zap.Int("records", len(tracks)))
	}

	m.AddRecords(metrics.StageExtract, len(records))
	return records, nil
}

func enrichTrack(ctx context.Context, catalog core.Catalog, year int, track *core.CatalogTrack) (core.TrackRecord, error) {
	if len(track.ArtistIDs) == 0 || track.ArtistIDs[0] == "" {
		return core.TrackRecord{}, fmt.Errorf("track %q has no artist", track.Name)
	}

	artist, err := catalog.Artist(ctx, track.ArtistIDs[0])
	if err != nil {
		return core.TrackRecord{}, fmt.Errorf("looking up artist of %q: %w", track.Name, err)
	}

	return core.TrackRecord{
		Year:             year,
		TrackName:        track.Name,
		AlbumName:        track.AlbumName,
		AlbumRelease:     track.AlbumRelease,
		TrackPopularity:  track.Popularity,
		TrackDurationMs:  track.DurationMs,
		ArtistName:       artist.Name,
		ArtistFollowers:  artist.Followers,
		ArtistPopularity: artist.Popularity,
		ArtistGenres:     strings.Join(artist.Genres, GenreSeparator),
	}, nil
}

func validatePlaylists(playlists core.YearPlaylists, opts ExtractOptions) error {
	if len(playlists) == 0 {
		return fmt.Errorf("%w: playlist mapping must not be empty", core.ErrValidation)
	}

	for year, id := range playlists {
		if year <= 0 {
			return fmt.Errorf("%w: invalid year %d", core.ErrValidation, year)
		}
		if id == "" {
			return fmt.Errorf("%w: empty playlist id for year %d", core.ErrValidation, year)
		}
	}

	if opts.Truncate && opts.SampleSize <= 0 {
		return fmt.Errorf("%w: sample size must be positive, got %d", core.ErrValidation, opts.SampleSize)
	}

	return nil
}
