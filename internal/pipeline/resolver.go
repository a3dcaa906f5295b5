// Package pipeline implements the extract, transform and load stages of a
// tophits run and the runner that chains them.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"tophits/internal/core"
	"tophits/internal/metrics"
)

// PlaylistQueryFormat is the search query issued for each year.
const PlaylistQueryFormat = "Top Hits of %d"

// PlaylistQuery returns the search query for year.
func PlaylistQuery(year int) string {
	return fmt.Sprintf(PlaylistQueryFormat, year)
}

// ResolvePlaylists finds one playlist per year. Years without a match are
// logged and left out of the result; that is not an error.
func ResolvePlaylists(ctx context.Context, catalog core.Catalog, years []int, logger *zap.Logger,
	m *metrics.Metrics) (core.YearPlaylists, error) {
	if err := validateYears(years); err != nil {
		return nil, err
	}

	playlists := make(core.YearPlaylists, len(years))
	for _, year := range years {
		query := PlaylistQuery(year)
		logger.Info("Searching for playlist", zap.Int("year", year), zap.String("query", query))

		matches, err := catalog.SearchPlaylists(ctx, query, 1)
		if err != nil {
			return nil, fmt.Errorf("searching playlist for %d: %w", year, err)
		}

		if len(matches) == 0 || matches[0].ID == "" {
			logger.Warn("No playlist found for year", zap.Int("year", year))
			m.RecordMissingPlaylist()
			continue
		}

		playlists[year] = matches[0].ID
		logger.Debug("Resolved playlist",
			zap.Int("year", year),
			zap.String("playlistID", matches[0].ID),
			zap.String("playlistName", matches[0].Name))
	}

	logger.Info("Playlist resolution completed",
		zap.Int("yearsRequested", len(years)),
		zap.Int("playlistsFound", len(playlists)))

	return playlists, nil
}

func validateYears(years []int) error {
	if len(years) == 0 {
		return fmt.Errorf("%w: years must not be empty", core.ErrValidation)
	}

	seen := make(map[int]struct{}, len(years))
	for _, year := range years {
		if year <= 0 {
			return fmt.Errorf("%w: invalid year %d", core.ErrValidation, year)
		}
		if _, dup := seen[year]; dup {
			return fmt.Errorf("%w: duplicate year %d", core.ErrValidation, year)
		}
		seen[year] = struct{}{}
	}

	return nil
}
