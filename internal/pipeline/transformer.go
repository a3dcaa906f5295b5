package pipeline

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"tophits/internal/core"
	"tophits/internal/metrics"
	"tophits/internal/store"
)

const dedupFalsePositiveRate = 0.001

// releaseLayouts covers the day, month and year precisions the catalog
// reports release dates in.
var releaseLayouts = []string{
	"2006-01-02",
	"2006-01",
	"2006",
	time.RFC3339,
}

// Transform deduplicates records on (track_name, artist_name, year), keeping
// the first occurrence, and parses album release dates. Text cells are kept
// exactly as extracted. Unparsable dates become nil; they never fail the
// transform.
func Transform(records []core.TrackRecord, logger *zap.Logger, m *metrics.Metrics) (*core.Table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: records must not be empty", core.ErrValidation)
	}

	logger.Info("Transforming records", zap.Int("records", len(records)))

	seen := store.NewKeySet(len(records), dedupFalsePositiveRate)
	table := &core.Table{Rows: make([]core.TrackRow, 0, len(records))}
	duplicates, invalidDates := 0, 0

	for i := range records {
		row := toRow(&records[i])

		if !seen.Insert(dedupKey(row.Key())) {
			duplicates++
			continue
		}

		if row.AlbumRelease == nil && records[i].AlbumRelease != "" {
			invalidDates++
			logger.Debug("Unparsable release date",
				zap.String("track", row.TrackName),
				zap.String("releaseDate", records[i].AlbumRelease))
		}

		table.Rows = append(table.Rows, row)
	}

	logger.Info("Transformation completed",
		zap.Int("retained", table.Len()),
		zap.Int("duplicates", duplicates),
		zap.Int("invalidDates", invalidDates))

	m.AddDuplicates(duplicates)
	m.AddInvalidDates(invalidDates)
	m.AddRecords(metrics.StageTransform, table.Len())

	return table, nil
}

func toRow(r *core.TrackRecord) core.TrackRow {
	return core.TrackRow{
		Year:             r.Year,
		TrackName:        r.TrackName,
		AlbumName:        r.AlbumName,
		AlbumRelease:     ParseReleaseDate(r.AlbumRelease),
		TrackPopularity:  r.TrackPopularity,
		TrackDurationMs:  r.TrackDurationMs,
		ArtistName:       r.ArtistName,
		ArtistFollowers:  r.ArtistFollowers,
		ArtistPopularity: r.ArtistPopularity,
		ArtistGenres:     r.ArtistGenres,
	}
}

// dedupKey encodes k in Unicode NFC so composed and decomposed spellings of
// the same name collide. Cell values are never rewritten.
func dedupKey(k core.TrackKey) string {
	return norm.NFC.String(k.String())
}

// ParseReleaseDate returns the date s denotes, or nil when s is empty or
// not a recognised date.
func ParseReleaseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}

	return nil
}
