package core

import (
	"context"
	"strconv"
	"time"
)

// ReleaseDateLayout is the ISO layout album release dates are written with.
const ReleaseDateLayout = "2006-01-02"

// Columns is the header of the output file, in order.
var Columns = []string{
	"year",
	"track_name",
	"album_name",
	"album_release",
	"track_popularity",
	"track_duration_ms",
	"artist_name",
	"artist_followers",
	"artist_popularity",
	"artist_genres",
}

type PlaylistMatch struct {
	ID   string
	Name string
}

// CatalogTrack is the part of a playlist item the extractor depends on.
type CatalogTrack struct {
	Name         string
	AlbumName    string
	AlbumRelease string
	Popularity   int
	DurationMs   int
	ArtistIDs    []string
}

type CatalogArtist struct {
	ID         string
	Name       string
	Followers  int
	Popularity int
	Genres     []string
}

// YearPlaylists maps a requested year to the playlist found for it.
// Years without a match are absent.
type YearPlaylists map[int]string

// TrackRecord is one flattened track/artist pair as extracted from the
// catalog. AlbumRelease is the raw release date string.
type TrackRecord struct {
	Year             int
	TrackName        string
	AlbumName        string
	AlbumRelease     string
	TrackPopularity  int
	TrackDurationMs  int
	ArtistName       string
	ArtistFollowers  int
	ArtistPopularity int
	ArtistGenres     string
}

// TrackRow is a deduplicated, typed record. A nil AlbumRelease means the
// source date could not be parsed.
type TrackRow struct {
	Year             int
	TrackName        string
	AlbumName        string
	AlbumRelease     *time.Time
	TrackPopularity  int
	TrackDurationMs  int
	ArtistName       string
	ArtistFollowers  int
	ArtistPopularity int
	ArtistGenres     string
}

// Key returns the composite identity of the row.
func (r TrackRow) Key() TrackKey {
	return TrackKey{TrackName: r.TrackName, ArtistName: r.ArtistName, Year: r.Year}
}

type TrackKey struct {
	TrackName  string
	ArtistName string
	Year       int
}

// String encodes the key with separators that cannot occur in catalog names.
func (k TrackKey) String() string {
	return k.TrackName + "\x1f" + k.ArtistName + "\x1f" + strconv.Itoa(k.Year)
}

// Tabular is anything that can be written as a delimited file.
type Tabular interface {
	Header() []string
	Records() [][]string
}

// Table is the ordered, deduplicated output of the transformer.
type Table struct {
	Rows []TrackRow
}

func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) Header() []string {
	header := make([]string, len(Columns))
	copy(header, Columns)
	return header
}

func (t *Table) Records() [][]string {
	records := make([][]string, 0, len(t.Rows))
	for i := range t.Rows {
		r := &t.Rows[i]
		records = append(records, []string{
			strconv.Itoa(r.Year),
			r.TrackName,
			r.AlbumName,
			formatRelease(r.AlbumRelease),
			strconv.Itoa(r.TrackPopularity),
			strconv.Itoa(r.TrackDurationMs),
			r.ArtistName,
			strconv.Itoa(r.ArtistFollowers),
			strconv.Itoa(r.ArtistPopularity),
			r.ArtistGenres,
		})
	}
	return records
}

// TrackRecords converts the table back into raw records so it can be fed
// through the transformer again.
func (t *Table) TrackRecords() []TrackRecord {
	records := make([]TrackRecord, 0, len(t.Rows))
	for i := range t.Rows {
		r := &t.Rows[i]
		records = append(records, TrackRecord{
			Year:             r.Year,
			TrackName:        r.TrackName,
			AlbumName:        r.AlbumName,
			AlbumRelease:     formatRelease(r.AlbumRelease),
			TrackPopularity:  r.TrackPopularity,
			TrackDurationMs:  r.TrackDurationMs,
			ArtistName:       r.ArtistName,
			ArtistFollowers:  r.ArtistFollowers,
			ArtistPopularity: r.ArtistPopularity,
			ArtistGenres:     r.ArtistGenres,
		})
	}
	return records
}

func formatRelease(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(ReleaseDateLayout)
}

// Catalog is the narrow view of the music catalog the pipeline consumes.
type Catalog interface {
	// SearchPlaylists returns at most limit playlists matching query.
	SearchPlaylists(ctx context.Context, query string, limit int) ([]PlaylistMatch, error)
	// PlaylistTracks returns every track of the playlist, in playlist order.
	PlaylistTracks(ctx context.Context, playlistID string) ([]CatalogTrack, error)
	Artist(ctx context.Context, artistID string) (*CatalogArtist, error)
}
