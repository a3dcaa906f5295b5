// Package spotify adapts the Spotify Web API to the pipeline's catalog interface.
package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"tophits/internal/core"
	"tophits/internal/throttle"
)

const (
	// PlaylistPageSize is the maximum page size of the playlist items endpoint
	PlaylistPageSize = 100
)

// Client implements core.Catalog on top of the Spotify Web API.
type Client struct {
	logger *zap.Logger
	client *spotify.Client
}

// Connect obtains an app token with the client-credentials grant and returns
// an authenticated client. The token is renewed on expiry and every API
// request waits on a throttle of config.RequestsPerMinute. A failure to obtain
// the first token is reported as core.ErrAuthentication.
func Connect(ctx context.Context, config *core.SpotifyConfig, logger *zap.Logger) (*Client, error) {
	return connect(ctx, config, spotifyauth.TokenURL, logger)
}

func connect(ctx context.Context, config *core.SpotifyConfig, tokenURL string, logger *zap.Logger,
	opts ...spotify.ClientOption) (*Client, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("%w: client ID and secret are required", core.ErrAuthentication)
	}

	logger.Info("Initializing Spotify API client")

	credentials := &clientcredentials.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		TokenURL:     tokenURL,
	}

	token, err := credentials.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to obtain Spotify token: %w", core.ErrAuthentication, err)
	}

	// Token requests bypass the throttle; only API requests take a slot.
	httpClient := oauth2.NewClient(ctx, oauth2.ReuseTokenSource(token, credentials.TokenSource(ctx)))
	httpClient.Transport = throttle.Transport(httpClient.Transport, config.RequestsPerMinute)

	logger.Info("Spotify API client initialized",
		zap.Time("tokenExpiry", token.Expiry),
		zap.Int("requestsPerMinute", config.RequestsPerMinute))
	return NewClient(spotify.New(httpClient, opts...), logger), nil
}

// NewClient wraps an already authenticated API client.
func NewClient(api *spotify.Client, logger *zap.Logger) *Client {
	return &Client{
		logger: logger,
		client: api,
	}
}

// SearchPlaylists returns up to limit playlists matching query. The API can
// return null entries in place of removed playlists; those are skipped.
func (c *Client) SearchPlaylists(ctx context.Context, query string, limit int) ([]core.PlaylistMatch, error) {
	results, err := c.client.Search(ctx, query, spotify.SearchTypePlaylist, spotify.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("playlist search failed: %w", err)
	}

	if results.Playlists == nil {
		return nil, nil
	}

	var matches []core.PlaylistMatch
	for i := range results.Playlists.Playlists {
		playlist := &results.Playlists.Playlists[i]
		if playlist.ID == "" {
			continue
		}
		matches = append(matches, core.PlaylistMatch{
			ID:   string(playlist.ID),
			Name: playlist.Name,
		})
	}

	return matches, nil
}

// PlaylistTracks fetches every track of a playlist, following pagination.
// Episodes and unavailable items are skipped.
func (c *Client) PlaylistTracks(ctx context.Context, playlistID string) ([]core.CatalogTrack, error) {
	spotifyPlaylistID := spotify.ID(playlistID)
	var tracks []core.CatalogTrack
	offset := 0

	for {
		items, err := c.client.GetPlaylistItems(ctx, spotifyPlaylistID,
			spotify.Limit(PlaylistPageSize), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}

		for i := range items.Items {
			if track := items.Items[i].Track.Track; track != nil {
				tracks = append(tracks, convertTrack(track))
			}
		}

		if len(items.Items) < PlaylistPageSize {
			break
		}

		offset += PlaylistPageSize
	}

	c.logger.Debug("Retrieved playlist tracks",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(tracks)))

	return tracks, nil
}

func (c *Client) Artist(ctx context.Context, artistID string) (*core.CatalogArtist, error) {
	artist, err := c.client.GetArtist(ctx, spotify.ID(artistID))
	if err != nil {
		return nil, fmt.Errorf("failed to get artist %s: %w", artistID, err)
	}

	converted := convertArtist(artist)
	return &converted, nil
}

func convertTrack(track *spotify.FullTrack) core.CatalogTrack {
	artistIDs := make([]string, 0, len(track.Artists))
	for _, artist := range track.Artists {
		artistIDs = append(artistIDs, string(artist.ID))
	}

	return core.CatalogTrack{
		Name:         track.Name,
		AlbumName:    track.Album.Name,
		AlbumRelease: track.Album.ReleaseDate,
		Popularity:   int(track.Popularity),
		DurationMs:   int(track.Duration),
		ArtistIDs:    artistIDs,
	}
}

func convertArtist(artist *spotify.FullArtist) core.CatalogArtist {
	genres := make([]string, len(artist.Genres))
	copy(genres, artist.Genres)

	return core.CatalogArtist{
		ID:         string(artist.ID),
		Name:       artist.Name,
		Followers:  int(artist.Followers.Count),
		Popularity: int(artist.Popularity),
		Genres:     genres,
	}
}
