// Package playback turns the Spotify remote calls into the tracks the poll
// cycle delivers. Every call goes through the rate-limit retry policy and
// artist genres come from a process-wide cache.
package playback

import (
	"context"
	"log/slog"

	"vibesync/internal/genre"
	"vibesync/internal/models"
	"vibesync/internal/result"
	"vibesync/internal/retry"
	"vibesync/internal/spotify"
)

// DefaultRecentLimit is the number of history items requested when none is given.
const DefaultRecentLimit = 10

// API is the remote call surface consumed by Source. *spotify.Client implements it.
type API interface {
	CurrentPlayback(ctx context.Context) (*spotify.CurrentlyPlaying, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.PlayHistory, error)
	Artist(ctx context.Context, artistID string) (*spotify.Artist, error)
	AudioFeatures(ctx context.Context, trackID string) (*spotify.AudioFeatures, error)
}

var _ API = (*spotify.Client)(nil)

// Source fetches the current and recent playback state.
type Source struct {
	api    API
	genres *genre.Cache
	policy retry.Policy
	logger *slog.Logger
}

// NewSource creates a playback source. A nil cache gets a fresh one.
func NewSource(logger *slog.Logger, api API, genres *genre.Cache, policy retry.Policy) *Source {
	if genres == nil {
		genres = genre.NewCache()
	}
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Source{api: api, genres: genres, policy: policy, logger: logger}
}

// NowPlaying returns the track being played.
//
// The result is Empty when nothing is playing, playback is paused, or the rate
// limit retries ran out, and Degraded when Spotify could not be reached.
func (s *Source) NowPlaying(ctx context.Context) result.Result[models.Track] {
	res := retry.Do(ctx, s.policy, "current playback", s.api.CurrentPlayback)
	switch res.Kind() {
	case result.KindDegraded:
		s.logger.Error("Spotify playback unavailable", "error", res.Err())
		return result.Degraded[models.Track](res.Err())
	case result.KindEmpty:
		return result.Empty[models.Track]()
	}

	cp := res.OrZero()
	if cp == nil || !cp.IsPlaying || cp.Item == nil {
		return result.Empty[models.Track]()
	}

	item := cp.Item
	artistID, artistName := primaryArtist(*item)

	track := models.Track{
		Name:         item.Name,
		Artist:       artistName,
		Album:        item.Album.Name,
		ArtistGenres: s.artistGenres(ctx, artistID),
		Popularity:   item.Popularity,
	}
	if len(item.Album.Images) > 0 && item.Album.Images[0].URL != "" {
		artURL := item.Album.Images[0].URL
		track.AlbumArtURL = &artURL
	}
	track.AudioFeatures = s.audioFeatures(ctx, item.ID)

	return result.OK(track)
}

// RecentTracks returns the recently played tracks, de-duplicated by name and
// artist with the first (most recent) occurrence kept. Failures yield an empty
// list.
func (s *Source) RecentTracks(ctx context.Context, limit int) []models.RecentTrack {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	res := retry.Do(ctx, s.policy, "recently played", func(ctx context.Context) ([]spotify.PlayHistory, error) {
		return s.api.RecentlyPlayed(ctx, limit)
	})
	if res.Kind() == result.KindDegraded {
		s.logger.Error("Error fetching recent tracks", "error", res.Err())
	}

	items := res.OrZero()
	tracks := make([]models.RecentTrack, 0, len(items))
	type key struct{ name, artist string }
	seen := make(map[key]struct{}, len(items))

	for _, item := range items {
		artistID, artistName := primaryArtist(item.Track)
		k := key{item.Track.Name, artistName}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		tracks = append(tracks, models.RecentTrack{
			Name:   item.Track.Name,
			Artist: artistName,
			Genres: s.artistGenres(ctx, artistID),
		})
	}
	return tracks
}

func (s *Source) artistGenres(ctx context.Context, artistID string) []string {
	if artistID == "" {
		return []string{}
	}
	return s.genres.Resolve(ctx, artistID, s.fetchGenres)
}

func (s *Source) fetchGenres(ctx context.Context, artistID string) result.Result[[]string] {
	res := retry.Do(ctx, s.policy, "artist", func(ctx context.Context) ([]string, error) {
		artist, err := s.api.Artist(ctx, artistID)
		if err != nil {
			return nil, err
		}
		return artist.Genres, nil
	})
	if res.Kind() == result.KindDegraded {
		s.logger.Warn("Artist genre lookup failed", "artistID", artistID, "error", res.Err())
	}
	return res
}

// audioFeatures returns nil when the lookup is unavailable for this track.
func (s *Source) audioFeatures(ctx context.Context, trackID string) *models.AudioFeatures {
	if trackID == "" {
		return nil
	}
	res := retry.Do(ctx, s.policy, "audio features", func(ctx context.Context) (*spotify.AudioFeatures, error) {
		return s.api.AudioFeatures(ctx, trackID)
	})
	f, ok := res.Value()
	if !ok || f == nil {
		s.logger.Debug("Audio features unavailable", "trackID", trackID, "error", res.Err())
		return nil
	}
	return &models.AudioFeatures{
		Valence:      f.Valence,
		Energy:       f.Energy,
		Tempo:        f.Tempo,
		Danceability: f.Danceability,
	}
}

func primaryArtist(t spotify.Track) (id, name string) {
	if len(t.Artists) == 0 {
		return "", ""
	}
	return t.Artists[0].ID, t.Artists[0].Name
}
