package models

import "encoding/json"

// Track is the currently playing track as delivered downstream.
// AlbumArtURL and AudioFeatures are nil when the upstream did not provide them
// and are then left out of the JSON payload.
type Track struct {
	Name          string         `json:"name"`
	Artist        string         `json:"artist"`
	Album         string         `json:"album"`
	AlbumArtURL   *string        `json:"album_art_url,omitempty"`
	ArtistGenres  []string       `json:"artist_genres"`
	Popularity    int            `json:"popularity"`
	AudioFeatures *AudioFeatures `json:"audio_features,omitempty"`
}

// AudioFeatures holds the subset of track analysis used to describe a vibe.
type AudioFeatures struct {
	Valence      float64 `json:"valence"`
	Energy       float64 `json:"energy"`
	Tempo        float64 `json:"tempo"`
	Danceability float64 `json:"danceability"`
}

// MarshalJSON encodes a nil genre list as an empty array.
func (t Track) MarshalJSON() ([]byte, error) {
	type plain Track
	p := plain(t)
	if p.ArtistGenres == nil {
		p.ArtistGenres = []string{}
	}
	return json.Marshal(p)
}

// RecentTrack is one entry of the recently played history.
type RecentTrack struct {
	Name   string   `json:"name"`
	Artist string   `json:"artist"`
	Genres []string `json:"genres"`
}

// MarshalJSON encodes a nil genre list as an empty array.
func (r RecentTrack) MarshalJSON() ([]byte, error) {
	type plain RecentTrack
	p := plain(r)
	if p.Genres == nil {
		p.Genres = []string{}
	}
	return json.Marshal(p)
}
