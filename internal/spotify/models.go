package spotify

// CurrentlyPlaying represents the currently playing object from the Spotify API.
// The Item field is a pointer to handle cases where nothing is playing (item is null).
type CurrentlyPlaying struct {
	IsPlaying  bool   `json:"is_playing"`
	ProgressMs int    `json:"progress_ms"`
	Item       *Track `json:"item"`
}

// Track represents a track object from the Spotify API.
type Track struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Popularity int            `json:"popularity"`
	Artists    []SimpleArtist `json:"artists"`
	Album      Album          `json:"album"`
}

// SimpleArtist is the artist reference embedded in tracks.
type SimpleArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is the album reference embedded in tracks.
type Album struct {
	Name   string  `json:"name"`
	Images []Image `json:"images"`
}

// Image is an album cover in one resolution; Spotify lists the widest first.
type Image struct {
	URL string `json:"url"`
}

// Artist is the full artist object.
type Artist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

// AudioFeatures is the audio-features object.
type AudioFeatures struct {
	ID           string  `json:"id"`
	Valence      float64 `json:"valence"`
	Energy       float64 `json:"energy"`
	Tempo        float64 `json:"tempo"`
	Danceability float64 `json:"danceability"`
}

// PlayHistory is one recently played item.
type PlayHistory struct {
	Track    Track  `json:"track"`
	PlayedAt string `json:"played_at"`
}

type recentlyPlayedResponse struct {
	Items []PlayHistory `json:"items"`
}
