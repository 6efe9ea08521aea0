package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://musicbrainz.org/ws/2"
	DefaultCoverArtURL = "https://coverartarchive.org"
	DefaultUserAgent   = "MusicBattleGame/2.0"

	minQueryLength = 2
	searchLimit    = 10
)

type MusicBrainzConfig struct {
	BaseURL           string
	CoverArtURL       string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// MusicBrainz is a Catalog backed by the MusicBrainz web service and the
// Cover Art Archive. Requests share one limiter to respect the service's
// rate policy.
type MusicBrainz struct {
	cfg     MusicBrainzConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewMusicBrainz(cfg MusicBrainzConfig) *MusicBrainz {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.CoverArtURL == "" {
		cfg.CoverArtURL = DefaultCoverArtURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.CoverArtURL = strings.TrimSuffix(cfg.CoverArtURL, "/")
	return &MusicBrainz{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
	}
}

type mbArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Country  string `json:"country"`
	LifeSpan struct {
		Begin string `json:"begin"`
		End   string `json:"end"`
	} `json:"life-span"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`
}

func (m *MusicBrainz) SearchByName(ctx context.Context, text string) ([]Candidate, error) {
	text = strings.TrimSpace(text)
	if len(text) < minQueryLength {
		return nil, nil
	}
	query := url.Values{}
	query.Set("query", text)
	query.Set("fmt", "json")
	query.Set("limit", fmt.Sprint(searchLimit))

	var resp struct {
		Artists []mbArtist `json:"artists"`
	}
	if err := m.getJSON(ctx, m.cfg.BaseURL+"/artist/?"+query.Encode(), &resp); err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(resp.Artists))
	for _, artist := range resp.Artists {
		if artist.ID == "" || artist.Name == "" {
			continue
		}
		out = append(out, Candidate{ID: artist.ID, Name: artist.Name})
	}
	return out, nil
}

func (m *MusicBrainz) GetDetail(ctx context.Context, id string) (Detail, error) {
	if id == "" {
		return Detail{}, ErrNoData
	}
	var artist mbArtist
	endpoint := m.cfg.BaseURL + "/artist/" + url.PathEscape(id) + "?inc=tags+genres&fmt=json"
	if err := m.getJSON(ctx, endpoint, &artist); err != nil {
		return Detail{}, err
	}
	tags := make([]string, 0, len(artist.Tags)+len(artist.Genres))
	for _, tag := range artist.Tags {
		tags = append(tags, strings.ToLower(tag.Name))
	}
	for _, genre := range artist.Genres {
		tags = append(tags, strings.ToLower(genre.Name))
	}
	return Detail{
		Name:           artist.Name,
		Classification: classify(artist.Type),
		Country:        artist.Country,
		Tags:           tags,
		LifespanBegin:  artist.LifeSpan.Begin,
		LifespanEnd:    artist.LifeSpan.End,
	}, nil
}

func (m *MusicBrainz) GetAssociatedWorkImage(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrNoData
	}
	var releases struct {
		Releases []struct {
			ID string `json:"id"`
		} `json:"releases"`
	}
	endpoint := m.cfg.BaseURL + "/release?artist=" + url.QueryEscape(id) + "&fmt=json&limit=1"
	if err := m.getJSON(ctx, endpoint, &releases); err != nil {
		return "", err
	}
	if len(releases.Releases) == 0 || releases.Releases[0].ID == "" {
		return "", ErrNoData
	}
	var cover struct {
		Images []struct {
			Image      string `json:"image"`
			Thumbnails struct {
				Small string `json:"small"`
			} `json:"thumbnails"`
		} `json:"images"`
	}
	if err := m.getJSON(ctx, m.cfg.CoverArtURL+"/release/"+url.PathEscape(releases.Releases[0].ID), &cover); err != nil {
		return "", err
	}
	if len(cover.Images) == 0 {
		return "", ErrNoData
	}
	if small := cover.Images[0].Thumbnails.Small; small != "" {
		return small, nil
	}
	if cover.Images[0].Image == "" {
		return "", ErrNoData
	}
	return cover.Images[0].Image, nil
}

func (m *MusicBrainz) getJSON(ctx context.Context, endpoint string, out any) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNoData, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoData, err)
	}
	req.Header.Set("User-Agent", m.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoData, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %s", ErrNoData, req.URL.Path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrNoData, err)
	}
	return nil
}

// classify maps MusicBrainz artist types onto the solo/group split used by
// room filters. An empty result means the catalog does not say.
func classify(artistType string) string {
	switch strings.ToLower(strings.TrimSpace(artistType)) {
	case "":
		return ""
	case "person":
		return ClassificationSolo
	case "group":
		return ClassificationGroup
	default:
		return strings.ToLower(artistType)
	}
}
