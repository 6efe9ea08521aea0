package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// StaticArtist is one entry of a Static catalog.
type StaticArtist struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Detail   Detail `json:"detail"`
	NoDetail bool   `json:"noDetail,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Static serves a fixed artist list from memory. Search is a crude stand-in
// for the real service's fuzzy matching: names containing the query (or
// contained in it) come first, then names starting with the same letter.
type Static struct {
	mu      sync.RWMutex
	artists []StaticArtist
	err     error
}

func NewStatic(artists ...StaticArtist) *Static {
	return &Static{artists: artists}
}

// LoadStatic reads a JSON array of StaticArtist from path.
func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artists []StaticArtist
	if err := json.Unmarshal(data, &artists); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewStatic(artists...), nil
}

// Fail makes every later call return err; nil restores service.
func (s *Static) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Static) SearchByName(ctx context.Context, text string) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	query := strings.ToLower(strings.TrimSpace(text))
	if utf8.RuneCountInString(query) < minQueryLength {
		return nil, nil
	}
	first, _ := utf8.DecodeRuneInString(query)
	var matches, near []Candidate
	for _, a := range s.artists {
		name := strings.ToLower(a.Name)
		c := Candidate{ID: a.ID, Name: a.Name}
		switch {
		case strings.Contains(name, query) || strings.Contains(query, name):
			matches = append(matches, c)
		case strings.HasPrefix(name, string(first)):
			near = append(near, c)
		}
	}
	out := append(matches, near...)
	if len(out) > searchLimit {
		out = out[:searchLimit]
	}
	return out, nil
}

func (s *Static) GetDetail(ctx context.Context, id string) (Detail, error) {
	a, err := s.find(id)
	if err != nil {
		return Detail{}, err
	}
	if a.NoDetail {
		return Detail{}, ErrNoData
	}
	d := a.Detail
	if d.Name == "" {
		d.Name = a.Name
	}
	return d, nil
}

func (s *Static) GetAssociatedWorkImage(ctx context.Context, id string) (string, error) {
	a, err := s.find(id)
	if err != nil {
		return "", err
	}
	if a.Image == "" {
		return "", ErrNoData
	}
	return a.Image, nil
}

func (s *Static) find(id string) (StaticArtist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return StaticArtist{}, s.err
	}
	for _, a := range s.artists {
		if a.ID == id {
			return a, nil
		}
	}
	return StaticArtist{}, ErrNoData
}
