package verify

import (
	"context"
	"fmt"
	"strings"

	"music-battle/internal/catalog"
	"music-battle/internal/room"
)

const DefaultThreshold = 0.70

type FailureKind string

const (
	FailNone        FailureKind = ""
	FailEmpty       FailureKind = "empty"
	FailNotFound    FailureKind = "not_found"
	FailSuggestion  FailureKind = "did_you_mean"
	FailDuplicate   FailureKind = "already_used"
	FailRole        FailureKind = "role_mismatch"
	FailGenre       FailureKind = "wrong_genre"
	FailUnavailable FailureKind = "unavailable"
)

type Request struct {
	Name        string
	Genre       string
	ArtistType  room.ArtistType
	UsedArtists []string
}

// Result is the verdict on one answer. Every failure ends the game for the
// submitter; Reason is what both players see.
type Result struct {
	Valid      bool        `json:"valid"`
	Artist     string      `json:"artist,omitempty"`
	Score      float64     `json:"score"`
	Kind       FailureKind `json:"kind,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
	Warning    string      `json:"warning,omitempty"`
}

type Verifier struct {
	catalog   catalog.Catalog
	threshold float64
}

func New(c catalog.Catalog, threshold float64) *Verifier {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Verifier{catalog: c, threshold: threshold}
}

// BestMatch searches the catalog and returns the highest scoring candidate.
// Ties keep the catalog's order.
func (v *Verifier) BestMatch(ctx context.Context, name string) (catalog.Candidate, float64, error) {
	candidates, err := v.catalog.SearchByName(ctx, name)
	if err != nil {
		return catalog.Candidate{}, 0, err
	}
	if len(candidates) == 0 {
		return catalog.Candidate{}, 0, catalog.ErrNoData
	}
	best, score := v.pick(name, candidates)
	return best, score, nil
}

func (v *Verifier) Verify(ctx context.Context, req Request) Result {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fail(FailEmpty, "Enter an artist")
	}

	candidates, err := v.catalog.SearchByName(ctx, name)
	if err != nil {
		return fail(FailUnavailable, "Connection error")
	}
	if len(candidates) == 0 {
		return fail(FailNotFound, "Artist not found")
	}
	best, score := v.pick(name, candidates)
	if score < v.threshold {
		res := fail(FailSuggestion, fmt.Sprintf("Not found. Did you mean %q?", best.Name))
		res.Suggestion = best.Name
		res.Score = score
		return res
	}

	if IsUsed(best.Name, req.UsedArtists) {
		res := fail(FailDuplicate, fmt.Sprintf("%s was already used", best.Name))
		res.Score = score
		return res
	}

	// Missing detail data is not held against the player.
	detail, err := v.catalog.GetDetail(ctx, best.ID)
	if err != nil {
		return Result{Valid: true, Artist: best.Name, Score: score, Warning: "Genre not verified"}
	}

	if reason := roleMismatch(req.ArtistType, detail.Classification, best.Name); reason != "" {
		res := fail(FailRole, reason)
		res.Score = score
		return res
	}

	if genre, ok := LookupGenre(req.Genre); ok && len(detail.Tags) > 0 && !overlaps(detail.Tags, genre.Tags) {
		res := fail(FailGenre, fmt.Sprintf("%s is not %s", best.Name, genre.Name))
		res.Score = score
		return res
	}

	return Result{Valid: true, Artist: best.Name, Score: score}
}

func (v *Verifier) pick(name string, candidates []catalog.Candidate) (catalog.Candidate, float64) {
	best := 0
	bestScore := Similarity(name, candidates[0].Name)
	for i := 1; i < len(candidates); i++ {
		if score := Similarity(name, candidates[i].Name); score > bestScore {
			best, bestScore = i, score
		}
	}
	return candidates[best], bestScore
}

// IsUsed reports whether name matches any used artist after normalization.
func IsUsed(name string, used []string) bool {
	normalized := Normalize(name)
	for _, u := range used {
		if Normalize(u) == normalized {
			return true
		}
	}
	return false
}

func roleMismatch(want room.ArtistType, classification, name string) string {
	if want == "" || want == room.ArtistBoth || classification == "" {
		return ""
	}
	switch want {
	case room.ArtistSolo:
		if classification != catalog.ClassificationSolo {
			return fmt.Sprintf("%s is not a solo artist", name)
		}
	case room.ArtistBands:
		if classification != catalog.ClassificationGroup {
			return fmt.Sprintf("%s is not a band/group", name)
		}
	}
	return ""
}

func overlaps(tags, genreTags []string) bool {
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		for _, genreTag := range genreTags {
			if strings.Contains(tag, genreTag) || strings.Contains(genreTag, tag) {
				return true
			}
		}
	}
	return false
}

func fail(kind FailureKind, reason string) Result {
	return Result{Valid: false, Kind: kind, Reason: reason}
}
