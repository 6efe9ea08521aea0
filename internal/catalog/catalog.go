package catalog

import (
	"context"
	"errors"
	"strings"
)

const (
	ClassificationSolo  = "solo"
	ClassificationGroup = "group"
)

var (
	// ErrNoData means the catalog had nothing usable: a non-success
	// response, a malformed body, or no network.
	ErrNoData = errors.New("catalog data unavailable")
)

type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Detail struct {
	Name           string   `json:"name"`
	Classification string   `json:"classification,omitempty"`
	Country        string   `json:"country,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	LifespanBegin  string   `json:"lifespanBegin,omitempty"`
	LifespanEnd    string   `json:"lifespanEnd,omitempty"`
}

// Catalog is the reference service answers are checked against.
type Catalog interface {
	SearchByName(ctx context.Context, text string) ([]Candidate, error)
	GetDetail(ctx context.Context, id string) (Detail, error)
	GetAssociatedWorkImage(ctx context.Context, id string) (string, error)
}

// Info is the post-game summary shown for a used artist.
type Info struct {
	Name      string `json:"name"`
	Country   string `json:"country"`
	Kind      string `json:"kind"`
	BeginYear string `json:"beginYear"`
	EndYear   string `json:"endYear"`
	Genres    string `json:"genres"`
	Image     string `json:"image,omitempty"`
}

// Describe builds Info for a candidate. The image is best effort; a missing
// detail record is reported as ErrNoData.
func Describe(ctx context.Context, c Catalog, candidate Candidate) (Info, error) {
	detail, err := c.GetDetail(ctx, candidate.ID)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Name:      firstNonEmpty(detail.Name, candidate.Name),
		Country:   firstNonEmpty(detail.Country, "Unknown"),
		Kind:      "Solo artist",
		BeginYear: firstNonEmpty(year(detail.LifespanBegin), "?"),
		EndYear:   firstNonEmpty(year(detail.LifespanEnd), "Active"),
		Genres:    "Not specified",
	}
	if detail.Classification == ClassificationGroup {
		info.Kind = "Band"
	}
	if len(detail.Tags) > 0 {
		tags := detail.Tags
		if len(tags) > 5 {
			tags = tags[:5]
		}
		info.Genres = strings.Join(tags, ", ")
	}
	if image, err := c.GetAssociatedWorkImage(ctx, candidate.ID); err == nil {
		info.Image = image
	}
	return info, nil
}

func year(date string) string {
	if date == "" {
		return ""
	}
	y, _, _ := strings.Cut(date, "-")
	return y
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
