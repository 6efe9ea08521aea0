package catalog

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ReadArtistsCSV parses rows of
// id,name,classification,country,tags,begin,end,image where tags are
// separated by semicolons. The first row is a header. Rows without an id or
// name are skipped.
func ReadArtistsCSV(r io.Reader) ([]StaticArtist, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var artists []StaticArtist
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		col := func(n int) string {
			if n < len(row) {
				return strings.TrimSpace(row[n])
			}
			return ""
		}
		id, name := col(0), col(1)
		if id == "" || name == "" {
			continue
		}
		classification := strings.ToLower(col(2))
		switch classification {
		case "", ClassificationSolo, ClassificationGroup:
		default:
			return nil, fmt.Errorf("row %d: unknown classification %q", i+1, col(2))
		}
		artists = append(artists, StaticArtist{
			ID:   id,
			Name: name,
			Detail: Detail{
				Name:           name,
				Classification: classification,
				Country:        col(3),
				Tags:           splitTags(col(4)),
				LifespanBegin:  col(5),
				LifespanEnd:    col(6),
			},
			Image: col(7),
		})
	}
	return artists, nil
}

// WriteStatic writes artists in the format LoadStatic reads.
func WriteStatic(w io.Writer, artists []StaticArtist) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(artists)
}

func splitTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ";") {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
