package verify

import "sort"

type Genre struct {
	Key  string
	Name string
	Tags []string
}

var genres = map[string]Genre{
	"rock": {
		Key:  "rock",
		Name: "Rock",
		Tags: []string{
			"rock", "classic rock", "hard rock", "alternative rock", "indie rock",
			"punk rock", "post punk", "garage rock", "psychedelic rock", "progressive rock",
			"metal", "heavy metal", "thrash metal", "speed metal", "power metal",
			"death metal", "brutal death metal", "technical death metal", "black metal",
			"doom metal", "sludge metal", "grindcore", "deathcore",
			"nu metal", "metalcore", "hardcore punk",
		},
	},
	"pop":        {Key: "pop", Name: "Pop", Tags: []string{"pop", "synth-pop", "dance-pop", "pop rock"}},
	"rap":        {Key: "rap", Name: "Rap/Hip Hop", Tags: []string{"rap", "hip hop", "hip-hop", "gangsta rap", "trap"}},
	"electronic": {Key: "electronic", Name: "Electronic", Tags: []string{"electronic", "edm", "house", "techno", "trance", "dubstep"}},
	"latin":      {Key: "latin", Name: "Latin", Tags: []string{"latin", "reggaeton", "salsa", "bachata", "cumbia", "merengue", "banda"}},
	"jazz":       {Key: "jazz", Name: "Jazz", Tags: []string{"jazz", "bebop", "smooth jazz", "blues", "soul"}},
	"country":    {Key: "country", Name: "Country", Tags: []string{"country", "bluegrass", "folk"}},
	"reggae":     {Key: "reggae", Name: "Reggae", Tags: []string{"reggae", "dancehall", "dub", "ska"}},
}

func LookupGenre(key string) (Genre, bool) {
	g, ok := genres[key]
	return g, ok
}

// Genres lists the configured genres ordered by key.
func Genres() []Genre {
	out := make([]Genre, 0, len(genres))
	for _, g := range genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
