package main

import (
	"os"

	"music-battle/internal/catalog"
	"music-battle/internal/logger"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	logger.Setup(os.Stderr, false)
	filePath := pflag.StringP("file", "f", "artists.csv", "path to artists csv")
	outPath := pflag.StringP("out", "o", "catalog.json", "path of the offline catalog to write")
	pflag.Parse()

	in, err := os.Open(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open artists")
	}
	defer in.Close()

	artists, err := catalog.ReadArtistsCSV(in)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read artists")
	}

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create catalog")
	}
	if err := catalog.WriteStatic(out, artists); err != nil {
		_ = out.Close()
		log.Fatal().Err(err).Msg("failed to write catalog")
	}
	if err := out.Close(); err != nil {
		log.Fatal().Err(err).Msg("failed to write catalog")
	}

	log.Info().Int("artists", len(artists)).Str("out", *outPath).Msg("catalog written")
}
