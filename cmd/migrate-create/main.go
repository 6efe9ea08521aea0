package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"music-battle/internal/logger"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	logger.Setup(os.Stderr, false)
	name := pflag.StringP("name", "n", "", "migration name")
	dir := pflag.String("dir", filepath.Join("db", "migrations"), "migrations directory")
	pflag.Parse()

	if *name == "" {
		log.Fatal().Msg("migration name is required")
	}
	if strings.ContainsAny(*name, " ") {
		log.Fatal().Msg("migration name must not contain spaces")
	}

	version := time.Now().UTC().Format("20060102150405")
	base := fmt.Sprintf("%s_%s", version, *name)
	upPath := filepath.Join(*dir, base+".up.sql")
	downPath := filepath.Join(*dir, base+".down.sql")

	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create migrations dir")
	}
	if err := writeFile(upPath, "-- up migration\n"); err != nil {
		log.Fatal().Err(err).Msg("create up migration")
	}
	if err := writeFile(downPath, "-- down migration\n"); err != nil {
		log.Fatal().Err(err).Msg("create down migration")
	}

	log.Info().Str("up", upPath).Str("down", downPath).Msg("created migration")
}

func writeFile(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file already exists: %s", path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
