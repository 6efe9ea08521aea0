package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"music-battle/internal/catalog"
	"music-battle/internal/config"
	"music-battle/internal/db"
	"music-battle/internal/logger"
	"music-battle/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

type Config struct {
	name    string
	store   string
	catalog string
	verbose bool

	base config.Config
}

func (c *Config) validate() error {
	c.name = strings.TrimSpace(c.name)
	if c.store == "" {
		c.store = c.base.StoreURL
	}
	switch {
	case c.store == storeMemory, c.store == storePostgres:
	case strings.HasPrefix(c.store, "http://"), strings.HasPrefix(c.store, "https://"):
	default:
		return fmt.Errorf("invalid --store %q (want an http(s) URL, %q or %q)", c.store, storePostgres, storeMemory)
	}
	return nil
}

func (c *Config) requireName() error {
	if c.name == "" {
		return errors.New("a player name is required (--name or MUSICBATTLE_NAME)")
	}
	return nil
}

func (c *Config) openStore() (store.Store, error) {
	switch c.store {
	case storeMemory:
		log.Warn().Msg("memory store: nobody else can join this process")
		return store.NewMemory(), nil
	case storePostgres:
		conn, err := db.Open(c.base.DatabaseURL, db.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 2})
		if err != nil {
			return nil, err
		}
		return store.NewPostgres(conn, c.base.StorePoll()), nil
	default:
		return store.NewRemote(c.store), nil
	}
}

func (c *Config) openCatalog() (catalog.Catalog, error) {
	if c.catalog != "" {
		return catalog.LoadStatic(c.catalog)
	}
	return catalog.NewMusicBrainz(catalog.MusicBrainzConfig{
		BaseURL:           c.base.CatalogBaseURL,
		CoverArtURL:       c.base.CoverArtBaseURL,
		UserAgent:         c.base.CatalogUserAgent,
		RequestsPerSecond: c.base.CatalogRequestsPerSec,
	}), nil
}

func newCmd(cfg *Config, in io.Reader, out io.Writer) *cobra.Command {
	out = &lockedWriter{w: out}
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	cfg.base = config.Load()

	v := viper.New()
	v.SetEnvPrefix("MUSICBATTLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "battle",
		Short: "Take turns naming artists of a genre against a friend.",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.Setup(os.Stderr, cfg.verbose)
			return cfg.validate()
		},
	}

	fs := cmd.PersistentFlags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&cfg.name, "name", "n", "", "your player name (env: MUSICBATTLE_NAME)")
	fs.StringVarP(&cfg.store, "store", "s", "", "store service URL, \"postgres\" or \"memory\" (env: MUSICBATTLE_STORE)")
	fs.StringVar(&cfg.catalog, "catalog", "", "offline catalog JSON instead of MusicBrainz (env: MUSICBATTLE_CATALOG)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display debug logs (env: MUSICBATTLE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(
		newCreateCmd(cfg, in, out),
		newJoinCmd(cfg, in, out),
		newRoomsCmd(cfg, out),
		newGenresCmd(out),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	return cmd
}
