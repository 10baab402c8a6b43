package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/matsen/findit/internal/cache"
	"github.com/matsen/findit/internal/config"
	"github.com/matsen/findit/internal/convert"
	"github.com/matsen/findit/internal/crossref"
	"github.com/matsen/findit/internal/fetch"
	"github.com/matsen/findit/internal/findit"
	"github.com/matsen/findit/internal/journal"
	"github.com/matsen/findit/internal/logging"
	"github.com/matsen/findit/internal/ncbi"
)

// app holds the clients a command needs, built from config.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	store    cache.Store
	sess     *fetch.Session
	records  ncbi.Backend
	matcher  *crossref.Client
	resolver *convert.Resolver
	finder   *findit.Finder
}

// appOptions carries per-command overrides of the config.
type appOptions struct {
	bestGuess bool
	minScore  float64 // 0 keeps the configured value
}

// loadConfig reads the config file and environment and applies global flags.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}
	if noCache {
		cfg.CachePath = "none"
	}
	return cfg, cfg.Validate()
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() config.Config {
	cfg, err := loadConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// newApp wires every client from cfg. The caller must Close the app.
func newApp(cfg config.Config, opts appOptions) (*app, error) {
	log := logging.New(os.Stderr, verbose, logJSON)

	var store cache.Store = cache.Nop{}
	if cfg.CacheEnabled() {
		s, err := cache.OpenSQLite(cfg.CachePath)
		if err != nil {
			return nil, fmt.Errorf("%w: opening cache: %v", config.ErrInvalidConfig, err)
		}
		store = s
	}

	sess := fetch.NewSession(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithLogger(log),
	)
	records := ncbi.NewBackend(cfg, ncbi.WithCache(store), ncbi.WithLogger(log))
	matcher := crossref.NewClient(
		crossref.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		crossref.WithUserAgent(cfg.UserAgent),
		crossref.WithCache(store),
		crossref.WithLogger(log),
	)

	minScore := cfg.CrossrefMinScore
	if opts.minScore > 0 {
		minScore = opts.minScore
	}
	resolver := convert.NewResolver(records, matcher,
		convert.WithMinScore(minScore),
		convert.WithBestGuess(opts.bestGuess),
		convert.WithLogger(log),
	)

	dopts := []findit.Option{findit.WithVerify(cfg.Verify), findit.WithLogger(log)}
	if cfg.HasAAASCredentials() {
		dopts = append(dopts, findit.WithCredentials(cfg.AAASUsername, cfg.AAASPassword))
	}
	dispatcher := findit.NewDispatcher(journal.Default(), sess, dopts...)

	finder := findit.NewFinder(dispatcher, records, resolver,
		findit.WithCache(store),
		findit.WithRetryErrors(cfg.RetryErrors),
		findit.WithPaywalled(cfg.AllowPaywalled),
		findit.WithBestGuess(opts.bestGuess),
		findit.WithFinderLogger(log),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		sess:     sess,
		records:  records,
		matcher:  matcher,
		resolver: resolver,
		finder:   finder,
	}, nil
}

// mustNewApp loads config and wires the clients, exits on error.
func mustNewApp(opts appOptions) *app {
	cfg := mustLoadConfig()
	a, err := newApp(cfg, opts)
	if err != nil {
		exitWithError(exitCodeFor(err), "%v", err)
	}
	return a
}

// Close releases the cache.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("closing cache")
	}
}
