package app

import (
	"context"
	"fmt"
	"time"

	"helmsman/internal/config"
	"helmsman/internal/logger"
	"helmsman/internal/market"
	"helmsman/internal/profile"
	"helmsman/internal/store"
	statushttp "helmsman/internal/transport/http"

	"golang.org/x/sync/errgroup"
)

// App owns application-level wiring: the profile registry, the live
// evaluation service and the status HTTP server.
type App struct {
	cfg      *config.Config
	live     *LiveService
	statusWS *statushttp.Server
	journal  *store.Journal
	profiles *profile.Registry
}

func New(cfg *config.Config) (*App, error) {
	profiles, err := profile.NewRegistry(cfg.Strategy.ProfilesPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy profiles: %w", err)
	}

	var journal *store.Journal
	if cfg.Journal.Enabled {
		journal, err = store.NewJournal(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open decision journal: %w", err)
		}
	}

	source := market.NewBinanceSource(cfg.Market.RESTBaseURL, time.Duration(cfg.Market.TimeoutSeconds)*time.Second)
	live, err := newLiveService(cfg, source, profiles, journal)
	if err != nil {
		return nil, err
	}

	statusWS, err := statushttp.NewServer(statushttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Status:   live,
		Journal:  journal,
		Profiles: profiles,
	})
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		live:     live,
		statusWS: statusWS,
		journal:  journal,
		profiles: profiles,
	}, nil
}

// Run blocks until ctx is cancelled or a service fails.
func (a *App) Run(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return a.statusWS.Start(ctx)
	})

	group.Go(func() error {
		defer a.shutdown()
		return a.live.Run(ctx)
	})

	logger.Infof("helmsman running: %d instruments, interval=%s, mode=%s",
		len(a.cfg.Market.Instruments), a.cfg.Market.Interval, a.cfg.Trading.Mode)
	return group.Wait()
}

func (a *App) shutdown() {
	a.live.Close()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warnf("journal close: %v", err)
		}
	}
}
