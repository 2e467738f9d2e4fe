package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Benwil1/latest-copy-sub000/config"
	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/notify"
	"github.com/Benwil1/latest-copy-sub000/profiles"
	"github.com/Benwil1/latest-copy-sub000/sqlstore"
)

// app holds the wired service components.
type app struct {
	cfg      *config.Config
	store    *sqlstore.Store
	profiles profiles.Source
	engine   *matching.Engine
	hub      *notify.Hub
	bus      *notify.Bus
	relay    *notify.Relay
}

// openStore connects to the configured database.
func openStore(ctx context.Context, cfg *config.Config) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	logging.Info().Str("driver", cfg.Database.Driver).Msg("Database connection established successfully")
	return store, nil
}

func openProfileSource(ctx context.Context, cfg *config.Config, store *sqlstore.Store) (profiles.Source, error) {
	var src profiles.Source
	switch cfg.Profiles.Source {
	case "dynamodb":
		client, err := profiles.NewDynamoClient(ctx, cfg.Profiles.AWSRegion)
		if err != nil {
			return nil, err
		}
		src = profiles.NewDynamoSource(client, cfg.Profiles.DynamoDBTable)
	default:
		src = profiles.NewSQLSource(store.DB(), store.Driver())
	}
	return profiles.NewBreaker("profiles-"+cfg.Profiles.Source, src, profiles.BreakerSettings{}), nil
}

// openApp wires storage, profiles, the engine and match notification.
// Match events go through the bus so every instance's websocket hub sees
// them; the relay feeds the local hub through a deduper.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store}

	if a.profiles, err = openProfileSource(ctx, cfg, store); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.Notify.NATSURL != "" {
		if a.bus, err = notify.NewNATSBus(cfg.Notify.NATSURL); err != nil {
			_ = a.Close()
			return nil, err
		}
	} else {
		a.bus = notify.NewMemoryBus()
	}

	a.hub = notify.NewHub(nil)
	dedupe, err := notify.NewDeduper(a.hub, cfg.Notify.DedupeSize)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.relay = notify.NewRelay(a.bus.Subscriber, cfg.Notify.Topic, dedupe)

	a.engine = matching.New(
		store,
		profiles.ContextSource{Fallback: a.profiles},
		notify.NewBusPublisher(a.bus.Publisher, cfg.Notify.Topic),
		matching.Options{
			StorageTimeout: cfg.Storage.Timeout,
			MaxRetries:     retriesOption(cfg.Storage.MaxRetries),
		},
	)
	return a, nil
}

// retriesOption maps a configured 0 to "no retries"; the engine treats 0 as
// "use the default".
func retriesOption(n int) int {
	if n == 0 {
		return -1
	}
	return n
}

func (a *app) Close() error {
	var errs []error
	if a.bus != nil {
		errs = append(errs, a.bus.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
