package main

import (
	"log/slog"

	"github.com/ashureev/mention-launcher/internal/config"
	"github.com/ashureev/mention-launcher/internal/control"
	"github.com/ashureev/mention-launcher/internal/events"
	"github.com/ashureev/mention-launcher/internal/health"
	"github.com/ashureev/mention-launcher/internal/launch"
	"github.com/ashureev/mention-launcher/internal/media"
	"github.com/ashureev/mention-launcher/internal/metrics"
	"github.com/ashureev/mention-launcher/internal/monitor"
	"github.com/ashureev/mention-launcher/internal/social"
	"github.com/ashureev/mention-launcher/internal/store"
	"github.com/ashureev/mention-launcher/internal/wallet"
)

type componentDeps struct {
	journal store.Journal
	events  events.Publisher
	metrics *metrics.Metrics
	health  *health.Server
	logger  *slog.Logger
}

// newFactory returns the lazy constructor for the monitor and launch client.
// A missing or malformed wallet key degrades to a throwaway keypair.
func newFactory(cfg *config.Config, deps componentDeps) control.Factory {
	return func() (*control.Components, error) {
		w, err := wallet.Load(cfg.Launch.WalletPrivateKey, deps.logger)
		if err != nil {
			return nil, err
		}
		deps.logger.Info("Wallet loaded", "public_key", w.PublicKey().String(), "degraded", w.Degraded())

		ledger := launch.NewRPCLedger(cfg.Launch.RPCURL, uint(cfg.Launch.SubmitMaxRetries), cfg.Launch.ConfirmTimeout)
		launcher := launch.NewClient(launch.Config{
			MetadataURL: cfg.Launch.MetadataUploadURL,
			LaunchURL:   cfg.Launch.LaunchAPIURL,
			PriorityFee: cfg.Launch.PriorityFee,
			Slippage:    cfg.Launch.SlippagePercent,
		}, w, ledger, media.NewFetcher(cfg.Launch.MetadataImageTimeout), deps.logger)

		feed := social.NewClient(social.Config{
			BaseURL:      cfg.Social.BaseURL,
			APIKey:       cfg.Social.APIKey,
			APISecret:    cfg.Social.APISecret,
			AccessToken:  cfg.Social.AccessToken,
			AccessSecret: cfg.Social.AccessSecret,
		}, deps.logger)

		var observer monitor.StateObserver
		if deps.health != nil {
			observer = deps.health
		}

		mon := monitor.New(monitor.Config{
			PollInterval: cfg.Monitor.PollInterval,
			Lookback:     cfg.Monitor.Lookback,
			ErrorBackoff: cfg.Monitor.ErrorBackoff,
			DevBuy:       cfg.Launch.DevBuy,
		}, monitor.Deps{
			Feed:     feed,
			Launcher: launcher,
			Images:   media.NewFetcher(cfg.Launch.MediaFetchTimeout),
			Journal:  deps.journal,
			Events:   deps.events,
			Metrics:  deps.metrics,
			Observer: observer,
			Logger:   deps.logger,
		})

		return &control.Components{Monitor: mon, Launcher: launcher}, nil
	}
}
