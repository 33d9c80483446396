// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Augenblick-tech/yanami/internal/config"
	"github.com/Augenblick-tech/yanami/internal/database"
	"github.com/Augenblick-tech/yanami/internal/engine"
	"github.com/Augenblick-tech/yanami/internal/metadataclient"
	"github.com/Augenblick-tech/yanami/internal/models"
	"github.com/Augenblick-tech/yanami/internal/rssfeed"
	"github.com/Augenblick-tech/yanami/internal/scheduleclient"
	"github.com/Augenblick-tech/yanami/internal/torrentclient"
	"github.com/Augenblick-tech/yanami/internal/tracker"
)

func runServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tracking engine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New(configPath, cmd.Flags())
			if err != nil {
				return err
			}

			zerolog.SetGlobalLevel(logLevel(cfg.Mode))
			log.Info().Str("mode", cfg.Mode).Str("addr", cfg.Addr).Msg("starting yanami")

			db, err := database.Open(cfg.DBPath)
			if err != nil {
				log.Fatal().Err(err).Msg("open database")
			}
			defer db.Close()

			runtime := buildRuntime(db, cfg.TMDBToken)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = runtime.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			log.Info().Msg("yanami stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("mode", "info", "log level (debug, info, warn)")
	cmd.Flags().String("key", "", "service key")
	cmd.Flags().String("db-path", "", "path to the sqlite database")
	cmd.Flags().String("tmdb-token", "", "TMDB API bearer token")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML config file")

	return cmd
}

func buildRuntime(db *database.DB, tmdbToken string) *engine.Runtime {
	animeStore := models.NewAnimeStore(db.Conn())
	rssRecordStore := models.NewRssRecordStore(db.Conn())
	ruleStore := models.NewRuleStore(db.Conn())
	rssFeedStore := models.NewRssFeedStore(db.Conn())
	configStore := models.NewConfigStore(db.Conn())

	schedule := scheduleclient.NewClient("", 0)
	metadata := metadataclient.NewClient("", tmdbToken, 0)
	anime := tracker.New(schedule, metadata)

	feeds := rssfeed.NewClient()
	torrent := torrentclient.New()
	retirement := engine.NewRetirementBus()

	admitter := engine.NewAdmitter(animeStore, rssRecordStore, torrent, configStore, retirement, nil)
	return engine.NewRuntime(anime, feeds, animeStore, rssFeedStore, ruleStore, admitter, retirement, engine.Config{})
}

func logLevel(mode string) zerolog.Level {
	switch mode {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
