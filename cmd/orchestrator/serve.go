package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientNarrative/internal/api"
	"github.com/AaronLay10/SentientNarrative/internal/app"
	"github.com/AaronLay10/SentientNarrative/internal/config"
	"github.com/AaronLay10/SentientNarrative/internal/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the story and serve the HTTP API",
	Long:  "Restores the world from the event log, connects to the MQTT broker and plays the configured chapters. A minigame left running by a previous process stays parked until its result arrives.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := loadEnv()
		if err != nil {
			return err
		}
		cfg, err := config.LoadStoryConfig(configPath)
		if err != nil {
			return fmt.Errorf("load story config: %w", err)
		}

		authCfg, err := api.LoadAuth()
		if err != nil {
			return err
		}
		api.SetAuth(authCfg)
		if err := api.InitTLS(); err != nil {
			return err
		}
		api.InitMetrics(cfg.Story.ID)

		session := env.SessionID
		if session == "" {
			session = strconv.FormatInt(time.Now().UnixNano(), 36)
		}
		events.SetSessionID(session)

		store, err := app.OpenEventStore(env, cfg.Story.ID)
		if err != nil {
			return err
		}

		a := app.New(cfg, env, store)
		defer a.Close()

		if err := a.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Run(ctx)
	},
}
