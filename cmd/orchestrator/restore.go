package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/SentientNarrative/internal/app"
	"github.com/AaronLay10/SentientNarrative/internal/config"
	"github.com/AaronLay10/SentientNarrative/internal/orchestrator"
	"github.com/AaronLay10/SentientNarrative/internal/world"
)

// restoreReport is the JSON printed by the restore command.
type restoreReport struct {
	StoryID  string                  `json:"story_id"`
	Events   int                     `json:"events"`
	Chapter  string                  `json:"chapter,omitempty"`
	Danger   []world.CharacterDanger `json:"danger"`
	Unlocked []string                `json:"unlocked_endings"`
	Pending  *world.Handoff          `json:"pending_minigame,omitempty"`
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Print the world state rebuilt from the event log",
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

		store, err := app.OpenEventStore(env, cfg.Story.ID)
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("SENTIENT_STORE=%s keeps no event log to restore from", env.Store)
		}
		defer store.Close()

		state, n, err := orchestrator.RestoreFromEvents(store, env.RestoreLimit)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}

		w := world.New(cfg.Characters)
		orchestrator.ApplyRestoredState(w, state)
		snap := w.Snapshot()

		report := restoreReport{
			StoryID:  cfg.Story.ID,
			Events:   n,
			Danger:   snap.DangerReport(),
			Unlocked: snap.Unlocked,
		}
		if state != nil {
			report.Chapter = state.Chapter
			report.Pending = state.Pending
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}
