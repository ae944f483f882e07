// Command chatsim drives the widget engine from a terminal for manual QA of persona
// routing, reply selection and the lead gate.
package main

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/studio-concierge/backend/internal/config"
	"github.com/zhouzirui/studio-concierge/backend/internal/model/persona"
	"github.com/zhouzirui/studio-concierge/backend/internal/service/reply"
)

var (
	seedFlag    int64
	catalogFlag string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "chatsim",
	Short: "Simulate widget conversations in the terminal",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && verboseFlag {
			fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
		}
		level := slog.LevelWarn
		if verboseFlag {
			level = slog.LevelDebug
		}
		logger, _ := config.SetupLogger(config.LogConfig{Level: level})
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().Int64VarP(&seedFlag, "seed", "s", -1, "Seed for reply selection (negative: random)")
	rootCmd.PersistentFlags().StringVarP(&catalogFlag, "catalog", "c", "", "Persona catalog YAML (default: built-in)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log engine decisions to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadPersonas() (*persona.MemoryStore, error) {
	if catalogFlag == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}
	items, err := persona.LoadCatalog(catalogFlag)
	if err != nil {
		return nil, err
	}
	return persona.NewMemoryStore(items), nil
}

func newPicker() reply.Picker {
	if seedFlag >= 0 {
		return rand.New(rand.NewPCG(uint64(seedFlag), uint64(seedFlag)))
	}
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
