// Package main is the native-profile cobra CLI: a root
// command with serve (long-running native executor) and worker (C8 model
// worker process) subcommands, grounded on api/cmd/helix/root.go's
// cobra.Command tree and api/cmd/hydra/main.go's zerolog ConsoleWriter +
// signal-handling shutdown shape.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	_ "github.com/helixml/corepipe/pkg/nodes/calculator"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "corepipe",
		Short: "Corepipe",
		Long:  "Embeddable real-time multimedia pipeline executor",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newWorkerCmd())
	return root
}

func configureLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal().Err(err).Msg("corepipe exited with an error")
	}
}
