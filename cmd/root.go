// Package cmd is the compositor's single cobra root command: no
// subcommands, matching §6's "a single binary with no arguments; exit
// code 0 on clean shutdown, 1 on initialisation failure."
//
// Grounded on the teacher's cmd/root.go Execute()/version-template
// pattern (github.com/spf13/cobra), pared down from its multi-command
// tree (server/client/test) to the single entry point this spec needs.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bnema/swlgo/internal/compositor"
	"github.com/bnema/swlgo/internal/logger"
)

// Version is set during build via -ldflags.
var Version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:          "swlgo",
	Short:        "swlgo is a dynamic-tiling Wayland compositor",
	Long:         "swlgo drives displays directly through DRM/KMS and composites client windows with a dwm-style dynamic-tiling shell.",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s\n" .Version}}`)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func run(cmd *cobra.Command, args []string) error {
	logger.SetLevel(os.Getenv("SWL_LOG_LEVEL"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := compositor.New()
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Run(ctx)
}
