package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/SpatiumPortae/ferry/cmd/ferry/commands"
	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/spf13/cobra"
)

// version is set at link time with -ldflags "-X main.version=...".
var version = "v0.0.0-dev"

func main() {
	rootCmd := commands.Send(version)
	rootCmd.AddCommand(commands.Config())
	rootCmd.AddCommand(commands.Version(version))

	cobra.OnInitialize(func() {
		if err := config.Init(); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
