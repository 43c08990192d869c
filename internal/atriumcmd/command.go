// Package atriumcmd wires atrium's command-line surface: a single binary
// that runs the gateway against a YAML config file.
package atriumcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nicolaspernoud/atrium/internal/server"
)

// version is a fixed constant ("dev"); being a const it cannot be
// overridden with -ldflags -X, and this tree carries no release tooling
// of its own.
const version = "dev"

func newRootCommand() *cobra.Command {
	var configPath string

	runGateway := func(cmd *cobra.Command, args []string) error {
		ctx, cancel := server.NotifyContext()
		defer cancel()
		return server.Run(ctx, configPath)
	}

	root := &cobra.Command{
		Use:   "atrium",
		Short: "Atrium is a self-hosted reverse-proxy and access gateway.",
		Long: `Atrium routes HTTPS/HTTP traffic arriving at a single wildcard domain
to a collection of backend services, enforcing authentication,
role-based authorization, and host-based dispatch.

Run 'atrium run' with an atrium.yaml configuration file in the working
directory, or point it elsewhere with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runGateway,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "atrium.yaml", "path to the YAML configuration file")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the gateway in the foreground",
		RunE:  runGateway,
	})

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the atrium version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	})

	return root
}

// Main is the entrypoint for cmd/atrium.
func Main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
