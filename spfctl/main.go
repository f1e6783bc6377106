package main

import (
	"context"
	"fmt"
	"net/netip"
	"os"
	"time"

	"github.com/davidbalbert/spfd/api"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		socketPath string
		timeout    time.Duration
		client     *api.Client
	)

	root := &cobra.Command{
		Use:          "spfctl",
		Short:        "Inspect a running spfd",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := api.NewClient(socketPath)
			if err != nil {
				return err
			}
			client = c

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return client.Close()
		},
	}

	root.PersistentFlags().StringVarP(&socketPath, "socket", "s", "/var/run/spfd.sock", "path to the spfd socket")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for spfd")

	withTimeout := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the version of spfd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			version, err := client.GetVersion(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "v%s\n", version)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "routes",
		Aliases: []string{"route", "rib"},
		Short:   "Show the routing table",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			routes, err := client.RoutingTable(ctx)
			if err != nil {
				return err
			}

			renderRoutes(cmd.OutOrStdout(), routes)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:     "database",
		Aliases: []string{"db", "lsdb"},
		Short:   "Show the link state database",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			lsas, err := client.Database(ctx)
			if err != nil {
				return err
			}

			renderDatabase(cmd.OutOrStdout(), lsas)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "lookup ADDR",
		Short: "Show the route used to reach ADDR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := netip.ParseAddr(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := withTimeout(cmd)
			defer cancel()

			route, err := client.Lookup(ctx, addr)
			if err != nil {
				return err
			}

			renderRoutes(cmd.OutOrStdout(), []api.Route{route})
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "shutdown",
		Short: "Stop spfd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd)
			defer cancel()

			return client.Shutdown(ctx)
		},
	})

	return root
}
