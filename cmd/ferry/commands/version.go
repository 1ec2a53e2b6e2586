package commands

import (
	"fmt"

	"github.com/SpatiumPortae/ferry/internal/semver"
	"github.com/spf13/cobra"
)

func Version(version string) *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display the installed version of ferry",
		Long:  "Displays the installed version of ferry. With --server the version of a running server is fetched from its status endpoint and checked for compatibility.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			statusAddr, _ := cmd.Flags().GetString("server")
			if statusAddr == "" {
				return nil
			}
			if err := validateAddress(statusAddr); err != nil {
				return fmt.Errorf("%w: (%s) is not a valid status address", err, statusAddr)
			}
			serverVer, err := semver.FetchServerVersion(cmd.Context(), statusAddr)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "server %s\n", serverVer)
			ver, err := semver.Parse(version)
			if err != nil {
				return fmt.Errorf("parsing version: %w", err)
			}
			if !ver.Compatible(serverVer) {
				return fmt.Errorf("incompatible version %s -> %s", ver, serverVer)
			}
			return nil
		},
	}
	versionCmd.Flags().String("server", "", "Status address (host:port) of a ferry server to compare against")
	return versionCmd
}
