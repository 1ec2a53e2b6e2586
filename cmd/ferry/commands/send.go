package commands

import (
	"fmt"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/SpatiumPortae/ferry/internal/logger"
	"github.com/SpatiumPortae/ferry/internal/sender"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Send is the top level `ferry` command: every argument is a file to push to
// the configured server as a single batch.
func Send(version string) *cobra.Command {
	defaults := config.GetDefault()
	sendCmd := &cobra.Command{
		Use:          "ferry file1 file2...",
		Short:        "Send one or more files to a ferry server",
		Long:         "Sends the given files to a ferry server as one batch. Files that cannot be read are skipped.",
		Version:      version,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for key, flag := range map[string]string{
				"address":       "address",
				"port":          "port",
				"legacy_header": "legacy-header",
				"verbose":       "verbose",
			} {
				if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return fmt.Errorf("binding %s flag: %w", flag, err)
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := config.Load()
			if err != nil {
				return err
			}
			if err := cnf.Validate(); err != nil {
				return err
			}
			if err := validateAddress(cnf.Addr()); err != nil {
				return fmt.Errorf("%w: (%s) is not a valid server address", err, cnf.Addr())
			}

			lgr := logger.NewConsole(cnf.Verbose)
			defer func() { _ = lgr.Sync() }()
			ctx := logger.WithLogger(cmd.Context(), lgr)

			s := sender.New(
				sender.WithLegacyHeader(cnf.LegacyHeader),
				sender.WithDialTimeout(cnf.DialTimeout),
				sender.WithWriteTimeout(cnf.WriteTimeout),
			)
			res, err := s.Transfer(ctx, cnf.Addr(), args)
			if err != nil {
				return fmt.Errorf("sending batch to %s: %w", cnf.Addr(), err)
			}
			lgr.Info("batch sent",
				zap.Int("declared", res.Declared),
				zap.Int("sent", res.Sent),
				zap.Int64("bytes", res.Bytes),
				zap.Int("skipped", len(multierr.Errors(res.Skipped))),
			)
			return nil
		},
	}
	sendCmd.Flags().StringP("address", "a", defaults.Address, addressFlagDesc)
	sendCmd.Flags().IntP("port", "p", defaults.Port, "Port of the ferry server")
	sendCmd.Flags().Bool("legacy-header", false, legacyHeaderFlagDesc)
	sendCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information")
	return sendCmd
}
