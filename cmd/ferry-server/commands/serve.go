package commands

import (
	"fmt"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/SpatiumPortae/ferry/internal/logger"
	"github.com/SpatiumPortae/ferry/internal/server"
	"github.com/SpatiumPortae/ferry/internal/status"
	"github.com/SpatiumPortae/ferry/internal/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Serve is the top level `ferry-server` command. It accepts batches until
// interrupted and writes every received file into the output directory.
func Serve(version string) *cobra.Command {
	defaults := config.GetDefault()
	serveCmd := &cobra.Command{
		Use:          "ferry-server",
		Short:        "Receive file batches from ferry clients",
		Long:         "Listens for ferry clients and saves every file they send into the output directory. Each connection is handled by its own worker.",
		Version:      version,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			for key, flag := range map[string]string{
				"address":      "address",
				"port":         "port",
				"output_dir":   "output-dir",
				"read_timeout": "read-timeout",
				"status_addr":  "status-addr",
				"verbose":      "verbose",
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
			lgr := logger.New()
			if cnf.Verbose {
				lgr = logger.NewConsole(true)
			}
			defer func() { _ = lgr.Sync() }()
			return serve(cmd, cnf, lgr, version)
		},
	}
	serveCmd.Flags().StringP("address", "a", defaults.Address, "Address to listen on")
	serveCmd.Flags().IntP("port", "p", defaults.Port, "Port to listen on")
	serveCmd.Flags().StringP("output-dir", "o", defaults.OutputDir, "Directory received files are written to")
	serveCmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "Abort a connection after this long without data (0 waits forever)")
	serveCmd.Flags().String("status-addr", defaults.StatusAddr, "Serve /ping, /version and /stats on this address (disabled when empty)")
	serveCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug information to the console")
	return serveCmd
}

func serve(cmd *cobra.Command, cnf config.Config, lgr *zap.Logger, version string) error {
	st := store.New(afero.NewOsFs(), cnf.OutputDir)
	if err := st.Init(); err != nil {
		return err
	}
	srv := server.NewServer(st, lgr,
		server.WithReadTimeout(cnf.ReadTimeout),
		server.WithChunkSize(cnf.ChunkSize),
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		lgr.Info("starting ferry-server", zap.String("version", version), zap.String("output_dir", st.Dir()))
		return srv.ListenAndServe(ctx, cnf.Addr())
	})
	if cnf.StatusAddr != "" {
		g.Go(func() error {
			return status.NewServer(cnf.StatusAddr, srv, lgr, version).ListenAndServe(ctx)
		})
	}
	if err := g.Wait(); err != nil {
		lgr.Error("server stopped", zap.Error(err))
		return err
	}
	lgr.Info("server stopped", zap.Any("stats", srv.Stats()))
	return nil
}
