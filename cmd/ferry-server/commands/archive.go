package commands

import (
	"fmt"
	"os"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/SpatiumPortae/ferry/internal/file"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Archive packs the output directory into a gzip-compressed tarball.
func Archive() *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive out.tar.gz",
		Short: "Pack every received file into a .tar.gz archive",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("output_dir", cmd.Flags().Lookup("output-dir")); err != nil {
				return fmt.Errorf("binding output-dir flag: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, err := config.Load()
			if err != nil {
				return err
			}
			n, err := archive(afero.NewOsFs(), cnf.OutputDir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "archived %d files from %s into %s\n", n, cnf.OutputDir, args[0])
			return nil
		},
	}
	archiveCmd.Flags().StringP("output-dir", "o", config.GetDefault().OutputDir, "Directory received files are read from")
	return archiveCmd
}

func archive(fs afero.Fs, dir, out string) (int, error) {
	f, err := fs.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", out, err)
	}
	n, err := file.PackDir(fs, dir, f, out)
	if err != nil {
		f.Close()
		return n, err
	}
	if err := f.Close(); err != nil {
		return n, fmt.Errorf("closing %s: %w", out, err)
	}
	return n, nil
}
