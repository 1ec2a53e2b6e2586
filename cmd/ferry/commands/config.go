package commands

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/SpatiumPortae/ferry/internal/config"
	"github.com/alecthomas/chroma/quick"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config manages the settings file shared by ferry and ferry-server.
func Config() *cobra.Command {
	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Output the path of the config file",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), viper.ConfigFileUsed())
		},
	}

	viewCmd := &cobra.Command{
		Use:   "view",
		Short: "View the configured options",
		Long:  "Prints the config file. With --resolved the effective settings are printed instead, defaults filled in for every key the file leaves out.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cnf, loadErr := config.Load()
			if loadErr == nil {
				loadErr = cnf.Validate()
			}

			var contents []byte
			if resolved, _ := cmd.Flags().GetBool("resolved"); resolved {
				if loadErr != nil {
					return loadErr
				}
				contents = cnf.Yaml()
			} else {
				configPath := viper.ConfigFileUsed()
				b, err := os.ReadFile(configPath)
				if err != nil {
					return fmt.Errorf("config file (%s) could not be read: %w", configPath, err)
				}
				contents = b
			}
			highlightYaml(cmd.OutOrStdout(), contents)
			if loadErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", loadErr)
			}
			return nil
		},
	}
	viewCmd.Flags().Bool("resolved", false, "Print the effective settings instead of the file")

	editCmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := viper.ConfigFileUsed()
			// $EDITOR may carry arguments, exec.Command needs the bare executable.
			editor, _, _ := strings.Cut(os.Getenv("EDITOR"), " ")
			if len(editor) == 0 {
				//lint:ignore ST1005 error string is command output
				return fmt.Errorf(
					"Could not find default editor (is the $EDITOR variable set?)\nOptionally you can open the file (%s) manually", configPath,
				)
			}

			editorCmd := exec.Command(editor, configPath)
			editorCmd.Stdin = os.Stdin
			editorCmd.Stdout = os.Stdout
			editorCmd.Stderr = os.Stderr
			if err := editorCmd.Run(); err != nil {
				return fmt.Errorf("failed to open file (%s) in editor (%s): %w", configPath, editor, err)
			}
			if err := reloadConfig(); err != nil {
				return fmt.Errorf("edited config file (%s) is not valid, run `ferry config reset` to restore the defaults: %w", configPath, err)
			}
			return nil
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset to the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := viper.ConfigFileUsed()
			if err := os.WriteFile(configPath, config.GetDefault().Yaml(), 0o644); err != nil {
				return fmt.Errorf("config file (%s) could not be written to: %w", configPath, err)
			}
			if err := reloadConfig(); err != nil {
				return fmt.Errorf("reloading config file (%s): %w", configPath, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %s to the defaults\n", configPath)
			return nil
		},
	}

	configCmd := &cobra.Command{
		Use:       "config",
		Short:     "View and configure options",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{pathCmd.Name(), viewCmd.Name(), editCmd.Name(), resetCmd.Name()},
		Run:       func(cmd *cobra.Command, args []string) {},
	}
	configCmd.AddCommand(pathCmd, viewCmd, editCmd, resetCmd)
	return configCmd
}

// reloadConfig rereads the config file into viper and validates the result.
func reloadConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		return err
	}
	cnf, err := config.Load()
	if err != nil {
		return err
	}
	return cnf.Validate()
}

func highlightYaml(w io.Writer, contents []byte) {
	if err := quick.Highlight(w, string(contents), "yaml", "terminal256", "onedark"); err != nil {
		fmt.Fprintln(w, string(contents))
	}
}
