// Command snowpack-install is the thin CLI front end over internal/install:
// out of core scope per the spec (the command-line front end is an
// external collaborator), but carried as ambient glue the way the
// teacher's own main.go wires its subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mprinc/snowpack/internal/config"
	"github.com/mprinc/snowpack/internal/install"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snowpack-install",
		Short: "install npm dependencies into browser-native ES modules",
	}
	rootCmd.AddCommand(installCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func installCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install",
		Short: "scan sources, resolve dependencies, and bundle them for the browser",
		RunE:  runInstall,
	}

	cmd.Flags().StringP("config", "c", "", "path to snowpack.config.json/yaml/toml")
	cmd.Flags().String("root", ".", "project root (node_modules lookup root)")
	cmd.Flags().Bool("skip-failed-resolutions", false, "drop a target instead of aborting when it can't be resolved")

	viper.BindPFlag("config", cmd.Flags().Lookup("config"))
	viper.BindPFlag("root", cmd.Flags().Lookup("root"))
	viper.BindPFlag("skip-failed-resolutions", cmd.Flags().Lookup("skip-failed-resolutions"))

	return cmd
}

func runInstall(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	root := viper.GetString("root")
	skipFailed := viper.GetBool("skip-failed-resolutions")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	result := install.Run(cfg, root, skipFailed)
	if !result.Success {
		return result.Err
	}
	if result.HasError {
		fmt.Fprintln(os.Stderr, "install completed with warnings")
	}
	fmt.Printf("installed %d dependencies into %s\n", len(result.ImportMap), cfg.InstallOptions.Dest)
	return nil
}
