// Command fnctl lists, invokes and serves the functions locally.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/biso/functions/internal/config"
)

var Version = "dev"

var configFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fnctl",
		Short:         "Run the membership functions outside Lambda",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", os.Getenv("CONFIG_FILE"), "YAML config file")

	root.AddCommand(listCmd())
	root.AddCommand(invokeCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(erpCmd())
	return root
}

func loadConfig() (*config.Config, error) {
	return config.LoadFile(configFile)
}
