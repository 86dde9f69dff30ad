package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mbshop/storefront/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(2)
	}
}

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront shopping session CLI",
	Long:  "Storefront: browse, fill a cart, and check out against a storefront backend from the terminal.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	cli.AddPersistentFlags(rootCmd)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("storefront version %s\n", version))

	cli.AddCommands(rootCmd)
}
