package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	modeFlag string
	rootCmd  = &cobra.Command{
		Use:   "introctl",
		Short: "CLI for the intro-meeting scheduler",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "intro service base URL")
	rootCmd.PersistentFlags().StringVarP(&modeFlag, "mode", "m", "coffee", "meeting mode (coffee or buddy)")

	rootCmd.AddCommand(newBookCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newCleanupCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
