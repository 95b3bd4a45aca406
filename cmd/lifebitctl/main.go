package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var databaseURL string

var rootCmd = &cobra.Command{
	Use:   "lifebitctl",
	Short: "lifebitctl manages LifeBit record data from the terminal",
	Long:  "lifebitctl seeds and cleans dummy exercise/diet records and exposes the amount normalizer and calorie estimator for quick checks.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "db", "", "DATABASE_URL override")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
