package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tradegate CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tradegate version %s\n", version)
		fmt.Println("Per-user risk gate and paper execution for trade signals")
		fmt.Println("https://github.com/rustyeddy/tradegate")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
