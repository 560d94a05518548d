package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version is the profile schema tag as well as the release.
	// go build -ldflags "-X github.com/deeplbot/deeplbot/internal/cli.version=0.5.1"
	version = "0.5.0"
	logo    = "\n" +
		"     _                 _ _           _\n" +
		"  __| | ___  ___ _ __ | | |__   ___ | |_\n" +
		" / _` |/ _ \\/ _ \\ '_ \\| | '_ \\ / _ \\| __|\n" +
		"| (_| |  __/  __/ |_) | | |_) | (_) | |_\n" +
		" \\__,_|\\___|\\___| .__/|_|_.__/ \\___/ \\__|\n" +
		"                |_|\n"
)

var rootCmd = &cobra.Command{
	Use:   "deeplbot",
	Short: "deeplbot - Telegram translation bot",
	Long:  color.CyanString(logo) + "\nA Telegram bot that translates messages through a headless browser.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(profileCmd)
}

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, color.CyanString(logo))
	if title != "" {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, "─────────────────────")
	}
}
