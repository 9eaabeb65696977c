package commands

import (
	"github.com/spf13/cobra"
)

var (
	// configPath is the YAML configuration file.
	configPath string
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "karaoke",
	Short: "Turn PDF slide decks into narrated voiceovers",
	Long: `Karaoke reads a PDF slide deck, writes a short spoken script for
every slide with a multimodal model, synthesizes the narration in the deck's
own language (Dutch or English), and packages the result as a video or an
asset archive.`,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", "config.yaml",
		"Path to the YAML configuration file",
	)

	rootCmd.AddCommand(narrateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
