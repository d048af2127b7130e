package main

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "kimixchange",
	Short: "Swap a face from one photo into another using Gemini",
	Long: `KimiXchange takes a source face and a target scene and asks a Gemini image
model to place the source identity into the target, preserving the target's
pose, lighting and background. The last 20 results are kept in a local history.

The API key is read from GEMINI_API_KEY or from the GPG-encrypted
credentials file at ~/.kimixchange/credentials.gpg.

Examples:
  kimixchange swap --source me.jpg --target beach.jpg --out swapped.png
  kimixchange swap                 # Interactive - pick both images in a dialog
  kimixchange swap -s me.jpg -t poster.png --no-enhance --quality low
  kimixchange history list
  kimixchange history export --out history.zip
  kimixchange validate`,
	Version: commitHash + " (" + buildTime + ")",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
