package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fusshn/booking-notifier/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("booking-notifier " + build.String())
	},
}
