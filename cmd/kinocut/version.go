package main

import (
	"fmt"
	"os"

	"github.com/kinocut/kinocut/pkg/presenter"
	"github.com/kinocut/kinocut/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		out, err := version.Get().JSON()
		if err != nil {
			presenter.Error(err, "rendering version info")
			os.Exit(1)
		}
		fmt.Println(out)
	},
}
