package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "registry-cli",
	Short: "registry-cli inspects external business registries from the command line.",
}

var dumpHttp *bool

func init() {
	dumpHttp = rootCmd.PersistentFlags().Bool(
		"dump-http", false,
		"Write full HTTP transcripts to .dev/resty/registry for debugging.",
	)
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
