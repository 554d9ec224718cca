package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "Searches the commercial registry for companies and persons.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		printMatches(service.SearchCompany(cmd.Context(), args[0]))
	},
}
