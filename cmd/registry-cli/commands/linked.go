package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(personsCmd)
	rootCmd.AddCommand(branchesCmd)
}

var personsCmd = &cobra.Command{
	Use:   "persons <taxID>",
	Short: "Lists persons holding positions in the companies registered under a tax id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		printPersons(service.LinkedPersonsForTaxID(cmd.Context(), args[0]))
	},
}

var branchesCmd = &cobra.Command{
	Use:   "branches <taxID>",
	Short: "Lists branch offices registered under a tax id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		for _, branch := range service.BranchesForTaxID(cmd.Context(), args[0]) {
			printRecord(branch)
		}
	},
}
