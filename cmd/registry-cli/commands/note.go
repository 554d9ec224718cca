package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	noteCmd.AddCommand(notePersonsCmd)
	noteCmd.AddCommand(noteBranchesCmd)
	rootCmd.AddCommand(noteCmd)
}

var noteCmd = &cobra.Command{
	Use:   "note <path/to/note.md>",
	Short: "Parses a previously written company note back into a record.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		printRecord(service.CompanyFromNote(cmd.Context(), args[0]))
	},
}

var notePersonsCmd = &cobra.Command{
	Use:   "persons <path/to/note.md>",
	Short: "Lists linked persons for the company described by a note.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		printPersons(service.LinkedPersonsForNote(cmd.Context(), args[0]))
	},
}

var noteBranchesCmd = &cobra.Command{
	Use:   "branches <path/to/note.md>",
	Short: "Lists branch offices for the company described by a note.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		for _, branch := range service.BranchesForNote(cmd.Context(), args[0]) {
			printRecord(branch)
		}
	},
}
