package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"registry-backend/lib/registry"
	"registry-backend/lib/serviceutil"
	"registry-backend/lib/textutil"
	"registry-backend/services/extregistry"

	"github.com/spf13/cobra"
)

var fetchAsNote *bool
var fetchNoteDir *string

func init() {
	fetchAsNote = fetchCmd.Flags().Bool("note", false, "Render the record as a company note body instead of a table.")
	fetchNoteDir = fetchCmd.Flags().String("save-note", "", "Write the note body into this directory, named after the company.")
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(hqCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <id> [--note | --save-note <dir>]",
	Short: "Fetches the full company record by its registry id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		record := service.FetchCompanyByID(cmd.Context(), args[0])
		if record == nil {
			return
		}
		if *fetchNoteDir != "" {
			saveNote(*fetchNoteDir, record)
			return
		}
		if *fetchAsNote {
			fmt.Println(extregistry.CompanyNoteBody(record))
			return
		}
		printRecord(record)
	},
}

func saveNote(dir string, record *registry.Record) {
	name := record.Text(registry.KeyName)
	if name == "" {
		name = record.TaxID()
	}
	path := filepath.Join(dir, textutil.SanitizeName(name+"_HQ")+".md")
	err := os.WriteFile(path, []byte(extregistry.CompanyNoteBody(record)), 0o644)
	if err != nil {
		serviceutil.Fatal("failed to write note", err)
	}
	fmt.Println("Заметка сохранена:", path)
}

var hqCmd = &cobra.Command{
	Use:   "hq <taxID>",
	Short: "Resolves the headquarters record for a ten-digit tax id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		record := service.HQForTaxID(cmd.Context(), args[0])
		if record == nil {
			fmt.Println("Головная организация не найдена или определяется неоднозначно.")
			return
		}
		printRecord(record)
	},
}
