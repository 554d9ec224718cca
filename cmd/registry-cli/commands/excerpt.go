package commands

import (
	"fmt"
	"os"
	"registry-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

var excerptOut *string

func init() {
	excerptOut = excerptCmd.Flags().String("out", "", "Output path for the PDF, defaults to <taxID>.pdf.")
	rootCmd.AddCommand(excerptCmd)
}

var excerptCmd = &cobra.Command{
	Use:   "excerpt <taxID> [--out <path/to/excerpt.pdf>]",
	Short: "Downloads the official registry excerpt PDF for a tax id.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		service := createService()
		pdf := service.DownloadExcerptByTaxID(cmd.Context(), args[0])
		if pdf == nil {
			fmt.Println("Выписка недоступна для указанного ИНН.")
			return
		}

		out := *excerptOut
		if out == "" {
			out = args[0] + ".pdf"
		}
		err := os.WriteFile(out, pdf, 0o644)
		if err != nil {
			serviceutil.Fatal("failed to write excerpt", err)
		}
		fmt.Println("Выписка сохранена:", out)
	},
}
