package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/parsers"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"

	"github.com/spf13/cobra"
)

// Flags for the inspect command
var (
	inspectBank string
	inspectFile string
	inspectJSON bool
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show how every spreadsheet reader sees a workbook",
	Long: `Inspect opens a spreadsheet with every configured reader and reports,
for each one, whether it could open the file, the sheet names, the sheet
the bank profile would select and the first rows of that sheet.

Examples:
  bankimport inspect --file extracto.xls
  bankimport inspect --bank continental --file extracto.xlsx --json`,

	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectBank, "bank", "b", "other", "bank profile used to select the sheet")
	inspectCmd.Flags().StringVarP(&inspectFile, "file", "f", "", "spreadsheet file (required)")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the reports as JSON")

	inspectCmd.MarkFlagRequired("file")
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}

	bank, err := a.parseBank(inspectBank)
	if err != nil {
		return err
	}
	data, err := readStatement(inspectFile)
	if err != nil {
		return err
	}

	imp, err := a.service.NewImport(ctx, bank, filepath.Base(inspectFile), data)
	if err != nil {
		return err
	}
	reports, err := a.service.Inspect(ctx, imp.ID)
	if err != nil {
		return err
	}

	if inspectJSON {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(reports)
	}

	printBackendReports(cmd.OutOrStdout(), inspectFile, reports)

	for _, r := range reports {
		if r.Opened {
			return nil
		}
	}
	return errors.FormatError(errors.CodeWorkbookUnreadable, inspectFile, "no reader could open the workbook", nil)
}

func printBackendReports(w io.Writer, file string, reports []parsers.BackendReport) {
	fmt.Fprintf(w, "Workbook: %s\n\n", file)
	for _, r := range reports {
		fmt.Fprintf(w, "=== %s ===\n", strings.ToUpper(r.Backend))
		if !r.Opened {
			fmt.Fprintf(w, "Could not open: %s\n\n", r.Error)
			continue
		}
		fmt.Fprintf(w, "Sheets:   %s\n", strings.Join(r.Sheets, ", "))
		fmt.Fprintf(w, "Selected: %s (%d rows)\n", r.Sheet, r.Rows)
		if r.Error != "" {
			fmt.Fprintf(w, "Error:    %s\n", r.Error)
		}
		for i, row := range r.Preview {
			fmt.Fprintf(w, "  %d | %s\n", i+1, strings.Join(row, " | "))
		}
		fmt.Fprintf(w, "\n")
	}
}
