package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/reconciler"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the process command
var (
	processBank string
	processFile string
)

// outputBindings maps the report flags shared by process and match to
// their setting keys.
var outputBindings = map[string]string{
	"output-format": "output.format",
	"output-file":   "output.file",
	"transactions":  "output.transactions",
	"max-items":     "output.max_items",
}

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Extract the transactions of a bank statement",
	Long: `Process reads a bank statement export, extracts its operations and
reports the normalized transactions. Nothing is matched.

Examples:
  # BCP text export
  bankimport process --bank bcp --file movimientos.txt --transactions

  # Continental workbook as JSON
  bankimport process --bank continental --file extracto.xlsx --output-format json`,

	PreRunE: func(cmd *cobra.Command, args []string) error {
		return bindFlags(cmd, outputBindings)
	},
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVarP(&processBank, "bank", "b", "", "bank profile: bcp, nacion, continental, other (required)")
	processCmd.Flags().StringVarP(&processFile, "file", "f", "", "statement file: .txt, .csv, .xls or .xlsx (required)")
	addOutputFlags(processCmd)

	processCmd.MarkFlagRequired("bank")
	processCmd.MarkFlagRequired("file")
}

// addOutputFlags registers the report flags on cmd.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output-format", "o", "console", "output format: console, json, csv")
	cmd.Flags().String("output-file", "", "output file path (default: stdout)")
	cmd.Flags().Bool("transactions", false, "list every extracted transaction")
	cmd.Flags().Int("max-items", 20, "maximum list entries in console output, 0 for all")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}

	bank, err := a.parseBank(processBank)
	if err != nil {
		return err
	}
	data, err := readStatement(processFile)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Processing %s statement %s (%d bytes)\n", bank.Label(), processFile, len(data))
	}

	orchestrator, err := reconciler.NewOrchestrator(a.service)
	if err != nil {
		return err
	}
	result, err := orchestrator.Run(context.Background(), &reconciler.PipelineRequest{
		Bank:     bank,
		FileName: filepath.Base(processFile),
		Data:     data,
		Mode:     reconciler.MatchNone,
	})
	if err != nil {
		return err
	}
	printRowErrors(cmd, result)

	return a.writeReport(result, cmd.OutOrStdout())
}

// printRowErrors lists unreadable rows on stderr in verbose mode.
func printRowErrors(cmd *cobra.Command, result *reconciler.PipelineResult) {
	if !viper.GetBool("verbose") || result.Process == nil || result.Process.Stats == nil {
		return
	}
	if summary := FormatRowErrors(result.Process.Stats.RowErrors); summary != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), summary)
	}
}
