package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/reconciler"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/store"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the match command
var (
	matchBank     string
	matchFile     string
	paymentsFile  string
	advancedMatch bool
	showProgress  bool
)

// matchBindings maps the matching flags to their setting keys.
var matchBindings = map[string]string{
	"amount-tolerance":     "matching.amount_tolerance",
	"active-states":        "matching.active_states",
	"tolerance":            "advanced.tolerance_percent",
	"date-from":            "advanced.date_from",
	"date-to":              "advanced.date_to",
	"search-reference":     "advanced.search_reference",
	"search-communication": "advanced.search_communication",
	"search-narration":     "advanced.search_narration",
	"states":               "advanced.states",
}

// matchCmd represents the match command
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match the transactions of a bank statement against payments",
	Long: `Match processes a bank statement and looks up, for every transaction,
the registered payments it corresponds to.

The default engine looks payments up by amount (with a small absolute
window) and checks the operation number against the payment references.
With --advanced, a scoring engine is used instead: amount within a
percentage tolerance scores 50, operation number found scores 50.

Payments are read from a .yaml, .yml, .csv or .json file.

Examples:
  # Default matching
  bankimport match --bank bcp --file movimientos.txt --payments pagos.yaml

  # Advanced matching with a 1.5% tolerance over January payments
  bankimport match --bank nacion --file estado.xls --payments pagos.csv \
    --advanced --tolerance 1.5 --date-from 2024-01-01 --date-to 2024-01-31

  # Search narration too, CSV report to a file
  bankimport match --bank continental --file extracto.xlsx --payments pagos.json \
    --advanced --search-narration --output-format csv --output-file matches.csv`,

	PreRunE: validateMatchFlags,
	RunE:    runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVarP(&matchBank, "bank", "b", "", "bank profile: bcp, nacion, continental, other (required)")
	matchCmd.Flags().StringVarP(&matchFile, "file", "f", "", "statement file: .txt, .csv, .xls or .xlsx (required)")
	matchCmd.Flags().StringVarP(&paymentsFile, "payments", "p", "", "payments file: .yaml, .yml, .csv or .json (required)")
	addOutputFlags(matchCmd)

	// Default engine flags
	matchCmd.Flags().Float64("amount-tolerance", 0.01, "absolute amount window of the default engine")
	matchCmd.Flags().StringSlice("active-states", []string{"posted", "sent", "in_process"}, "payment states the default engine considers")

	// Scoring engine flags
	matchCmd.Flags().BoolVar(&advancedMatch, "advanced", false, "use the scoring engine")
	matchCmd.Flags().Float64("tolerance", 0, "amount tolerance percentage (0-100) of the scoring engine")
	matchCmd.Flags().String("date-from", "", "earliest payment date (YYYY-MM-DD)")
	matchCmd.Flags().String("date-to", "", "latest payment date (YYYY-MM-DD)")
	matchCmd.Flags().Bool("search-reference", true, "search the operation number in the payment reference")
	matchCmd.Flags().Bool("search-communication", true, "search the operation number in the payment communication")
	matchCmd.Flags().Bool("search-narration", false, "search the operation number in the payment memo and narration")
	matchCmd.Flags().StringSlice("states", []string{"posted", "sent"}, "payment states the scoring engine considers")

	// UI flags
	matchCmd.Flags().BoolVar(&showProgress, "progress", false, "show pipeline progress")

	matchCmd.MarkFlagRequired("bank")
	matchCmd.MarkFlagRequired("file")
	matchCmd.MarkFlagRequired("payments")
}

func validateMatchFlags(cmd *cobra.Command, args []string) error {
	if err := bindFlags(cmd, outputBindings); err != nil {
		return err
	}
	if err := bindFlags(cmd, matchBindings); err != nil {
		return err
	}

	if err := validateFileExists(matchFile, "statement file"); err != nil {
		return errors.UserInputError(errors.CodeNoFile, matchFile, err)
	}
	if err := validateFileExists(paymentsFile, "payments file"); err != nil {
		return errors.UserInputError(errors.CodeNoFile, paymentsFile, err)
	}
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	payments, err := store.LoadPayments(paymentsFile)
	if err != nil {
		return errors.UserInputError(errors.CodeUndecodable, paymentsFile, err).
			WithSuggestion("check the payments file: a .yaml, .csv or .json list of payments")
	}

	a, err := newApp(cfg, payments)
	if err != nil {
		return err
	}

	bank, err := a.parseBank(matchBank)
	if err != nil {
		return err
	}
	data, err := readStatement(matchFile)
	if err != nil {
		return err
	}

	request := &reconciler.PipelineRequest{
		Bank:     bank,
		FileName: filepath.Base(matchFile),
		Data:     data,
		Mode:     reconciler.MatchDefault,
	}
	if advancedMatch {
		scoring, err := cfg.ScoringConfig()
		if err != nil {
			return err
		}
		request.Mode = reconciler.MatchAdvanced
		request.Scoring = scoring
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Matching %s statement %s against %d payments (%s engine)\n",
			bank.Label(), matchFile, len(payments), request.Mode)
	}

	orchestrator, err := reconciler.NewOrchestrator(a.service)
	if err != nil {
		return err
	}
	if showProgress {
		orchestrator.AddProgressCallback(func(progress reconciler.Progress) {
			fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, err := orchestrator.Run(ctx, request)
	if showProgress {
		fmt.Fprintf(cmd.ErrOrStderr(), "\n")
	}
	if err != nil {
		return err
	}

	printRowErrors(cmd, result)
	if viper.GetBool("verbose") {
		for _, warning := range orchestrator.Progress().Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
		}
	}

	return a.writeReport(result, cmd.OutOrStdout())
}
