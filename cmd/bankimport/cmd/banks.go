package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/parsers"

	"github.com/spf13/cobra"
)

// banksCmd represents the banks command
var banksCmd = &cobra.Command{
	Use:   "banks",
	Short: "List the supported bank profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry := parsers.NewDefaultRegistry(cfg.ProfileOptions())

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tLABEL\tNAME")
		for _, bank := range registry.Banks() {
			profile, err := registry.Get(bank)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", bank, bank.Label(), profile.DisplayName())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(banksCmd)
}
