package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/jsalvador-zsh/peruanita-bank-import/cmd/bankimport/config"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bankimport",
	Short: "Bank statement import and payment matching tool",
	Long: `Bankimport reads bank statement exports from Peruvian banks (BCP, Banco
de la Nación, BBVA Continental and generic layouts), turns them into
normalized transactions and matches them against registered payments.

Statements can be delimited text exports or spreadsheets (.xls, .xlsx).
Legacy workbooks are read with several readers, tried in order.

Examples:
  bankimport process --bank bcp --file movimientos.txt
  bankimport match --bank continental --file extracto.xlsx --payments pagos.yaml
  bankimport match --bank bcp --file movimientos.txt --payments pagos.csv --advanced --tolerance 1.5
  bankimport inspect --file extracto.xls
  bankimport banks`,
	Version:       getVersionString(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text, json")

	bindRootFlags()
}

// bindRootFlags binds the global flags to viper
func bindRootFlags() {
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// BANKIMPORT_MATCHING_AMOUNT_TOLERANCE overrides matching.amount_tolerance
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// bindFlags binds the flags of the running command to viper keys. Commands
// share setting keys, so binding happens when a command runs.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag --%s is not defined on %s", flag, cmd.Name())
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	return nil
}

// loadConfig loads the application configuration and installs the global
// logger it describes.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logCfg := cfg.LoggerConfig()
	if viper.GetBool("verbose") && !rootCmd.PersistentFlags().Changed("log-level") {
		logCfg.Level = logger.DebugLevel
	}
	log, err := logger.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	logger.SetGlobalLogger(log)

	return cfg, nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
