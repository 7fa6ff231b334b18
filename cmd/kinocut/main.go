package main

import (
	"fmt"
	"os"

	"github.com/kinocut/kinocut/pkg/logger"
	"github.com/kinocut/kinocut/pkg/presenter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func init() {
	// Environment variables
	viper.SetEnvPrefix("KINOCUT")
	viper.AutomaticEnv()

	// Config file support
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.kinocut")
	viper.AddConfigPath(".")

	// Load config file if it exists (ignore errors if it doesn't)
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "kinocut",
	Short: "Compile editing skill pipelines into safe command lines",
	Long: `Kinocut turns a declarative list of editing skills with typed
parameters into a validated, injection-safe media tool command line.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := logger.SetLogLevel(viper.GetString("log_level")); err != nil {
			presenter.Warning(fmt.Sprintf("invalid log level, using default: %s", err))
		}
		logger.SetLogFormat(viper.GetString("log_format"))
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			presenter.SetQuiet(true)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(1)
	},
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("log-format", "fmt", "Log format (fmt or json)")
	flags.Bool("quiet", false, "Suppress informational output")

	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
}

func main() {
	addGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
