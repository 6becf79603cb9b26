package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"db-relay/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var RootCmd = &cobra.Command{
	Use:   "db-relay",
	Short: "Move query results between PostgreSQL, MySQL and SQL Server",
	Long: `
  ____  ____    ____  _____ _        _ __   __
 |  _ \| __ )  |  _ \| ____| |      / \\ \ / /
 | | | |  _ \  | |_) |  _| | |     / _ \\ V /
 | |_| | |_) | |  _ <| |___| |___ / ___ \| |
 |____/|____/  |_| \_\_____|_____/_/   \_\_|

DB RELAY - run a source SELECT and write every row through a target statement
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-relay.yaml)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text or json)")

	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", RootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName(config.FileName)
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
