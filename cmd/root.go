package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/open-feature/featuremanager/core/pkg/logger"
)

const (
	logFormatFlagName  = "log-format"
	debugFlagName      = "debug"
	ignoreCaseFlagName = "ignore-case"
	configFlagName     = "config"
)

var rootCmd = &cobra.Command{
	Use:   "featuremanager",
	Short: "Evaluate feature flags from a feature management document",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		if viper.GetBool(debugFlagName) {
			log.SetLevel(log.DebugLevel)
		}
		if viper.GetString(logFormatFlagName) == "json" {
			log.SetFormatter(&log.JSONFormatter{})
		}
		return nil
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String(configFlagName, "", "config file (yaml)")
	rootCmd.PersistentFlags().String(logFormatFlagName, "console", "Set the log format, console or json")
	rootCmd.PersistentFlags().Bool(debugFlagName, false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool(ignoreCaseFlagName, false, "Compare targeting groups case-insensitively")
}

func initConfig() {
	viper.SetEnvPrefix("FEATUREMANAGER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cfgFile, _ := rootCmd.PersistentFlags().GetString(configFlagName)
	if cfgFile == "" {
		return
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warnf("unable to read config file %s: %v", cfgFile, err)
		return
	}
	log.Debugf("using config file %s", viper.ConfigFileUsed())
}

// coreLogger builds the zap logger handed to the evaluation engine.
func coreLogger() (*logger.Logger, error) {
	level := zapcore.InfoLevel
	if viper.GetBool(debugFlagName) {
		level = zapcore.DebugLevel
	}
	l, err := logger.NewZapLogger(level, viper.GetString(logFormatFlagName))
	if err != nil {
		return nil, fmt.Errorf("unable to create logger: %w", err)
	}
	return logger.NewLogger(l), nil
}
