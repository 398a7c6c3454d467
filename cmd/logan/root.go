package main

import (
	"strings"

	"github.com/quailyquaily/logan/cmd/logan/checkcmd"
	"github.com/quailyquaily/logan/cmd/logan/showcmd"
	"github.com/quailyquaily/logan/internal/logutil"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "logan",
		Short:         "Inspect settings synthesized from defaults and a configuration file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaults := logutil.DefaultConfig()
	cmd.PersistentFlags().String("log-level", defaults.Level, "Log level: debug, info, warn, error")
	cmd.PersistentFlags().String("log-format", defaults.Format, "Log format: text or json")
	_ = viper.BindPFlag(logutil.KeyLevel, cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag(logutil.KeyFormat, cmd.PersistentFlags().Lookup("log-format"))

	viper.SetEnvPrefix("LOGAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	cmd.AddCommand(checkcmd.New())
	cmd.AddCommand(showcmd.New())
	return cmd
}
