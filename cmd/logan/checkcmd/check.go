package checkcmd

import (
	"fmt"

	"github.com/quailyquaily/logan/internal/configutil"
	"github.com/spf13/cobra"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check CONFIG",
		Short: "Validate a configuration file against its defaults",
		Long: "Merge CONFIG over the defaults and report the fingerprint of the result.\n" +
			"Exits non-zero with a configuration error when the file does not load.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := configutil.LoadModule(cmd, args[0])
			if err != nil {
				return err
			}
			fp, err := mod.Fingerprint()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", fp)
			return err
		},
	}
	configutil.AddSettingsFlags(cmd)
	return cmd
}
