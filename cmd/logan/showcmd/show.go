package showcmd

import (
	"fmt"
	"io"
	"os"

	"github.com/quailyquaily/logan/internal/configutil"
	"github.com/quailyquaily/logan/internal/outputfmt"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show CONFIG",
		Short: "Print the merged settings of a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			raw, _ := cmd.Flags().GetString("format")
			format, err := outputfmt.ParseFormat(raw, defaultFormat(out))
			if err != nil {
				return err
			}
			mod, err := configutil.LoadModule(cmd, args[0])
			if err != nil {
				return err
			}
			text, err := outputfmt.FormatSettings(mod.Settings(), format)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, text)
			return err
		},
	}
	configutil.AddSettingsFlags(cmd)
	cmd.Flags().String("format", "", "Output format: json or yaml (default yaml on a terminal, json otherwise)")
	return cmd
}

func defaultFormat(w io.Writer) outputfmt.Format {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return outputfmt.FormatYAML
	}
	return outputfmt.FormatJSON
}
