package cmd

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/lang"
)

var runCmd = &cobra.Command{
	Use:   "run <script>",
	Short: "Run a script of commands on a fresh machine.",
	Long: "`run <script>` parses the whole script, then runs it until an " +
		"exit command or the end. Use - to read the script from stdin.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		src, err := readScript(args[0])
		if err != nil {
			return err
		}

		cmds, err := lang.Parse(src)
		if err != nil {
			return errors.Wrap(err, args[0])
		}

		o := newObservers(cmd)
		defer o.close()

		newConsole(cfg, o, cmd.OutOrStdout()).run(cmds)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func readScript(path string) (string, error) {
	var (
		src []byte
		err error
	)

	if path == "-" {
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(path)
	}

	if err != nil {
		return "", errors.Wrap(err, "reading script")
	}

	return string(src), nil
}
