package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-tty"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/lang"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Type commands interactively.",
	Long: "`repl` reads commands line by line and runs them on a fresh " +
		"machine until `exit;` or the end of input.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		o := newObservers(cmd)
		defer o.close()

		c := newConsole(cfg, o, cmd.OutOrStdout())

		if isatty.IsTerminal(os.Stdin.Fd()) {
			return replTTY(c)
		}

		return replLines(c, bufio.NewScanner(os.Stdin))
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func replTTY(c *console) error {
	t, err := tty.Open()
	if err != nil {
		return err
	}
	defer t.Close()

	for {
		fmt.Fprint(t.Output(), "mmusim> ")

		line, err := t.ReadString()
		if err != nil {
			return err
		}

		if evalLine(c, line) {
			return nil
		}
	}
}

func replLines(c *console, s *bufio.Scanner) error {
	for s.Scan() {
		if evalLine(c, s.Text()) {
			return nil
		}
	}

	if err := s.Err(); err != nil && err != io.EOF {
		return err
	}

	return nil
}

// evalLine runs the commands of one line and reports whether the machine
// exited.
func evalLine(c *console, line string) bool {
	cmds, err := lang.Parse(line)
	if err != nil {
		fmt.Fprintf(c.out, "syntax error: %v\n", err)
		return false
	}

	return c.run(cmds)
}
