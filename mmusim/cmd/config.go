package cmd

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/mem/addressing"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved address configuration.",
	Long: "`config` prints the configuration selected by --bitmode, " +
		"--config and the environment, in the format --config reads.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		out, err := addressing.Marshal(cfg)
		if err != nil {
			return err
		}

		_, err = cmd.OutOrStdout().Write(out)

		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
