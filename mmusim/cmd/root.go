// Package cmd provides the command-line interface of mmusim.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mmusim",
	Short: "mmusim simulates the memory-management unit of a small computer.",
	Long: `mmusim simulates the memory-management unit of a small computer: ` +
		`address decomposition, page-table translation, frame allocation, ` +
		`and the stack. Machines are driven by a small command language, ` +
		`from a script, interactively, or over TCP.`,
	SilenceUsage: true,
}

func init() {
	addSettingFlags(rootCmd.PersistentFlags())
}

func addSettingFlags(flags *pflag.FlagSet) {
	flags.String("bitmode", "Bit64",
		"Geometry preset: Bit8, Bit16, Bit32 or Bit64. "+
			"Defaults to $MMUSIM_BITMODE.")
	flags.String("config", "",
		"YAML or JSON file describing the address configuration. "+
			"Defaults to $MMUSIM_CONFIG.")
	flags.String("record", "",
		"Record every request into <record>.sqlite3.")
	flags.String("record-json", "",
		"Write every request as JSON into <record-json>.json.")
	flags.Bool("trace", false,
		"Log every request to stderr.")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Exit handlers run before the program ends.
func Execute() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Cannot load .env: %v\n", err)
	}

	err = rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
