package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/mem/addressing"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the geometry presets.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

		fmt.Fprintln(w,
			"MODE\tLEVELS\tLEVEL BITS\tOFFSET BITS\tVIRTUAL BITS\t"+
				"PAGE\tFRAMES\tMEMORY\tSTACK")

		for _, mode := range addressing.BitModes {
			c := addressing.MustPreset(mode)
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%s\t%d\t%s\t%s at %#x\n",
				mode, c.Levels, c.LevelFieldWidth, c.OffsetFieldWidth,
				c.VirtualBitWidth(), humanize.IBytes(c.PageSize),
				c.FrameCount, humanize.IBytes(c.MemorySize()),
				humanize.IBytes(c.StackSize), c.StackBase)
		}

		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
