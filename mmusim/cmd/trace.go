package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/tracing"
)

var traceCmd = &cobra.Command{
	Use:   "trace <db>",
	Short: "Show the requests recorded with --record.",
	Long: "`trace` reads a database written by --record and prints the " +
		"recorded requests in order, optionally narrowed to one machine " +
		"or to faulting requests.",
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

func init() {
	addTraceFlags(traceCmd.Flags())
	rootCmd.AddCommand(traceCmd)
}

func addTraceFlags(flags *pflag.FlagSet) {
	flags.Bool("tables", false,
		"List the tables of the database instead of the requests.")
	flags.String("machine", "",
		"Only show the requests of this machine.")
	flags.Bool("faults", false,
		"Only show requests that faulted.")
	flags.Int("limit", 0,
		"Show at most this many requests. 0 shows all.")
	flags.Int("offset", 0,
		"Skip this many requests. Needs --limit.")
}

func runTrace(cmd *cobra.Command, args []string) error {
	reader, err := datarecording.Open(args[0])
	if err != nil {
		return err
	}
	defer reader.Close()

	reader.Register(tracing.RequestTableName, tracing.RequestEntry{})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	out := cmd.OutOrStdout()

	if tables, _ := cmd.Flags().GetBool("tables"); tables {
		return printTables(ctx, out, reader)
	}

	f := traceFilter(cmd.Flags())

	total, err := reader.Count(ctx, tracing.RequestTableName, f)
	if err != nil {
		return err
	}

	entries, err := reader.Select(ctx, tracing.RequestTableName, f)
	if err != nil {
		return err
	}

	printRequests(out, entries)
	fmt.Fprintf(out, "%s of %s requests\n",
		humanize.Comma(int64(len(entries))), humanize.Comma(int64(total)))

	return nil
}

func traceFilter(flags *pflag.FlagSet) datarecording.Filter {
	f := datarecording.Filter{OrderBy: "rowid"}

	var conds []string

	if name, _ := flags.GetString("machine"); name != "" {
		conds = append(conds, "Machine = ?")
		f.Args = append(f.Args, name)
	}

	if faults, _ := flags.GetBool("faults"); faults {
		conds = append(conds, "Fault != ''")
	}

	f.Where = strings.Join(conds, " AND ")
	f.Limit, _ = flags.GetInt("limit")
	f.Offset, _ = flags.GetInt("offset")

	return f
}

func printTables(ctx context.Context, out io.Writer, r *datarecording.Reader) error {
	tables, err := r.Tables(ctx)
	if err != nil {
		return err
	}

	for _, t := range tables {
		fmt.Fprintln(out, t)
	}

	return nil
}

func printRequests(out io.Writer, entries []any) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "MACHINE\tPID\tREQUEST\tSIGNAL\tADDRESS\tVALUE\tRESULT")

	for _, e := range entries {
		r := e.(*tracing.RequestEntry)
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\t%d\t%s\n",
			r.Machine, r.PID, r.Request, r.Signal, r.Address, r.Value,
			requestResult(r))
	}

	w.Flush()
}

func requestResult(r *tracing.RequestEntry) string {
	switch {
	case r.Fault != "":
		return "fault: " + r.Fault
	case r.Error != "":
		return "error: " + r.Error
	case !r.Applied:
		return "rejected: " + r.Reason
	default:
		return "ok"
	}
}
