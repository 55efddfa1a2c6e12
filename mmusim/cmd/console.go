package cmd

import (
	"fmt"
	"io"

	"github.com/sarchlab/mmusim/lang"
	"github.com/sarchlab/mmusim/machine"
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/mem/vm"
)

// console runs commands on a single-process machine and prints what they
// did.
type console struct {
	machine *machine.Machine
	pid     vm.PID
	out     io.Writer
}

func newConsole(
	cfg addressing.Config,
	o *observers,
	out io.Writer,
) *console {
	m := machine.MakeBuilder().WithConfig(cfg).Build("Machine")
	for _, h := range o.hooks {
		m.AcceptHook(h)
	}

	return &console{
		machine: m,
		pid:     m.Spawn(),
		out:     out,
	}
}

// run executes commands until the program exits. It reports whether an
// exit command ran.
func (c *console) run(cmds []lang.Command) bool {
	for _, cmd := range cmds {
		res, err := c.machine.Exec(c.pid, cmd.Request)
		c.print(cmd, res, err)

		if _, exit := cmd.Request.(machine.Exit); exit && err == nil {
			return true
		}
	}

	return false
}

func (c *console) print(cmd lang.Command, res machine.Result, err error) {
	if err != nil {
		fmt.Fprintf(c.out, "%d\t%v\t%s\terror: %v\n",
			cmd.Line, cmd.Request, res.Signal, err)
		return
	}

	switch cmd.Request.(type) {
	case machine.Read, machine.Pop:
		fmt.Fprintf(c.out, "%d\t%v\t%s\t%s\t%s = %d\n",
			cmd.Line, cmd.Request, res.Signal, res.Outcome,
			res.Address, res.Value)
	case machine.Debug:
		fmt.Fprintf(c.out, "%d\t%v\t%s\t%+v\n",
			cmd.Line, cmd.Request, res.Signal, c.machine.Snapshot())
	default:
		fmt.Fprintf(c.out, "%d\t%v\t%s\t%s\t%s\n",
			cmd.Line, cmd.Request, res.Signal, res.Outcome, res.Address)
	}
}
