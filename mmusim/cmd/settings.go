package cmd

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/datarecording"
	"github.com/sarchlab/mmusim/hooking"
	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/mem/addressing"
	"github.com/sarchlab/mmusim/tracing"
)

const (
	envBitMode = "MMUSIM_BITMODE"
	envConfig  = "MMUSIM_CONFIG"
)

// stringSetting returns the flag value if set, then the environment
// variable, then the flag default.
func stringSetting(cmd *cobra.Command, flag, env string) string {
	f := cmd.Flags().Lookup(flag)
	if f.Changed {
		return f.Value.String()
	}

	if v, found := os.LookupEnv(env); found && v != "" {
		return v
	}

	return f.Value.String()
}

// resolveConfig builds the address configuration from the config file or
// the bit-mode preset. A bit-mode given together with a file must match it.
func resolveConfig(cmd *cobra.Command) (addressing.Config, error) {
	mode, err := addressing.ParseBitMode(
		stringSetting(cmd, "bitmode", envBitMode))
	if err != nil {
		return addressing.Config{}, err
	}

	path := stringSetting(cmd, "config", envConfig)
	if path == "" {
		return addressing.Preset(mode)
	}

	cfg, err := addressing.Load(path)
	if err != nil {
		return addressing.Config{}, err
	}

	if cmd.Flags().Changed("bitmode") && cfg.BitMode != mode {
		return addressing.Config{}, errors.Errorf(
			"--bitmode %s conflicts with %s in %s", mode, cfg.BitMode, path)
	}

	return cfg, nil
}

// observers holds the hooks selected on the command line.
type observers struct {
	hooks    []hooking.Hook
	counter  *tracing.Counter
	recorder datarecording.DataRecorder
	json     *tracing.JSONTracer
	jsonFile *os.File
}

func newObservers(cmd *cobra.Command) *observers {
	o := &observers{counter: tracing.NewCounter()}
	o.hooks = append(o.hooks, o.counter)

	if trace, _ := cmd.Flags().GetBool("trace"); trace {
		logger := log.New(os.Stderr, "", log.LstdFlags)
		o.hooks = append(o.hooks, tracing.NewLogTracer(logger))
	}

	if path, _ := cmd.Flags().GetString("record"); path != "" {
		o.recorder = datarecording.New(path)
		o.hooks = append(o.hooks,
			tracing.NewDBTracer(o.recorder, idgen.Get()))
	}

	if path, _ := cmd.Flags().GetString("record-json"); path != "" {
		f, err := os.Create(path + ".json")
		if err != nil {
			log.Fatalf("cannot create JSON trace: %v", err)
		}

		o.jsonFile = f
		o.json = tracing.NewJSONTracer(f, idgen.Get())
		o.hooks = append(o.hooks, o.json)
	}

	return o
}

// close flushes and closes the recorders, if any.
func (o *observers) close() {
	if o.json != nil {
		o.json.Close()

		if err := o.jsonFile.Close(); err != nil {
			log.Printf("closing JSON trace: %v", err)
		}
	}

	if o.recorder != nil {
		if err := o.recorder.Close(); err != nil {
			log.Printf("closing recorder: %v", err)
		}
	}
}
