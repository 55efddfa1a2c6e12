package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/mmusim/idgen"
	"github.com/sarchlab/mmusim/monitoring"
	"github.com/sarchlab/mmusim/toplevel"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the command language over TCP.",
	Long: "`serve` accepts TCP clients. Every client drives its own " +
		"machine and receives one signal byte per command.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}

		o := newObservers(cmd)
		defer o.close()

		addr, _ := cmd.Flags().GetString("addr")
		socketCfg, _ := cmd.Flags().GetString("socket-config")

		server := toplevel.MakeBuilder().
			WithAddress(addr).
			WithSocketConfigFile(socketCfg).
			WithConfig(cfg).
			WithHooks(o.hooks...).
			WithIDGenerator(idgen.NewParallel()).
			WithLogger(log.New(os.Stderr, "", log.LstdFlags)).
			Build()

		if err := server.Listen(); err != nil {
			return err
		}

		startMonitor(cmd, server, o)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		return server.Serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", toplevel.DefaultAddress,
		"TCP address to listen on.")
	serveCmd.Flags().String("socket-config", "",
		"File receiving the bound host and port, one per line.")
	serveCmd.Flags().Bool("monitor", false,
		"Expose the sessions through the HTTP monitor.")
	serveCmd.Flags().Int("monitor-port", 0,
		"Port of the HTTP monitor. A random port is used by default.")
	serveCmd.Flags().Bool("open", false,
		"Open the monitor in a browser.")
}

func startMonitor(cmd *cobra.Command, server *toplevel.Server, o *observers) {
	if enabled, _ := cmd.Flags().GetBool("monitor"); !enabled {
		return
	}

	port, _ := cmd.Flags().GetInt("monitor-port")

	monitor := monitoring.NewMonitor().WithPortNumber(port)
	monitor.RegisterMachines(server)
	monitor.RegisterCounter(o.counter)
	url := monitor.StartServer()

	if open, _ := cmd.Flags().GetBool("open"); open {
		err := browser.OpenURL(url + "/api/machines")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}
}
