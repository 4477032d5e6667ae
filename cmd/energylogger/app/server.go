package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"energylogger/cmd/energylogger/config"
	"energylogger/cmd/energylogger/options"
	"energylogger/pkg/generic"
	baseoptions "energylogger/pkg/generic/options"
	"energylogger/pkg/web"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/klog/v2"
)

const (
	ComponentEnergyLogger = "energylogger"
)

func NewEnergyLoggerCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentEnergyLogger, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use: ComponentEnergyLogger,
		Long: `The energylogger polls Modbus energy meters over RTU, TCP or RTU over TCP at a fixed
interval and fans every readout out to InfluxDB, MQTT and NATS sinks.`,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				return err
			}

			// check if there are non-flag arguments in the command line
			if cmds := cleanFlagSet.Args(); len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				return fmt.Errorf("unknown command %q", cmds[0])
			}

			// short-circuit on help
			if baseoptions.HelpRequested(cmd, cleanFlagSet) {
				return nil
			}

			// short-circuit on defaultconfig
			if ok, err := baseoptions.DefaultConfigRequested(options.NewDefaultOptions(), cleanFlagSet, cmd.OutOrStdout()); ok {
				return err
			}

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				klog.ErrorS(err, "Failed to load configuration file")
				return err
			}

			if errs := options.Validate(o); len(errs) != 0 {
				err := utilserrors.NewAggregate(errs)
				klog.ErrorS(err, "Invalid options")
				return err
			}

			return run(o)
		},
	}

	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func run(o *options.Options) error {
	c, err := o.Config()
	if err != nil {
		klog.ErrorS(err, "Failed to start")
		return err
	}

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var exit func(ctx context.Context)
	if len(o.Port) > 0 {
		server, err := web.NewServer(generic.Default(), o, c)
		if err != nil {
			shutdown(c, nil, o.Wait.Duration)
			return err
		}
		if exit, err = server.Serve(); err != nil {
			shutdown(c, nil, o.Wait.Duration)
			return err
		}
		klog.V(1).InfoS("Status server started", "port", o.Port)
	}

	err = c.Scheduler.Run(ctx)
	shutdown(c, exit, o.Wait.Duration)
	return err
}

// shutdown waits up to wait for sink writes still in flight, then closes
// every sink and releases the lock file.
func shutdown(c *config.Config, exit func(ctx context.Context), wait time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	done := make(chan struct{})
	go func() {
		c.Dispatcher.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		klog.InfoS("Sink writes still in flight at shutdown", "timeout", wait)
	}

	if exit != nil {
		exit(ctx)
	}
	if err := c.Sinks.Close(); err != nil {
		klog.ErrorS(err, "Failed to close sinks")
	}
	if c.Lock != nil {
		if err := c.Lock.Release(); err != nil {
			klog.ErrorS(err, "Failed to release lock file")
		}
	}
	klog.V(1).InfoS("Stopped")
}
