package app

import (
	"context"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	utilserrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/klog/v2"
	"os"
	"os/signal"
	"syscall"
	"tagscan/cmd/tagscan/config"
	"tagscan/cmd/tagscan/options"
	"tagscan/pkg/generic"
	baseoptions "tagscan/pkg/generic/options"
	"tagscan/pkg/web"
)

const (
	ComponentTagScan = "tagscan"
)

func NewTagScanCmd() *cobra.Command {
	cleanFlagSet := pflag.NewFlagSet(ComponentTagScan, pflag.ContinueOnError)
	o := options.NewDefaultOptions()
	cmd := &cobra.Command{
		Use:                ComponentTagScan,
		Long:               `The tagscan polls tags from field devices at their scan rates, scales and filters the readings, tracks live values and alarm states, and publishes value updates and alarm transitions.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// initial flag parse, since we disable cobra's flag parsing
			if err := cleanFlagSet.Parse(args); err != nil {
				klog.ErrorS(err, "Failed to parse flag")
				_ = cmd.Usage()
				os.Exit(1)
			}

			// check if there are non-flag arguments in the command line
			cmds := cleanFlagSet.Args()
			if len(cmds) > 0 {
				klog.ErrorS(nil, "Unknown command", "command", cmds[0])
				_ = cmd.Usage()
				os.Exit(1)
			}

			// short-circuit on --help and --default-config
			if done, err := baseoptions.HandleInfoFlags(cmd, cleanFlagSet, options.NewDefaultOptions()); done || err != nil {
				return err
			}

			if err := baseoptions.ParseAndApplyConfigFile(o, args); err != nil {
				return err
			}

			if errs := options.Validate(o); len(errs) != 0 {
				return utilserrors.NewAggregate(errs)
			}

			return run(o)
		},
	}

	o.AddFlags(cleanFlagSet)
	o.AddBaseFlags(cmd, cleanFlagSet)

	return cmd
}

func run(o *options.Options) error {
	stopCh := make(chan struct{})

	c, err := o.Config()
	if err != nil {
		return err
	}

	server, err := web.NewServer(generic.Default(), o, c)
	if err != nil {
		return err
	}

	exit, err := server.Serve()
	if err != nil {
		return err
	}
	c.Scheduler.Start()
	klog.V(1).InfoS("Server started", "port", o.Port, "tags", o.TagsFile)

	if o.StatsInterval > 0 {
		go wait.Until(func() { logStats(c) }, o.StatsInterval, stopCh)
	}

	// Graceful shutdown
	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -HUP reloads the tag set file
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		if res, err := c.Reload(); err != nil {
			klog.ErrorS(err, "Failed to reload tag set", "file", c.TagsFile)
		} else {
			klog.InfoS("Reloaded tag set", "version", res.Version, "tags", len(res.Tags), "rejected", len(res.Rejected))
		}
	}
	signal.Stop(sigCh)

	ctx, cancel := context.WithTimeout(context.Background(), o.Wait)
	defer cancel()

	exit(ctx)
	close(stopCh)

	return nil
}

func logStats(c *config.Config) {
	st := c.Scheduler.Stats(false)
	klog.V(2).InfoS("Scheduler stats", "version", st.Version, "tags", st.Tags, "tasks", st.Tasks,
		"inflight", st.Inflight, "devices", len(st.Devices))
	for _, d := range st.Devices {
		klog.V(3).InfoS("Device queue stats", "deviceId", d.DeviceID, "pending", d.Pending, "reads", d.Reads,
			"batches", d.Batches, "failures", d.Failures, "dials", d.Dials)
	}
}
