package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/plugin"
	"github.com/taskforge/taskforge/internal/scheduler"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the engine in the foreground",
	Long: `Run the engine until interrupted. Schedules from the config file fire
on their cron specs, and plugin directories are watched for changes so
edited plugins reload without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.manager.Dispose()
		defer func() { _ = eng.plugins.Clear() }()

		sched := scheduler.New(eng.manager)
		for _, s := range eng.cfg.Schedules {
			entry := scheduler.Entry{
				Name:     s.Name,
				Spec:     s.Spec,
				TypeName: s.Type,
				Inputs:   s.Inputs,
			}
			if err := sched.Add(entry); err != nil {
				return err
			}
		}
		sched.Start()
		defer sched.Stop()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if len(eng.cfg.PluginDirs) > 0 {
			watcher, err := plugin.NewWatcher(eng.plugins, eng.cfg.PluginDirs...)
			if err != nil {
				return err
			}
			defer func() { _ = watcher.Close() }()
			go func() { _ = watcher.Run(ctx) }()
		}

		fmt.Fprintf(cmd.OutOrStdout(), "taskforge daemon running: %d schedules, %d plugins\n",
			len(eng.cfg.Schedules), eng.plugins.Size())

		<-ctx.Done()
		if err := ctx.Err(); err != nil && err != context.Canceled {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
