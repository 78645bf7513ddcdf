package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List loaded plugins",
	Long:  `List the plugins loaded from the config file with their contributed task types.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = eng.plugins.Clear() }()

		infos := eng.plugins.AllInfo()
		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No plugins loaded.")
			return nil
		}

		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{
				info.Name,
				info.Version,
				strconv.FormatBool(info.Config.Enabled),
				strings.Join(info.TaskTypes, ", "),
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), eng.format.Table(
			[]string{"NAME", "VERSION", "ENABLED", "TASK TYPES"},
			rows,
		))
		return nil
	},
}

var pluginsCheckCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Validate a plugin file without loading it into the engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = eng.plugins.Clear() }()

		if err := eng.plugins.Load(args[0]); err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), eng.format.Failure(args[0], err))
			return err
		}

		name := eng.plugins.Loaded()[len(eng.plugins.Loaded())-1]
		info, _ := eng.plugins.Info(name)
		fmt.Fprintln(cmd.OutOrStdout(), eng.format.Success(
			fmt.Sprintf("plugin %s %s valid (%s)", info.Name, info.Version, strings.Join(info.TaskTypes, ", ")),
			nil,
		))
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsCheckCmd)
	rootCmd.AddCommand(pluginsCmd)
}
