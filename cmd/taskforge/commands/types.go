package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List registered task types",
	Long:  `List every task type known to the engine: builtins plus plugin-contributed types.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = eng.plugins.Clear() }()

		all := eng.types.All()
		if len(all) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No task types registered.")
			return nil
		}

		rows := make([][]string, 0, len(all))
		for _, typ := range all {
			rows = append(rows, []string{
				typ.Name,
				typ.Version,
				strconv.Itoa(typ.DefaultPriority),
				typ.Description,
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), eng.format.Table(
			[]string{"NAME", "VERSION", "PRIORITY", "DESCRIPTION"},
			rows,
		))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
