package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <type> [key=value ...]",
	Short: "Create and execute a task",
	Long: `Create a task of the named type with the given inputs and run it to
completion. Inputs are key=value pairs; values are passed as strings.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.manager.Dispose()
		defer func() { _ = eng.plugins.Clear() }()

		inputs, err := parseInputs(args[1:])
		if err != nil {
			return err
		}

		id, err := eng.manager.CreateTask(args[0], inputs)
		if err != nil {
			return err
		}

		result, err := eng.manager.Execute(cmd.Context(), id)
		if err != nil {
			fmt.Fprintln(cmd.OutOrStdout(), eng.format.Failure("task "+id, err))
			return err
		}

		if asJSON {
			out, err := json.MarshalIndent(map[string]any{
				"id":     id,
				"result": result,
			}, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), eng.format.Success("task "+id+" completed", result))
		fmt.Fprintln(cmd.OutOrStdout(), eng.format.Metrics(eng.manager.MetricsFor(id)))
		return nil
	},
}

func init() {
	runCmd.Flags().Bool("json", false, "Print the result as JSON")
	rootCmd.AddCommand(runCmd)
}
