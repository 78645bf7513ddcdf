package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskforge/taskforge/internal/cli"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive task shell",
	Long: `Read commands from stdin and run them against a live engine.

Commands:
  run <type> [key=value ...]   create and execute a task
  cancel <id> [reason]         cancel a task
  status <id>                  show a task's status and progress
  tasks                        list all known tasks
  types                        list registered task types
  help                         show this list
  exit                         quit the shell`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(cmd)
		if err != nil {
			return err
		}
		defer eng.manager.Dispose()
		defer func() { _ = eng.plugins.Clear() }()

		return runShell(cmd, eng)
	},
}

func runShell(cmd *cobra.Command, eng *engine) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprint(out, "> ")
	for scanner.Scan() {
		c := cli.Tokenize(scanner.Text())
		if c.Name == "exit" || c.Name == "quit" {
			return nil
		}
		if c.Name != "" {
			dispatch(out, eng, c)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

func dispatch(out io.Writer, eng *engine, c cli.Command) {
	switch c.Name {
	case "run":
		shellRun(out, eng, c)
	case "cancel":
		shellCancel(out, eng, c)
	case "status":
		shellStatus(out, eng, c)
	case "tasks":
		shellTasks(out, eng)
	case "types":
		for _, name := range eng.types.Names() {
			fmt.Fprintln(out, name)
		}
	case "help":
		fmt.Fprintln(out, "commands: run, cancel, status, tasks, types, help, exit")
	default:
		fmt.Fprintf(out, "unknown command %q (try help)\n", c.Name)
	}
}

func shellRun(out io.Writer, eng *engine, c cli.Command) {
	if len(c.Args) == 0 {
		fmt.Fprintln(out, "usage: run <type> [key=value ...]")
		return
	}
	inputs, err := parseInputs(c.Args[1:])
	if err != nil {
		fmt.Fprintln(out, eng.format.Failure("run", err))
		return
	}

	id, err := eng.manager.CreateTask(c.Args[0], inputs)
	if err != nil {
		fmt.Fprintln(out, eng.format.Failure("run "+c.Args[0], err))
		return
	}
	result, err := eng.manager.Execute(context.Background(), id)
	if err != nil {
		fmt.Fprintln(out, eng.format.Failure("task "+id, err))
		return
	}
	fmt.Fprintln(out, eng.format.Success("task "+id+" completed", result))
}

func shellCancel(out io.Writer, eng *engine, c cli.Command) {
	if len(c.Args) == 0 {
		fmt.Fprintln(out, "usage: cancel <id> [reason]")
		return
	}
	reason := strings.Join(c.Args[1:], " ")
	if err := eng.manager.Cancel(c.Args[0], reason); err != nil {
		fmt.Fprintln(out, eng.format.Failure("cancel "+c.Args[0], err))
		return
	}
	fmt.Fprintln(out, eng.format.Success("task "+c.Args[0]+" cancelled", nil))
}

func shellStatus(out io.Writer, eng *engine, c cli.Command) {
	if len(c.Args) == 0 {
		fmt.Fprintln(out, "usage: status <id>")
		return
	}
	id := c.Args[0]
	st, ok := eng.manager.Status(id)
	if !ok {
		fmt.Fprintf(out, "task %s not found\n", id)
		return
	}
	fmt.Fprintln(out, eng.format.StatusLine(id, st))
	fmt.Fprintln(out, eng.format.ProgressBar(eng.manager.Progress(id), 30))
}

func shellTasks(out io.Writer, eng *engine) {
	ids := eng.manager.All()
	if len(ids) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	for _, id := range ids {
		st, _ := eng.manager.Status(id)
		fmt.Fprintln(out, eng.format.StatusLine(id, st))
	}
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
