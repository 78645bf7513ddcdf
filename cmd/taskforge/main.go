package main

import "github.com/taskforge/taskforge/cmd/taskforge/commands"

func main() {
	commands.Execute()
}
