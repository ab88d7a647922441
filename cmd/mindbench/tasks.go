package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/mindbench/mindbench/internal/eval"
)

func tasksCmd() *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "List the builtin classification tasks",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("%-12s %-36s %s\n", "ID", "Name", "Classes")
			for _, t := range eval.Tasks() {
				fmt.Printf("%-12s %-36s %s\n", t.ID, t.Name, strings.Join(t.Classes, ","))
			}
			return nil
		},
	}
}
