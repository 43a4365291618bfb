package app

import (
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
)

func newListCommand(root *rootOptions) *cobra.Command {
	var (
		filePath string
		dir      string
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List the tasks a task file declares",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := locateFile(filePath, dir)
			if err != nil {
				return err
			}

			names := make([]string, 0, len(file.Tasks))
			for name := range file.Tasks {
				names = append(names, name)
			}
			sort.Strings(names)

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("TASK", "DESCRIPTION", "DEPENDS ON")
			bold := color.New(color.Bold)
			for _, name := range names {
				task := file.Tasks[name]
				table.AddRow(bold.Sprint(name), task.Description, strings.Join(task.Deps, ", "))
			}

			out := cmd.OutOrStdout()
			if _, err := out.Write([]byte(table.String() + "\n")); err != nil {
				return err
			}
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&filePath, "file", "f", "", "Task file path (default: nearest runbook.yaml|yml|json)")
	fs.StringVarP(&dir, "dir", "C", "", "Directory to start the task file search from")

	return cmd
}
