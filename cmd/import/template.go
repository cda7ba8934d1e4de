package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/surveyimport/internal/core"
)

func newTemplateCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write the example import file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" || output == "-" {
				return core.WriteTemplate(cmd.OutOrStdout())
			}
			return os.WriteFile(output, []byte(core.TemplateCSV()), 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "File to write (default: stdout)")
	return cmd
}
