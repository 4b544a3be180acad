package main

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/opsimport/internal/core"
)

func newLayoutCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the effective column layout as YAML",
		Long: `Print the column layout used to read the three workbooks.

With --file, the override is merged onto the defaults and validated first,
so the output is exactly what an import with that file would use.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := core.DefaultLayout()
			if file != "" {
				var err error
				if layout, err = core.LoadLayout(file); err != nil {
					return err
				}
			}

			out, err := layout.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML column layout override to merge and validate")
	return cmd
}
