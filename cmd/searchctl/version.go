package main

import (
	"github.com/spf13/cobra"

	"github.com/noa10/mataresit-sub011/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("searchctl %s\n", version.String())
		},
	}
}
