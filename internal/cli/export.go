package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the price book as JSON",
		Long:  "Export every live price observation, including history, and all trader supply rows.",
		Run:   runExport,
	}

	pricesCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ex, err := s.ExportAll(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	printJSON(ex)
}
