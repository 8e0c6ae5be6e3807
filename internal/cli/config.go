package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Run: func(cmd *cobra.Command, args []string) {
			b, err := cfg.Encode()
			if err != nil {
				exitErr("encode config", err)
			}
			fmt.Print(string(b))
		},
	}

	configCmd.AddCommand(show)
	RootCmd.AddCommand(configCmd)
}
