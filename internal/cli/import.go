package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/stash-manager/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import a price book from JSON",
		Long:  "Import prices and supply rows from JSON (file or stdin). Expects the format produced by export; observations already present are skipped.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runImport,
	}

	pricesCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	var (
		data []byte
		err  error
	)
	if len(args) > 0 && args[0] != "-" {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var ex store.Export
	if err := json.Unmarshal(data, &ex); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), &ex)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
