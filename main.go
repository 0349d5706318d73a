// main is the entry point of the pra CLI.
package main

import (
	"fmt"
	"os"

	"github.com/huangsam/pra/cmd"
	"github.com/huangsam/pra/internal/ledger"
)

func main() {
	cmd.SetStoreManager(ledger.Manager)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}
