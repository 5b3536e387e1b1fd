// Command backupctl creates, restores, lists, verifies, deletes and
// schedules backups of the WhatsApp dashboard data.
package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
)

// Version is set at build time
var Version = "0.1.0"

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "Hint:", hint)
		}
		os.Exit(1)
	}
}
