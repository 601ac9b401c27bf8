package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// serveCmd is a reserved placeholder: this repository implements the slave
// pipeline and master bookkeeper as libraries behind the driver/storage
// collaborator interfaces (spec §1), not a running transport binding, so
// there is no real message-bus listener to start. The command exists so the
// CLI's shape matches a deployable tool, the way the teacher ships
// run/observe/compose subcommands for one engine.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Reserved: run the slave/master pipeline against a live message bus (not implemented)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fmt.Errorf("serve: no transport binding is wired in this build; use `battery-sos run --trace` against a captured CSV trace instead")
	},
}
