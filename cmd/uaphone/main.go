// Command uaphone is a thin demonstration CLI over pkg/agent: its one
// subcommand, register, registers the configured account over UDP and
// keeps the registration refreshed until interrupted. It has no
// subcommand to place, answer or hang up a call. It exists to exercise
// the module, not as a product surface in its own right.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "uaphone",
	Short: "A minimal SIP registration client over a UDP transport",
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "uaphone.yaml", "config file path")
	rootCmd.AddCommand(registerCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
