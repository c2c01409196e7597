// Command vstpctl is the operator-facing CLI: run a TCP or UDP VSTP
// listener, or ping one, using the configuration layer in internal/config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:     "vstpctl",
	Short:   "vstpctl drives VSTP TCP/UDP listeners and a diagnostic ping",
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML/JSON config file (VSTP_ env vars also apply)")
	rootCmd.AddCommand(serveTCPCmd)
	rootCmd.AddCommand(serveUDPCmd)
	rootCmd.AddCommand(pingCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
