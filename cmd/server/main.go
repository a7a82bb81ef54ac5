// Command playground is the JavaScript playground server and runner.
//
//	playground serve              # HTTP + WebSocket server (default)
//	playground run script.js      # run one file and print the result envelope
//	echo 'return 1;' | playground run -
//
// Configuration comes from an optional YAML file (--config or CONFIG_FILE),
// then environment variables; a .env file in the working directory is
// loaded first when present.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "playground",
	Short: "Run user-submitted JavaScript in isolated contexts.",
	Long: `playground executes JavaScript snippets in a sandboxed interpreter (or a
locked-down Node.js container) and reports the result as a success/error
envelope. It serves the playground API over HTTP and WebSocket, or runs a
single script from the command line.`,
	RunE:          runServe, // Default to serve.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"),
		"path to a YAML config file (env: CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// The failure envelope is already on stdout.
		if !errors.Is(err, errExecutionFailed) {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		}
		os.Exit(1)
	}
}
