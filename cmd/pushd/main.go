package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pushgate/pushgate/server/config"
)

func main() {
	rootCmd := createRootCmd()

	configManager := config.NewManager(rootCmd)

	rootCmd.AddCommand(createServeCmd(configManager))
	rootCmd.AddCommand(createPrepareCmd(configManager))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pushd",
		Short: "pushd resolves push notification recipients and dispatches payloads",
		Long: `
pushd is the push notification dispatch server. It resolves the device
installations a message targets, builds the provider payload and submits it
over the provider transport, then reaps endpoints the provider reported
stale.
`,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a configuration file")
	return rootCmd
}

// initFatal prints an error and exits with a nonzero exit code.
func initFatal(err error, message string) {
	fmt.Fprintf(os.Stderr, "Error %s: %v\n", message, err)
	os.Exit(1)
}
