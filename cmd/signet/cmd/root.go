package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is the release version, overridden at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "signet",
	Short: "Signet is a certificate request and issuance service",
	Long: `A certificate authority service managing the full request lifecycle:
submission, hierarchy validation, approval and X.509 issuance.
Complete documentation is available at https://github.com/jmcleod/signet`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
