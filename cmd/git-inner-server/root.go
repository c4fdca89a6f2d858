package main

import (
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "git-inner-server",
	Short: "A pluggable-backend Git smart-protocol server",
	Long: `git-inner-server serves git push/fetch/clone over HTTP(S) and SSH
against repositories whose objects and references live in a pluggable
backend. This binary wires a config file, a logger, an in-memory registry,
and the core protocol engines together; swap the registry/backend for a
real document-store/object-store adapter in a production deployment.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the config file (defaults to $CONFIG_FILE or config.ini)")
}
