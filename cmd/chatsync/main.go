// Command chatsync is a small client for the sync server: it follows a
// user's document live and performs a few mutations from the shell.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are shared by every command.
type globalOptions struct {
	Server string
	User   string
	Token  string
}

func main() {
	var opts globalOptions

	rootCmd := &cobra.Command{
		Use:          "chatsync",
		Short:        "Follow and edit synchronized chat documents",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.Server, "server", "s", envOr("CHATSYNC_SERVER", "http://localhost:8080"), "Server URL")
	rootCmd.PersistentFlags().StringVarP(&opts.User, "user", "u", os.Getenv("CHATSYNC_USER"), "User id sent in the identity header")
	rootCmd.PersistentFlags().StringVarP(&opts.Token, "token", "t", os.Getenv("CHATSYNC_TOKEN"), "Bearer token; takes precedence over --user")

	rootCmd.AddCommand(
		newWatchCmd(&opts),
		newRenameCmd(&opts),
		newMkdirCmd(&opts),
		newShareCmd(&opts),
		newTokenCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
