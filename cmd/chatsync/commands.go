package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/chat-sync/internal/config"
	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/syncclient"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
)

// newWatchCmd follows the live document and prints it on every change.
func newWatchCmd(opts *globalOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the document every time it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.User == "" && opts.Token == "" {
				return errors.New("either --user or --token is required")
			}

			log := logger.NewNop()
			if verbose {
				var err error
				log, err = logger.NewDevelopment()
				cobra.CheckErr(err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			agent := syncclient.New(syncclient.Config{
				BaseURL:  opts.Server,
				UserID:   opts.User,
				Token:    opts.Token,
				Logger:   log,
				OnChange: printDocument,
			})

			printStatus("watching %s", opts.Server)
			err := agent.Run(ctx)
			if errors.Is(err, syncclient.ErrUnauthorized) {
				printErr("server rejected the identity")
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log connection events")
	return cmd
}

func newRenameCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation-id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			if err := client.renameConversation(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			printOK("renamed %s", args[0])
			return nil
		},
	}
}

func newMkdirCmd(opts *globalOptions) *cobra.Command {
	var parent string

	cmd := &cobra.Command{
		Use:   "mkdir <name>",
		Short: "Create a conversation folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			var parentID *string
			if parent != "" {
				parentID = &parent
			}
			folder, err := client.createFolder(cmd.Context(), args[0], parentID)
			if err != nil {
				return err
			}
			printOK("created folder %s (%s)", folder.Name, folder.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent folder id")
	return cmd
}

func newShareCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "share <conversation-id> <recipient-id>",
		Short: "Copy a conversation into another user's Inbox",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAPIClient(opts)
			if err != nil {
				return err
			}
			doc, err := client.document(cmd.Context())
			if err != nil {
				return err
			}
			conv := doc.FindConversation(args[0])
			if conv == nil || conv.Deleted {
				return fmt.Errorf("conversation %s not found", args[0])
			}

			resp, err := client.share(cmd.Context(), args[1], conv)
			if err != nil {
				return err
			}
			printOK("shared %q with %s as %s", conv.Title, args[1], resp.Conversation.ID)
			return nil
		},
	}
}

// newTokenCmd mints a development token signed with JWT_SECRET.
func newTokenCmd() *cobra.Command {
	var opts struct {
		Name string
		TTL  time.Duration
	}

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Mint a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			token, err := middleware.IssueToken(cfg.JWTSecret, args[0], opts.Name, opts.TTL)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Display name claim")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
