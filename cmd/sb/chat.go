package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/models"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Support conversation commands",
		Long:  "Take charge of, release, write into and inspect support conversations directly against the database.",
	}

	cmd.AddCommand(newChatAssignCmd())
	cmd.AddCommand(newChatReleaseCmd())
	cmd.AddCommand(newChatSendCmd())
	cmd.AddCommand(newChatHistoryCmd())
	cmd.AddCommand(newChatSummariesCmd())
	return cmd
}

// withMediator loads config, connects and runs fn with a CLI mediator.
func withMediator(cmd *cobra.Command, configPath string, fn func(ctx context.Context, m *chat.Mediator) error) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	m, err := newMediator(cfg, gormDB, discardDelivery)
	if err != nil {
		return err
	}
	return fn(cmd.Context(), m)
}

func newChatAssignCmd() *cobra.Command {
	var configPath, admin string

	cmd := &cobra.Command{
		Use:   "assign <conversation-id>",
		Short: "Take charge of a conversation as an administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMediator(cmd, configPath, func(ctx context.Context, m *chat.Mediator) error {
				session, err := m.TakeCharge(ctx, args[0], admin)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Conversation %s assigned to %s (session %d)\n", args[0], admin, session.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&admin, "as", "", "administrator ID (required)")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newChatReleaseCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "release <conversation-id>",
		Short: "Release a conversation back to the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMediator(cmd, configPath, func(ctx context.Context, m *chat.Mediator) error {
				if err := m.ReleaseChat(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Conversation %s released\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}

func newChatSendCmd() *cobra.Command {
	var configPath, sender, role string

	cmd := &cobra.Command{
		Use:   "send <conversation-id> <message>",
		Short: "Write a message into a conversation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMediator(cmd, configPath, func(ctx context.Context, m *chat.Mediator) error {
				msg, err := m.RouteMessage(ctx,
					chat.Inbound{ConversationID: args[0], Content: args[1]},
					chat.Sender{ID: sender, Role: models.Role(role)})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Message %d stored in %s at %s\n",
					msg.ID, msg.ConversationID, msg.Timestamp.Format(time.RFC3339))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&sender, "as", "", "sender user ID (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleFederationManager), "sender role")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newChatHistoryCmd() *cobra.Command {
	var configPath, reader, role string

	cmd := &cobra.Command{
		Use:   "history <conversation-id>",
		Short: "Print the messages of a conversation in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMediator(cmd, configPath, func(ctx context.Context, m *chat.Mediator) error {
				msgs, err := m.History(ctx, args[0], chat.Sender{ID: reader, Role: models.Role(role)})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(msgs) == 0 {
					fmt.Fprintln(out, "No messages.")
					return nil
				}
				for _, msg := range msgs {
					fmt.Fprintf(out, "%s  %-8s %-20s %s\n",
						msg.Timestamp.Format("2006-01-02 15:04:05"), msg.SenderID, msg.SenderRole, msg.Content)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().StringVar(&reader, "as", "", "reader user ID (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleFederationManager), "reader role")
	cmd.MarkFlagRequired("as")
	return cmd
}

func newChatSummariesCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List conversations, waiting ones first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMediator(cmd, configPath, func(ctx context.Context, m *chat.Mediator) error {
				summaries, err := m.Summaries(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "CONVERSATION\tCLUB MANAGER\tSTATUS\tADMIN\tWAITING\tLAST MESSAGE")
				for _, s := range summaries {
					last := "-"
					if s.LastMessageTime != nil {
						last = s.LastMessageTime.Format("2006-01-02 15:04")
					}
					admin := s.AssignedAdministratorID
					if admin == "" {
						admin = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\n",
						s.ConversationID, s.DisplayName, s.Status, admin, s.WaitingForReply, last)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	return cmd
}
