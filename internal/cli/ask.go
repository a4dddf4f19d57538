package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/oraculo/internal/domain"
)

func askCMD(a *app) *cobra.Command {
	var userID, name string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask questions interactively",
		Long: `Starts a conversation on the terminal. Every answer lists the documents
consulted with their distance. A farewell or end of input ends the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			conversation, _, err := a.orch.Conversation(ctx)
			if err != nil {
				return err
			}

			cmd.Printf("%s pronto. Faça sua pergunta.\n", a.cfg.Chat.BotName)
			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				cmd.Print("> ")
				if !scanner.Scan() {
					cmd.Println()
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}

				reply, err := conversation.Handle(ctx, domain.Message{UserID: userID, DisplayName: name, Body: line})
				if err != nil {
					return err
				}
				cmd.Printf("%s: %s\n", a.cfg.Chat.BotName, reply.Text)
				if len(reply.Sources) > 0 {
					cmd.Println("Fontes consultadas:")
					printSources(cmd, reply.Sources, false)
				}
				if reply.Kind == domain.ReplyFarewell {
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVar(&userID, "user", "terminal", "conversation user id")
	cmd.Flags().StringVar(&name, "name", "", "name used in greetings and the history")
	return cmd
}
