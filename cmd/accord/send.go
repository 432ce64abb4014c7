package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/accord-dev/accord/pkg/rest"
)

func sendCmd() *cobra.Command {
	var (
		token   string
		apiURL  string
		channel string
	)

	cmd := &cobra.Command{
		Use:   "send [message]",
		Short: "Post a message to a channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := tokenFromFlagOrEnv(token)
			if err != nil {
				return err
			}
			if channel == "" {
				return fmt.Errorf("no channel: pass --channel")
			}

			cfg := rest.DefaultConfig()
			cfg.Token = tok
			if apiURL != "" {
				cfg.BaseURL = apiURL
			}
			client := rest.NewClient(cfg)

			msg, err := client.CreateMessage(cmd.Context(), channel, rest.CreateMessageParams{
				Content: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}
			fmt.Printf("sent message %s to channel %s\n", msg.ID, msg.ChannelID)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Bot token (or ACCORD_TOKEN)")
	cmd.Flags().StringVar(&apiURL, "api-url", "", "API base URL override")
	cmd.Flags().StringVar(&channel, "channel", "", "Target channel id")

	return cmd
}
