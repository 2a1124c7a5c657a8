package discord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// DM implements the fallback delivery path (service.DirectMessenger).
type DM struct {
	s   *discordgo.Session
	log *slog.Logger
}

func NewDM(s *discordgo.Session, log *slog.Logger) *DM { return &DM{s: s, log: log} }

func (d *DM) SendDM(ctx context.Context, externalID, text string) error {
	ch, err := d.s.UserChannelCreate(externalID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	_, err = d.s.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx))
	return err
}

// ---------- interaction reply helpers ----------

// DeferEphemeral acknowledges an interaction before slow work (>3s).
func DeferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

// ReplyEphemeral follows up a deferred interaction; falls back to a direct
// response if the followup webhook is gone.
func ReplyEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, content string) {
	_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content: content,
	})
	if err != nil {
		var reqErr *discordgo.RESTError
		if errors.As(err, &reqErr) && reqErr.Message != nil && reqErr.Message.Code == 10015 {
			_ = s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content: content,
					Flags:   discordgo.MessageFlagsEphemeral,
				},
			})
		}
	}
}
