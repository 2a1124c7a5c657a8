package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// NewSession builds the gateway session with the intents the scanner
// needs. Opening (and the fatal-on-auth-failure policy) stays in main.
func NewSession(token string) (*discordgo.Session, error) {
	auth := strings.TrimSpace(token)
	if !strings.HasPrefix(strings.ToLower(auth), "bot ") {
		auth = "Bot " + auth
	}
	s, err := discordgo.New(auth)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers
	return s, nil
}
