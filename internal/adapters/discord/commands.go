package discord

import "github.com/bwmarrin/discordgo"

var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "vcstatus",
		Description: "Voice-channel occupancy and enforcement counts",
	},
	{
		Name:        "vcpolicy",
		Description: "View or change the enforcement policy (admins)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "show", Description: "Show the current policy"},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Update the policy (only what you pass)",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Enforcement on/off"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "grace_seconds", Description: "Grace period in seconds"},
					{Type: discordgo.ApplicationCommandOptionInteger, Name: "warning_interval_seconds", Description: "Seconds between repeat warnings"},
				},
			},
		},
	},
	{
		Name:        "vcreset",
		Description: "Delete a player's tracked presence data (admins)",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "player",
			Description: "Player to reset",
			Required:    true,
		}},
	},
}
