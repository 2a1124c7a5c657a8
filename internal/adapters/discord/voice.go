package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/vcguard/vcguard/internal/app/service"
)

// Redundant voice-membership sources. Discord's caches and REST views drift
// apart under load; the scanner merges all of them so one stale view never
// decides a player's fate alone.

// GatewaySource reads the live voice states from the gateway state cache.
type GatewaySource struct {
	s       *discordgo.Session
	guildID string
}

func NewGatewaySource(s *discordgo.Session, guildID string) *GatewaySource {
	return &GatewaySource{s: s, guildID: guildID}
}

func (g *GatewaySource) Name() string { return "gateway_state" }

func (g *GatewaySource) Collect(ctx context.Context) (map[string]service.VoiceObservation, error) {
	guild, err := g.s.State.Guild(g.guildID)
	if err != nil {
		return nil, fmt.Errorf("state guild: %w", err)
	}
	out := make(map[string]service.VoiceObservation, len(guild.VoiceStates))
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == "" {
			continue
		}
		o := service.VoiceObservation{ExternalID: vs.UserID, ChannelID: vs.ChannelID}
		if m, err := g.s.State.Member(g.guildID, vs.UserID); err == nil && m.User != nil {
			o.Username = m.User.Username
			o.Bot = m.User.Bot
		}
		out[vs.UserID] = o
	}
	return out, nil
}

// MemberListSource pages through the guild member list over REST and
// resolves each member's voice state. Carries the authoritative bot flag.
type MemberListSource struct {
	s       *discordgo.Session
	guildID string
}

func NewMemberListSource(s *discordgo.Session, guildID string) *MemberListSource {
	return &MemberListSource{s: s, guildID: guildID}
}

func (m *MemberListSource) Name() string { return "member_list" }

func (m *MemberListSource) Collect(ctx context.Context) (map[string]service.VoiceObservation, error) {
	out := make(map[string]service.VoiceObservation)
	after := ""
	for {
		members, err := m.s.GuildMembers(m.guildID, after, 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("guild members: %w", err)
		}
		if len(members) == 0 {
			break
		}
		for _, mem := range members {
			if mem.User == nil {
				continue
			}
			vs, err := m.s.State.VoiceState(m.guildID, mem.User.ID)
			if err != nil || vs == nil || vs.ChannelID == "" {
				continue
			}
			out[mem.User.ID] = service.VoiceObservation{
				ExternalID: mem.User.ID,
				Username:   mem.User.Username,
				ChannelID:  vs.ChannelID,
				Bot:        mem.User.Bot,
			}
		}
		after = members[len(members)-1].User.ID
		if len(members) < 1000 {
			break
		}
	}
	return out, nil
}

// TrackedProbeSource re-checks every player the store already knows with
// an explicit per-user voice-state lookup. Catches users the bulk views
// dropped.
type TrackedProbeSource struct {
	s       *discordgo.Session
	guildID string
	repo    service.PresenceRepo
}

func NewTrackedProbeSource(s *discordgo.Session, guildID string, repo service.PresenceRepo) *TrackedProbeSource {
	return &TrackedProbeSource{s: s, guildID: guildID, repo: repo}
}

func (t *TrackedProbeSource) Name() string { return "tracked_probe" }

func (t *TrackedProbeSource) Collect(ctx context.Context) (map[string]service.VoiceObservation, error) {
	recs, err := t.repo.ListTracked(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked: %w", err)
	}
	out := make(map[string]service.VoiceObservation)
	for _, rec := range recs {
		vs, err := t.s.State.VoiceState(t.guildID, rec.ExternalID)
		if err != nil || vs == nil || vs.ChannelID == "" {
			continue
		}
		o := service.VoiceObservation{ExternalID: rec.ExternalID, ChannelID: vs.ChannelID}
		if m, err := t.s.State.Member(t.guildID, rec.ExternalID); err == nil && m.User != nil {
			o.Username = m.User.Username
			o.Bot = m.User.Bot
		}
		out[rec.ExternalID] = o
	}
	return out, nil
}
