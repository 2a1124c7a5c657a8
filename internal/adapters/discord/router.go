package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/vcguard/vcguard/internal/app/service"
	"github.com/vcguard/vcguard/internal/domain"
	"github.com/vcguard/vcguard/internal/infra/storage"
)

type Router struct {
	s   *discordgo.Session
	log *slog.Logger

	guildID      string
	adminRoleIDs []string

	scanner   *service.ScannerService
	countdown *service.CountdownService
	policy    *service.PolicyService
	presence  service.PresenceRepo
}

func NewRouter(
	s *discordgo.Session,
	log *slog.Logger,
	guildID string,
	adminRoleIDs []string,
	scanner *service.ScannerService,
	countdown *service.CountdownService,
	policy *service.PolicyService,
	presence service.PresenceRepo,
) *Router {
	return &Router{
		s:            s,
		log:          log,
		guildID:      guildID,
		adminRoleIDs: adminRoleIDs,
		scanner:      scanner,
		countdown:    countdown,
		policy:       policy,
		presence:     presence,
	}
}

func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) Handlers() {
	// Slash commands
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		r.log.Info("slash_command", "name", data.Name, "by", ic.Member.User.ID)

		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("slash_panic", "name", data.Name, "panic", fmt.Sprint(rec))
				ReplyEphemeral(s, ic, "⚠️ Something went wrong.")
			}
		}()

		_ = DeferEphemeral(s, ic)
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()

		switch data.Name {
		case "vcstatus":
			msg, err := r.statusText(ctx)
			if err != nil {
				msg = "⚠️ Could not read presence state: " + err.Error()
			}
			ReplyEphemeral(s, ic, msg)

		case "vcpolicy":
			if len(data.Options) == 0 {
				ReplyEphemeral(s, ic, "Use `/vcpolicy show` or `/vcpolicy set`.")
				return
			}
			switch data.Options[0].Name {
			case "show":
				msg, err := r.policy.Show(ctx, ic.GuildID)
				if err != nil {
					msg = "⚠️ Could not read the policy: " + err.Error()
				}
				ReplyEphemeral(s, ic, msg)
			case "set":
				if !r.requireAdminOrRoles(s, ic) {
					return
				}
				var patch storage.PolicyUpdate
				for _, opt := range data.Options[0].Options {
					switch opt.Name {
					case "enabled":
						v := opt.BoolValue()
						patch.Enabled = &v
					case "grace_seconds":
						v := int(opt.IntValue())
						patch.GraceSeconds = &v
					case "warning_interval_seconds":
						v := int(opt.IntValue())
						patch.WarningIntervalSeconds = &v
					}
				}
				msg, err := r.policy.Update(ctx, ic.GuildID, patch)
				if err != nil {
					ReplyEphemeral(s, ic, "⚠️ Could not update: "+err.Error())
					return
				}
				ReplyEphemeral(s, ic, "✅ Policy updated.\n"+msg)
			}

		case "vcreset":
			if !r.requireAdminOrRoles(s, ic) {
				return
			}
			target := data.Options[0].UserValue(s)
			if target == nil {
				ReplyEphemeral(s, ic, "⚠️ Unknown player.")
				return
			}
			r.countdown.Forget(target.ID)
			ok, err := r.presence.ClearAll(ctx, target.ID)
			if err != nil {
				ReplyEphemeral(s, ic, "⚠️ Reset failed: "+err.Error())
				return
			}
			if !ok {
				ReplyEphemeral(s, ic, "ℹ️ No tracked data for that player.")
				return
			}
			ReplyEphemeral(s, ic, fmt.Sprintf("✅ Presence data for <@%s> deleted.", target.ID))
		}
	})

	// VoiceStateUpdate → immediate reconcile + delayed follow-up pass.
	// The heavy lifting runs off the gateway goroutine.
	r.s.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if vs.GuildID != r.guildID {
			return
		}
		key := fmt.Sprintf("%s:%s:%s", vs.UserID, vs.ChannelID, vs.SessionID)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			r.scanner.HandleVoiceEvent(ctx, key)
		}()
	})
}

func (r *Router) statusText(ctx context.Context) (string, error) {
	recs, err := r.presence.ListTracked(ctx)
	if err != nil {
		return "", err
	}

	byChannel := map[domain.ChannelID][]string{}
	inGame := 0
	for _, rec := range recs {
		if rec.InGame {
			inGame++
		}
		if rec.CurrentChannel != domain.ChannelNone {
			byChannel[rec.CurrentChannel] = append(byChannel[rec.CurrentChannel], rec.ExternalID)
		}
	}

	counts := r.scanner.LastResult()
	var b strings.Builder
	fmt.Fprintf(&b, "📡 **Voice presence** — approved: **%d**, missing: **%d**, in-game: **%d**\n",
		counts.Approved, counts.UnapprovedOrAbsent, inGame)

	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, string(ch))
	}
	sort.Strings(channels)
	for _, ch := range channels {
		members := byChannel[domain.ChannelID(ch)]
		sort.Strings(members)
		fmt.Fprintf(&b, "<#%s>: ", ch)
		for i, id := range members {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "<@%s>", id)
		}
		b.WriteString("\n")
	}
	if len(channels) == 0 {
		b.WriteString("No one is in an approved channel right now.")
	}
	return b.String(), nil
}

func (r *Router) requireAdminOrRoles(s *discordgo.Session, ic *discordgo.InteractionCreate) bool {
	// Guild owner
	if g, _ := s.State.Guild(ic.GuildID); g != nil && ic.Member != nil && ic.Member.User != nil && ic.Member.User.ID == g.OwnerID {
		return true
	}

	// Administrator bit
	roles, _ := s.GuildRoles(ic.GuildID)
	var perms int64
outer:
	for _, rid := range ic.Member.Roles {
		for _, ro := range roles {
			if ro.ID == rid {
				perms |= ro.Permissions
				if (perms & discordgo.PermissionAdministrator) != 0 {
					break outer
				}
			}
		}
	}
	if (perms & discordgo.PermissionAdministrator) != 0 {
		return true
	}

	// Explicit bot admin roles
	if len(r.adminRoleIDs) > 0 {
		has := make(map[string]struct{}, len(ic.Member.Roles))
		for _, rid := range ic.Member.Roles {
			has[rid] = struct{}{}
		}
		for _, want := range r.adminRoleIDs {
			if _, ok := has[want]; ok {
				return true
			}
		}
	}

	ReplyEphemeral(s, ic, "🔒 You don't have permission for that.")
	return false
}
