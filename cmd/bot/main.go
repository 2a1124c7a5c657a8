package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	dashboardadapter "github.com/vcguard/vcguard/internal/adapters/dashboard"
	discordadapter "github.com/vcguard/vcguard/internal/adapters/discord"
	"github.com/vcguard/vcguard/internal/adapters/minecraft"
	"github.com/vcguard/vcguard/internal/app/service"
	"github.com/vcguard/vcguard/internal/infra/cache"
	"github.com/vcguard/vcguard/internal/infra/config"
	"github.com/vcguard/vcguard/internal/infra/logging"
	"github.com/vcguard/vcguard/internal/infra/storage"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config: ", err)
	}
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("db: ", err)
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		log.Fatal("migrate: ", err)
	}
	logger.Info("db_ready")

	// Redis (event dedup + command history)
	rdb, err := cache.New(cfg.RedisDSN)
	if err != nil {
		log.Fatal("redis: ", err)
	}
	defer rdb.Close()

	// Repos
	presenceRepo := storage.NewPresenceRepo(db)
	policyRepo := storage.NewPolicyRepo(db)

	// Discord session. Login failure is fatal — operator intervention needed.
	s, err := discordadapter.NewSession(cfg.DiscordToken)
	if err != nil {
		log.Fatal("discord session: ", err)
	}
	if err := s.Open(); err != nil {
		log.Fatal("discord login: ", err)
	}
	defer s.Close()
	logger.Info("discord_connected", "user", s.State.User.Username, "id", s.State.User.ID)

	// Scanner wired below needs the bridge and countdown first; the bridge
	// needs the scanner's game-session hook. Break the cycle with a late bind.
	var scanner *service.ScannerService

	bridge := minecraft.NewClient(cfg.BridgeURL, logger, func(discordID, player string, joined bool) {
		cctx, ccancel := context.WithTimeout(ctx, 30*time.Second)
		defer ccancel()
		scanner.OnGameSession(cctx, discordID, player, joined)
	})

	notifier := service.NewNotifierService(logger, bridge, discordadapter.NewDM(s, logger), rdb, 5*time.Second)
	countdown := service.NewCountdownService(logger, presenceRepo, policyRepo, notifier,
		cfg.DiscordGuild, 30*time.Second, 10*time.Second)

	// Dashboard push layer
	hub := dashboardadapter.NewHub(logger)
	go hub.Run()
	defer hub.Stop()
	broadcaster := dashboardadapter.NewBroadcaster(logger, hub, presenceRepo, bridge, rdb)

	sources := []service.VoiceSource{
		discordadapter.NewGatewaySource(s, cfg.DiscordGuild),
		discordadapter.NewMemberListSource(s, cfg.DiscordGuild),
		discordadapter.NewTrackedProbeSource(s, cfg.DiscordGuild, presenceRepo),
	}
	scanner = service.NewScannerService(logger, presenceRepo, countdown, sources, rdb,
		cfg.ApprovedChannelIDs, cfg.OwnerTestIDs, cfg.RescanDelay,
		func() { go broadcaster.Refresh() })

	if cfg.BridgeURL != "" {
		go bridge.Run(ctx)
	} else {
		logger.Warn("bridge_disabled", "reason", "MC_BRIDGE_URL not set")
	}

	// Slash commands + voice event hooks
	router := discordadapter.NewRouter(s, logger, cfg.DiscordGuild, cfg.AdminRoleIDs,
		scanner, countdown, service.NewPolicyService(policyRepo), presenceRepo)
	if err := router.Register(); err != nil {
		log.Fatal("registering commands: ", err)
	}
	router.Handlers()
	logger.Info("commands_registered", "guild", cfg.DiscordGuild)

	// Dashboard HTTP server
	server := dashboardadapter.NewServer(logger, cfg.HTTPAddr, hub, broadcaster)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error("dashboard_server_failed", "error", err)
		}
	}()

	// Fixed-interval reconciliation loop
	go scanner.Run(ctx, cfg.ScanInterval)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop

	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = server.Shutdown(sctx)
	logger.Info("stopped")
}
