package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/commng/commng/cmd/commng/cli"
	"github.com/commng/commng/internal/app"
	"github.com/commng/commng/internal/identity"
	"github.com/commng/commng/internal/invites"
	"github.com/commng/commng/internal/platform/cache"
	"github.com/commng/commng/internal/platform/db"
	"github.com/commng/commng/internal/policy"
	"github.com/commng/commng/jobs"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: commng <command> [flags]

commands:
  seed           provision the role catalogue and a bootstrap superuser
  provision      register a single role key
  grant          assign a role key to an identity
  check          evaluate an authorization decision
  expand         print the keys a role key implies
  warm           enqueue a permission cache warmup
  invite-create  mint an invite code for a role-key bundle
  invite-redeem  redeem an invite code for an identity
  invite-revoke  revoke an unused invite code
  invite-list    list invite codes by derived status`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	command, args := os.Args[1], os.Args[2:]

	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, continuing without cache", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	store := policy.NewStore(pool)
	identityService := identity.NewService(identity.NewRepository(pool))
	var permCache *policy.Cache
	if redisClient != nil {
		permCache = policy.NewCache(redisClient, cfg.PermCacheTTL, cfg.UserRolesCacheTTL)
	}
	engine := policy.NewEngine(store, identityService, permCache, logger, nil)
	inviteService := invites.NewService(invites.NewStore(pool), engine, logger, nil)

	queue := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = queue.Close() }()

	grants := &cli.GrantsCLI{Engine: engine, Queue: queue, Out: os.Stdout}
	inviteCLI := &cli.InvitesCLI{Service: inviteService, Out: os.Stdout}
	seeder := &cli.SeedCLI{Pool: pool, Identities: identityService, Logger: logger}

	var cmdErr error
	switch command {
	case "seed":
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		adminID := fs.String("admin", "admin-1", "bootstrap admin identity")
		adminEmail := fs.String("email", "admin@commng.local", "bootstrap admin email")
		adminPassword := fs.String("password", "", "bootstrap admin password")
		_ = fs.Parse(args)
		if *adminPassword == "" {
			cmdErr = fmt.Errorf("seed: -password required")
			break
		}
		cmdErr = seeder.Run(ctx, cli.SeedParams{
			AdminID:       *adminID,
			AdminEmail:    *adminEmail,
			AdminPassword: *adminPassword,
		})
	case "provision":
		fs := flag.NewFlagSet("provision", flag.ExitOnError)
		roleKey := fs.String("role", "", "role key to provision")
		description := fs.String("desc", "", "role description")
		_ = fs.Parse(args)
		cmdErr = grants.Provision(ctx, *roleKey, *description)
	case "grant":
		fs := flag.NewFlagSet("grant", flag.ExitOnError)
		granter := fs.String("granter", "", "identity performing the grant")
		grantee := fs.String("grantee", "", "identity receiving the role")
		roleKey := fs.String("role", "", "role key to grant")
		_ = fs.Parse(args)
		cmdErr = grants.Grant(ctx, *granter, *grantee, *roleKey)
	case "check":
		fs := flag.NewFlagSet("check", flag.ExitOnError)
		identityID := fs.String("identity", "", "identity to check")
		roleKey := fs.String("role", "", "required role key")
		_ = fs.Parse(args)
		cmdErr = grants.Check(ctx, *identityID, *roleKey)
	case "expand":
		fs := flag.NewFlagSet("expand", flag.ExitOnError)
		roleKey := fs.String("role", "", "role key to expand")
		_ = fs.Parse(args)
		cmdErr = grants.Expand(*roleKey)
	case "warm":
		cmdErr = grants.Warm(ctx)
	case "invite-create":
		fs := flag.NewFlagSet("invite-create", flag.ExitOnError)
		admin := fs.String("admin", "", "administrator identity")
		roles := fs.String("roles", "", "comma separated role keys")
		hours := fs.Int("hours", 0, "hours until expiry (default 24)")
		_ = fs.Parse(args)
		cmdErr = inviteCLI.Create(ctx, *admin, *roles, *hours)
	case "invite-redeem":
		fs := flag.NewFlagSet("invite-redeem", flag.ExitOnError)
		code := fs.String("code", "", "invite code")
		identityID := fs.String("identity", "", "identity redeeming the code")
		_ = fs.Parse(args)
		cmdErr = inviteCLI.Redeem(ctx, *code, *identityID)
	case "invite-revoke":
		fs := flag.NewFlagSet("invite-revoke", flag.ExitOnError)
		admin := fs.String("admin", "", "administrator identity")
		codeID := fs.String("id", "", "invite code id")
		_ = fs.Parse(args)
		cmdErr = inviteCLI.Revoke(ctx, *admin, *codeID)
	case "invite-list":
		fs := flag.NewFlagSet("invite-list", flag.ExitOnError)
		admin := fs.String("admin", "", "administrator identity")
		status := fs.String("status", "", "filter: active|used|expired|revoked")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "page offset")
		_ = fs.Parse(args)
		cmdErr = inviteCLI.List(ctx, *admin, *status, *limit, *offset)
	default:
		usage()
	}
	if cmdErr != nil {
		logger.Error("command failed", slog.String("command", command), slog.Any("error", cmdErr))
		os.Exit(1)
	}
}
