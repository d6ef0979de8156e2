package bootstrap

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/yoyaba/gtm-docgen/config"
	"github.com/yoyaba/gtm-docgen/internal/adapters/crm"
	"github.com/yoyaba/gtm-docgen/internal/adapters/docs"
	"github.com/yoyaba/gtm-docgen/internal/adapters/research"
	"github.com/yoyaba/gtm-docgen/internal/core"
	"github.com/yoyaba/gtm-docgen/internal/data"
	"github.com/yoyaba/gtm-docgen/internal/service"
	"github.com/yoyaba/gtm-docgen/internal/webhook"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Submission *service.SubmissionService
	Ingest     *service.IngestService
	Sweeper    *service.SweeperService
	Registry   core.JobRegistry
	Replay     core.ReplayCache
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires repositories, adapters, and services.
func NewServices(deps *ServiceDeps) ServiceContainer {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := data.NewJobRegistry(deps.DB, data.RegistryConfig{Logger: logger})
	store := data.NewIdempotencyRepo(deps.DB, data.IdempotencyConfig{
		Retention: cfg.Sweeper.Retention,
		Logger:    logger,
	})

	var replay core.ReplayCache
	if deps.RedisClient != nil {
		replay = data.NewRedisReplayCache(deps.RedisClient)
	} else {
		replay = data.NewMemoryReplayCache(nil)
	}

	provider := research.MustNewClient(research.ClientOptions{
		BaseURL:     cfg.Provider.BaseURL,
		APIKey:      cfg.Provider.APIKey,
		Model:       cfg.Provider.Model,
		WebhookURL:  webhookCallbackURL(cfg.HTTP.BaseURL),
		Logger:      logger,
		MaxAttempts: cfg.Provider.MaxAttempts,
		BackoffBase: cfg.Provider.BackoffBase,
	})

	docsClient := docs.MustNewClient(docs.ClientOptions{
		BaseURL:   cfg.Docs.BaseURL,
		AuthToken: cfg.Docs.AuthToken,
		FolderID:  cfg.Docs.FolderID,
		Logger:    logger,
	})

	var crmClient core.CRMClient
	if cfg.CRM.Enabled && cfg.CRM.AuthToken != "" {
		crmClient = crm.MustNewClient(crm.ClientOptions{
			BaseURL:   cfg.CRM.BaseURL,
			AuthToken: cfg.CRM.AuthToken,
			Logger:    logger,
		})
	}

	composer := service.MustNewComposer(service.ComposerOptions{
		TitleExpr:    cfg.Provider.TitleExpr,
		SectionsExpr: cfg.Provider.SectionsExpr,
	})

	effects := service.MustNewEffectExecutor(service.EffectExecutorOptions{
		Store:      store,
		Docs:       docsClient,
		Composer:   composer,
		CRM:        crmClient,
		Logger:     logger,
		StaleAfter: cfg.Provider.EffectStaleAfter,
	})

	verifier := webhook.MustNewVerifier(webhook.VerifierOptions{
		Secret:    cfg.Webhook.Secret,
		Tolerance: cfg.Webhook.Tolerance,
	})

	submission := service.MustNewSubmissionService(service.SubmissionServiceOptions{
		Registry: registry,
		Provider: provider,
		Logger:   logger,
	})

	ingest := service.MustNewIngestService(service.IngestServiceOptions{
		Verifier:  verifier,
		Registry:  registry,
		Provider:  provider,
		Effects:   effects,
		Replay:    replay,
		Logger:    logger,
		ReplayTTL: cfg.Webhook.ReplayTTL,
	})

	sweeper := service.MustNewSweeperService(service.SweeperServiceOptions{
		Registry: registry,
		Store:    store,
		Config:   cfg.Sweeper,
		Logger:   logger,
	})

	return ServiceContainer{
		Submission: submission,
		Ingest:     ingest,
		Sweeper:    sweeper,
		Registry:   registry,
		Replay:     replay,
	}
}

// webhookCallbackURL derives the public callback URL from the app base URL.
func webhookCallbackURL(baseURL string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/webhook/research"
}
