package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/keystash/keystash/internal/authn"
	"github.com/keystash/keystash/internal/authz"
	"github.com/keystash/keystash/internal/cache"
	"github.com/keystash/keystash/internal/config"
	"github.com/keystash/keystash/internal/domain/oauth"
	"github.com/keystash/keystash/internal/domain/repository"
	healthctrl "github.com/keystash/keystash/internal/http/controllers/health"
	oauthctrl "github.com/keystash/keystash/internal/http/controllers/oauth"
	oidcctrl "github.com/keystash/keystash/internal/http/controllers/oidc"
	"github.com/keystash/keystash/internal/http/router"
	"github.com/keystash/keystash/internal/jose"
	"github.com/keystash/keystash/internal/observability/logger"
	"github.com/keystash/keystash/internal/security/password"
	"github.com/keystash/keystash/internal/store/memory"
	"github.com/keystash/keystash/internal/store/pg"
)

// daos is the storage surface the wiring needs, satisfied by both drivers.
type daos interface {
	repository.ClientDao
	repository.ScopeDao
	repository.KeyDao
	repository.AccountDao
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "keystash",
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store daos
	var pinger healthctrl.Pinger
	switch cfg.Storage.Driver {
	case "postgres":
		pgStore, err := pg.New(ctx, cfg.Storage.DSN, cfg.Storage.Postgres.MaxConns)
		if err != nil {
			return err
		}
		defer pgStore.Close()
		if cfg.Flags.Migrate {
			if err := pgStore.Migrate(ctx); err != nil {
				return err
			}
			log.Info("schema migrations applied")
		}
		store, pinger = pgStore, pgStore
	default:
		memStore := memory.New()
		if err := seedDevData(memStore); err != nil {
			return err
		}
		log.Warn("memory storage driver active, all data is ephemeral")
		store = memStore
	}

	keys := jose.NewKeyManager(store)
	tokens := jose.NewTokenService(jose.NewAlgorithmFactory(keys), cfg.JWT.Issuer)
	an := authn.NewService(authn.Deps{Accounts: store})
	az := authz.NewService(authz.Deps{
		Clients: store,
		Scopes:  store,
		Authn:   an,
		Tokens:  tokens,
		Codes:   cache.New[string, *oauth.AuthCode](cfg.AuthCode.TTL),
	})

	handler := router.New(router.Deps{
		Authorize: oauthctrl.NewAuthorizeController(az, an),
		Token:     oauthctrl.NewTokenController(az),
		Discovery: oidcctrl.NewDiscoveryController(cfg.JWT.Issuer, store),
		JWKS:      oidcctrl.NewJWKSController(keys),
		Health:    healthctrl.NewController(pinger),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", logger.Path(cfg.Server.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// seedDevData gives the memory driver a usable client, account and signing
// key so the server answers requests out of the box.
func seedDevData(store *memory.Store) error {
	secretHash, err := password.Hash(password.Default, "dev-secret")
	if err != nil {
		return err
	}
	passHash, err := password.Hash(password.Default, "password")
	if err != nil {
		return err
	}

	store.PutClient(repository.Client{
		ClientID:         "dev-client",
		ClientSecretHash: secretHash,
		AccountID:        1,
		AuthorizedGrantTypes: []oauth.GrantType{
			oauth.GrantAuthorizationCode, oauth.GrantImplicit,
			oauth.GrantClientCredentials, oauth.GrantPassword, oauth.GrantRefreshToken,
		},
		Scope:        "openid,profile,email",
		RedirectURIs: []string{"http://localhost:3000/callback"},
	})
	store.PutAccount(repository.Account{
		ID:           1,
		Email:        "dev@keystash.local",
		PasswordHash: passHash,
		Verified:     true,
	})
	store.PutKey(repository.KeyRecord{
		ID:        "dev-hmac",
		Algorithm: repository.KeyAlgorithmHMAC,
		Secret:    "dev-only-secret-change-me-in-prod",
		Active:    true,
	})
	store.SetAllowedScopes([]string{"openid", "profile", "email"})
	return nil
}
