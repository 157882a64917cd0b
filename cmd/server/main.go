package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"

	"github.com/sasarjan/authsync/internal/audit"
	"github.com/sasarjan/authsync/internal/config"
	"github.com/sasarjan/authsync/internal/crypto"
	"github.com/sasarjan/authsync/internal/csrf"
	"github.com/sasarjan/authsync/internal/security"
	"github.com/sasarjan/authsync/internal/server"
	"github.com/sasarjan/authsync/internal/session"
	"github.com/sasarjan/authsync/internal/signer"
	"github.com/sasarjan/authsync/internal/syncbus"
	"github.com/sasarjan/authsync/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx := context.Background()

	tokens, err := buildTokenProvider(cfg)
	if err != nil {
		log.Fatalf("jwt keys: %v", err)
	}

	sg, err := signer.New(signer.Config{
		Secret:    cfg.HMACSecret,
		Algorithm: cfg.HMACAlgorithm,
		TTL:       cfg.MessageTTL(),
	})
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	encKey, err := cfg.EncryptionKeyBytes()
	if err != nil {
		log.Fatalf("encryption key: %v", err)
	}
	enc, err := crypto.NewAEADEncryptor(encKey)
	if err != nil {
		log.Fatalf("encryptor: %v", err)
	}

	// Redis backs the session store and sync bus when configured; otherwise
	// everything stays in-process.
	var store session.Store
	var bus syncbus.Bus
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer client.Close()
		store = session.NewRedisStore(client, cfg.AppID, cfg.RefreshTTL())
		bus = syncbus.NewRedisBus(client)
	} else {
		store = session.NewMemoryStore(cfg.AppID)
		bus = syncbus.NewMemoryBus()
	}
	defer bus.Close()

	emitter, err := audit.NewKafkaEmitter(cfg.AuditKafkaBrokersList(), cfg.AuditKafkaTopic)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}
	var auditLog *audit.Logger
	if emitter != nil {
		defer emitter.Close()
		auditLog = audit.NewLogger(emitter, cfg.AppID, server.ClientIP)
	}

	sync, err := syncbus.NewService(ctx, syncbus.ServiceConfig{
		AppID:       cfg.AppID,
		TrustedApps: cfg.TrustedAppsList(),
		Channel:     cfg.SyncChannel,
		OnBroadcast: func(ctx context.Context, evt syncbus.Event) {
			auditLog.LogEvent(ctx, "", audit.ActionSyncBroadcast, `{"type":"`+string(evt.Type)+`"}`)
		},
	}, bus, sg, enc)
	if err != nil {
		log.Fatalf("syncbus: %v", err)
	}
	defer sync.Destroy()

	users := server.NewUserDirectory(cfg.BcryptCost)
	if cfg.Env != "production" {
		seedDevUsers(users)
	}
	refresher := server.NewTokenRefresher(tokens, users)

	manager := session.GetSessionManager(session.Options{
		Store:            store,
		Broadcaster:      sync,
		Refresher:        refresher,
		RefreshThreshold: cfg.SessionRefreshThreshold,
		ActivityTimeout:  cfg.ActivityTimeout(),
		MonitorInterval:  cfg.MonitorInterval(),
	})
	defer session.DestroySessionManager()
	sync.OnAuthEvent(manager.ApplyRemoteEvent)

	providers, err := telemetry.NewProviders(ctx, cfg.OTLPEndpoint, "authsync-"+cfg.AppID, cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	srv := server.New(server.Options{
		Tokens:    tokens,
		Users:     users,
		Sessions:  manager,
		Refresher: refresher,
		Audit:     auditLog,
		CSRF: csrf.Options{
			CookieName: cfg.CSRFCookieName,
			HeaderName: cfg.CSRFHeaderName,
			Secure:     cfg.Env == "production",
		},
		Middleware: []mux.MiddlewareFunc{providers.HTTPMiddleware()},
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Let in-flight async audit emits land before the emitter closes.
	time.Sleep(audit.ShutdownDrainDuration)
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("http server stopped")
}

// buildTokenProvider loads the configured PEM key pair, or generates an
// ephemeral ECDSA pair for non-production runs without configured keys.
func buildTokenProvider(cfg *config.Config) (*security.TokenProvider, error) {
	if cfg.JWTPrivateKey == "" && cfg.JWTPublicKey == "" {
		if cfg.Env == "production" {
			log.Fatal("jwt keys: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY are required in production")
		}
		log.Println("jwt keys: none configured, generating an ephemeral pair")
		kp, err := security.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
		return security.NewTokenProvider(kp.Private, kp.Public, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL()), nil
	}
	private, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, err
	}
	public, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		return nil, err
	}
	alg := security.KeyAlg(public)
	if alg == "" {
		return nil, fmt.Errorf("jwt keys: unsupported public key type %T", public)
	}
	log.Printf("jwt keys: using configured %s pair", alg)
	return security.NewTokenProvider(private, public, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL()), nil
}

// seedDevUsers registers fixed demo accounts for local development.
func seedDevUsers(users *server.UserDirectory) {
	seeds := []struct {
		email, password, name string
		role                  security.Role
	}{
		{"customer@sasarjan.dev", "customer-dev-password", "Dev Customer", security.RoleCustomer},
		{"admin@sasarjan.dev", "admin-dev-password", "Dev Admin", security.RoleAdmin},
		{"volunteer@sasarjan.dev", "volunteer-dev-password", "Dev Volunteer", security.RoleVolunteer},
	}
	for _, s := range seeds {
		if _, err := users.Add(s.email, s.password, s.name, s.role); err != nil {
			log.Printf("seed: %s: %v", s.email, err)
		}
	}
}
