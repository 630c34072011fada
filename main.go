package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/whiskeyshelf/apiv1/config"
	"github.com/whiskeyshelf/apiv1/dbhelper"
	"github.com/whiskeyshelf/apiv1/middlewares"
	"github.com/whiskeyshelf/apiv1/routes"
	"github.com/whiskeyshelf/apiv1/services"
	"github.com/whiskeyshelf/apiv1/utils"
)

func main() {
	log := logrus.New()

	// Setting up configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	// Setting up logs
	if err := setupLogging(log, cfg); err != nil {
		log.Fatal(err)
	}
	entry := log.WithField("profile", cfg.Profile.String())

	// Setting up database
	db, err := dbhelper.OpenDB(cfg.Database, log)
	if err != nil {
		log.Fatal(err)
	}
	if err := dbhelper.InitDB(db); err != nil {
		log.Fatal(err)
	}
	store := dbhelper.NewStore(db, cfg.Database.QueryTimeout)

	// Setting up rate limiters
	loginCfg := services.RateLimitConfig{Limit: cfg.Auth.LoginRateLimit, Window: cfg.Auth.LoginRateWindow, Prefix: "ratelimit:login"}
	resetCfg := services.RateLimitConfig{Limit: cfg.Auth.ResetRateLimit, Window: cfg.Auth.ResetRateWindow, Prefix: "ratelimit:reset"}
	var loginLimiter, resetLimiter services.RateLimiter
	var sweepers []services.Sweeper
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("redis unreachable: %v", err)
		}
		defer client.Close()
		loginLimiter = services.NewRedisRateLimiter(client, loginCfg)
		resetLimiter = services.NewRedisRateLimiter(client, resetCfg)
	} else {
		entry.Warn("no redis configured, rate limits are per process")
		memLogin := services.NewMemoryRateLimiter(loginCfg)
		memReset := services.NewMemoryRateLimiter(resetCfg)
		loginLimiter, resetLimiter = memLogin, memReset
		sweepers = append(sweepers, memLogin, memReset)
	}

	// Setting up auth
	sessionKey := []byte(cfg.Auth.SessionSecret)
	hasher := utils.NewPasswordHasher(cfg.Auth.HashConcurrency)
	signer := utils.NewTokenSigner(cfg.Auth.TokenSecret, cfg.Auth.TokenSecretPrevious, cfg.Auth.TokenTTL)
	tokens := services.NewTokenAuthenticator(store, signer, cfg.Auth.TokenTTL)
	sessionManager := services.NewSessionManager(store, cfg.Auth.SessionTTL)
	cookies := services.NewCookieStore(sessionManager, cfg.Profile, sessionKey)
	authService, err := services.NewAuthService(
		store,
		hasher,
		tokens,
		sessionManager,
		services.LogMailer{Log: entry.WithField("component", "mailer")},
		services.AuthSettings{
			Lockout: services.LockoutPolicy{
				Threshold: cfg.Auth.LockoutThreshold,
				Duration:  cfg.Auth.LockoutDuration,
			},
			ResetTokenTTL: cfg.Auth.ResetTokenTTL,
			ResetURL:      cfg.Auth.ResetURL,
		},
		entry.WithField("component", "auth"),
	)
	if err != nil {
		log.Fatal(err)
	}

	middlewares.TrustProxyHeaders(cfg.Server.TrustProxy)
	handlers := &routes.Handlers{
		Auth:    authService,
		Cookies: cookies,
		Chain: middlewares.NewAuthChain(
			entry,
			middlewares.NewSessionAuthenticator(cookies, store),
			middlewares.NewBearerAuthenticator(tokens, cookies, entry),
		),
		LoginLimiter: loginLimiter,
		ResetLimiter: resetLimiter,
		FloodRPS:     cfg.Server.FloodRPS,
		Log:          entry,
	}
	if cfg.Google.Enabled() {
		handlers.Google = services.NewGoogleProvider(cfg.Google)
		handlers.OAuth = routes.NewOAuthStateStore(cfg.Profile, cfg.Google.SuccessURL, sessionKey)
	}

	// Setting up maintenance
	scheduler := cron.New()
	janitor := services.NewJanitor(store, entry.WithField("component", "janitor"), sweepers...)
	if err := janitor.Schedule(scheduler, services.DefaultCleanupSchedule); err != nil {
		log.Fatal(err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Opening the webserver
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", healthz(store)).Methods("GET")
	routes.CreateRoutes(r, handlers)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      middlewares.Logging(entry)(middlewares.CORS(cfg.Server.AllowedOrigins)(r)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		entry.WithField("addr", cfg.Server.Addr).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		entry.WithError(err).Error("shutdown")
	}
}

func setupLogging(log *logrus.Logger, cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if cfg.Profile == config.Production {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if cfg.Log.File == "" || cfg.Log.File == "-" {
		return nil
	}
	file, err := os.OpenFile(cfg.Log.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return err
	}
	log.SetOutput(file)
	return nil
}

func healthz(store *dbhelper.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := store.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			utils.WriteError(w, http.StatusServiceUnavailable, utils.ErrorBody{
				Code:    string(services.KindUnavailable),
				Message: utils.SERVER_DOWN,
			})
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
