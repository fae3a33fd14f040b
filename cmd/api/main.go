package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"membership/internal/admin"
	"membership/internal/api"
	"membership/internal/auth"
	"membership/internal/card"
	"membership/internal/config"
	"membership/internal/delivery"
	"membership/internal/httpmiddleware"
	"membership/internal/logger"
	"membership/internal/mailer"
	"membership/internal/metrics"
	"membership/internal/oauth"
	"membership/internal/queue"
	"membership/internal/store"
	"membership/internal/student"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(0).Fatal("API: invalid configuration", "error", err)
	}
	log := logger.New(cfg.LogLevel)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, log); err != nil {
		log.Fatal("API: http server failed", "error", err)
	}
}

func runHTTP(cfg config.App, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	var q queue.Queue
	if cfg.Queue.Backend == "memory" {
		q = queue.NewInMemory(cfg.Queue.Size)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.Queue.Key, log)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	spec, err := cfg.Card.QRSpec()
	if err != nil {
		return err
	}
	assets, err := card.LoadAssets()
	if err != nil {
		return err
	}

	students := student.NewService(student.NewRepository(db.Client), delivery.NewPublisher(q), log)
	admins := admin.NewService(admin.NewRepository(db.Client), cfg.Admin.Emails, log)

	// With the in-memory backend nobody else can see the queue, so deliveries
	// run in this process.
	if cfg.Queue.Backend == "memory" {
		mail, err := mailer.New(cfg.SMTP, log)
		if err != nil {
			return err
		}
		renderer := card.NewRenderer(assets, spec, cfg.Card.TempDir, cfg.Card.Scale, log)
		worker := delivery.NewWorker(q, students, delivery.NewService(renderer, mail, nil, log, m), cfg.Queue.Workers, log, m)
		// Runs before the deferred closes so an in-flight delivery can finish
		// and remove its card file.
		defer runInProcess(ctx, worker.Run, log)()
	}

	handler := api.New(api.Deps{
		Students: students,
		Admins:   admins,
		AdminSignIn: oauth.NewGoogle(oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.AdminCallbackURL,
		}),
		StudentSignIn: oauth.NewGoogle(oauth.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			CallbackURL:  cfg.Google.StudentCallbackURL,
		}),
		Resolver: auth.NewResolver(admins, students),
		Tokens: api.Tokens{
			Issuer:     cfg.JWT.Issuer,
			SigningKey: cfg.JWT.SigningKey,
			TTL:        cfg.JWT.AccessTTL,
		},
		QRSpec:        spec,
		Logo:          assets.Logo,
		Limiter:       httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin/2, cfg.RateLimitPerMin/2),
		Metrics:       m,
		Health:        map[string]api.Checker{"db": db, "redis": redisClient},
		SecureCookies: cfg.Production(),
		Log:           log,
	})

	r := gin.New()

	r.Use(gin.Recovery())

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.HTTP.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))

	r.Use(securityHeaders())

	r.Use(m.GinMiddleware())

	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware(httpmiddleware.ByIP))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handler.Register(r)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API: starting server", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("API: shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("API: server forced shutdown", "error", err)
	}

	log.Info("API: server exited")
	return nil
}

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		// Only add HSTS in production
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
