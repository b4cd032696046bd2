package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"restosite/admin"
	"restosite/analytics"
	"restosite/backoffice"
	"restosite/builder"
	"restosite/cache"
	"restosite/common"
	"restosite/config"
	"restosite/database"
	"restosite/email"
	"restosite/events"
	"restosite/sections"
	"restosite/site"
	"restosite/storefront"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.RequireSecrets(); err != nil {
		return err
	}

	db, err := common.ConnectDb(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db, log); err != nil {
		return err
	}

	pages := pageCache(cfg, log)
	if files, ok := pages.(*cache.FileStore); ok {
		go sweepCache(files, cfg.CacheTTL, log)
	}

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQPURL, log)
	}
	defer publisher.Close()

	store := sections.NewStore(db, log)
	store.OnSaved(events.SectionsSavedHook(publisher, log))
	if pages != nil {
		store.OnChanged(cache.Invalidator(db, pages, log))
	}
	manager := sections.NewManager(store, sections.WithLogger(log))

	var analyticsModule *analytics.AnalyticsModule
	if cfg.AnalyticsDB != "" {
		analyticsModule = analytics.NewAnalyticsModule(common.ConnectAnalyticsDb(cfg.AnalyticsDB, log), log)
	}

	mailer := email.NewEmailService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		Domain:   cfg.Domain,
	})

	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions("restosite-session", sessionStore))
	storefrontModule := storefront.NewStorefrontModule(db, store, analyticsModule, log)
	router.Use(cache.Middleware(pages, log, storefrontModule.TrackCachedVisit))

	admin.NewAdminModule(db, analyticsModule, mailer, pages, cfg.JWTSecret, cfg.TokenTTL, log).RegisterRoutes(router)
	builder.NewBuilderModule(store, manager, cfg.JWTSecret, cfg.TokenTTL, log).RegisterRoutes(router)
	storefrontModule.RegisterRoutes(router)
	backoffice.NewBackofficeModule(db, manager, pages, cfg.BackofficeEmails, log).RegisterRoutes(router)
	site.NewSiteModule(db, cfg.Domain).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           common.SubdomainHandler(cfg.BaseDomain, router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("starting server", zap.String("addr", srv.Addr), zap.String("base_domain", cfg.BaseDomain))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// pageCache returns the configured page cache, or nil when caching is off.
func pageCache(cfg *config.Config, log *zap.Logger) cache.Store {
	switch cfg.CacheBackend {
	case "redis":
		client := common.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
		if client == nil {
			log.Warn("redis unavailable, page cache disabled")
			return nil
		}
		return cache.NewRedisStore(client, cfg.CacheTTL)
	case "off", "":
		return nil
	default:
		return cache.NewFileStore(cfg.CacheDir, cfg.CacheTTL)
	}
}

// sweepCache removes expired page files; Get already ignores them, this only
// reclaims the disk.
func sweepCache(files *cache.FileStore, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for range ticker.C {
		if err := files.ClearOld(); err != nil {
			log.Warn("page cache sweep", zap.Error(err))
		}
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
