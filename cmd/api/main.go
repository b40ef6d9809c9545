package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"learncenter/internal/accesscode"
	"learncenter/internal/achievement"
	"learncenter/internal/attendance"
	"learncenter/internal/auth"
	"learncenter/internal/cloudinary"
	"learncenter/internal/config"
	"learncenter/internal/exam"
	"learncenter/internal/handler"
	"learncenter/internal/httpmiddleware"
	"learncenter/internal/identity"
	"learncenter/internal/logger"
	"learncenter/internal/memstore"
	"learncenter/internal/queue"
	"learncenter/internal/realtime"
	"learncenter/internal/store"
	"learncenter/internal/user"
	"learncenter/internal/validation"
)

func main() {
	cfg := config.Load()
	log := logger.New(os.Stderr, logger.Options{
		Token:       cfg.RollbarToken,
		Environment: cfg.Env,
		CodeVersion: cfg.BuildVersion,
	})
	defer log.Close()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("http server failed", err)
	}
}

// stores bundles the persistence backends chosen by STORE_BACKEND.
type stores struct {
	users      user.Store
	attendance attendance.Store
	exams      exam.Store
	codes      accesscode.Store
	health     map[string]func(context.Context) bool
	close      func()
}

func openStores(ctx context.Context, cfg config.App, log *logger.Logger) (stores, error) {
	if cfg.StoreBackend == "memory" {
		log.Info("using in-memory store; data is lost on restart")
		db := memstore.Open()
		return stores{
			users:      memstore.NewUserStore(db),
			attendance: memstore.NewAttendanceStore(db),
			exams:      memstore.NewExamStore(db),
			codes:      memstore.NewAccessCodeStore(db),
			health:     map[string]func(context.Context) bool{},
			close:      func() {},
		}, nil
	}

	db, err := store.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		users:      user.NewRepository(db.Client),
		attendance: attendance.NewRepository(db.Client),
		exams:      exam.NewRepository(db.Client),
		codes:      accesscode.NewRepository(db.Client),
		health:     map[string]func(context.Context) bool{"db": db.Healthy},
		close:      func() { _ = db.Close() },
	}, nil
}

func openQueue(cfg config.App, health map[string]func(context.Context) bool) (queue.Queue, func()) {
	if cfg.QueueBackend == "memory" {
		return queue.NewInMemory(256), func() {}
	}
	rdb := store.NewRedis(cfg.RedisAddr)
	health["redis"] = rdb.Healthy
	return queue.NewRedisQueue(rdb.Client, queue.DefaultKey), func() { _ = rdb.Close() }
}

func run(cfg config.App, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	q, closeQueue := openQueue(cfg, st.health)
	defer closeQueue()

	issuer := auth.Issuer{Name: cfg.JWTIssuer, Key: cfg.JWTSigningKey, AccessTTL: cfg.AccessTTL, RefreshTTL: cfg.RefreshTTL}
	validate := validation.New()
	hub := realtime.NewHub(log)

	h := &handler.Handler{
		Users:        user.NewService(st.users, issuer, validate),
		Recorder:     attendance.NewRecorder(st.attendance, identity.NewResolver(st.users), queue.Notifier{Queue: q}, cfg.Location, log),
		Dashboard:    attendance.NewDashboard(st.attendance),
		Exams:        exam.NewService(st.exams, validate),
		Codes:        accesscode.NewService(st.codes, validate),
		Achievements: achievement.Static{},
		Hub:          hub,
		Validate:     validate,
		Log:          log,
		QRSize:       cfg.QRSize,
		Health: func(ctx context.Context) map[string]bool {
			out := make(map[string]bool, len(st.health))
			for name, check := range st.health {
				out[name] = check(ctx)
			}
			return out
		},
	}

	cdn := cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	if cdn.Configured() {
		h.Uploader = cdn
		log.Info("cloudinary configured", logger.Fields{"cloud": cfg.CloudinaryCloudName})
	} else {
		log.Info("cloudinary not configured; uploads are disabled")
	}

	go hub.Run(ctx)
	go func() {
		if err := realtime.Relay(ctx, q, hub, log); err != nil && ctx.Err() == nil {
			log.Error("invalidation relay stopped", err)
		}
	}()

	metrics := httpmiddleware.NewMetrics(prometheus.DefaultRegisterer)
	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(securityHeaders())
	r.Use(metrics.Middleware())
	r.Use(limiter.Middleware(nil))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Register(r, issuer)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", logger.Fields{"port": cfg.HTTPPort, "store": cfg.StoreBackend, "queue": cfg.QueueBackend})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", err)
	}
	log.Info("server exited")
	return nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        24 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
