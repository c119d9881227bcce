package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/patrickmn/go-cache"

	api "github.com/pdp-edu/unimonitor/internal/api/http"
	auth "github.com/pdp-edu/unimonitor/internal/auth/middleware"
	"github.com/pdp-edu/unimonitor/internal/config"
	"github.com/pdp-edu/unimonitor/internal/coursework"
	"github.com/pdp-edu/unimonitor/internal/db"
	"github.com/pdp-edu/unimonitor/internal/grants"
	"github.com/pdp-edu/unimonitor/internal/records"
	"github.com/pdp-edu/unimonitor/internal/storage"
	syncx "github.com/pdp-edu/unimonitor/internal/sync"
)

func main() {
	cfg := config.Load()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	store := records.NewSQLStore(dbh, cfg.DBDriver)

	if cfg.SeedAdmins {
		res, err := records.SeedAdmins(ctx, store, records.DefaultAdmins(nil))
		if err != nil {
			log.Fatalf("seed admins: %v", err)
		}
		for _, r := range res {
			if r.Created {
				log.Printf("seeded %s (password: %s)", r.Username, r.Password)
			}
		}
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	events := syncx.NewEventRepo(dbh, cfg.SiteID)
	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL)

	deps := api.Deps{
		Auth:               authSvc,
		Records:            store,
		Grants:             grants.NewService(store, grants.NewSQLStore(dbh), bs, events),
		Coursework:         coursework.NewService(coursework.NewSQLStore(dbh), bs, events),
		Events:             events,
		Roles:              cache.New(cfg.RoleCacheTTL, 2*cfg.RoleCacheTTL),
		AllowClaimFallback: cfg.AllowClaimFallback,
	}

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := dbh.PingContext(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
	})

	r.Route("/api", func(ar chi.Router) {
		// Local login (enabled by default; can be turned off when another IdP fronts the API)
		if cfg.EnableLocalAuth {
			ar.Post("/auth/login", auth.LoginHandler(authSvc, store))
		}
		api.MountAPI(ar, deps)
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("listening on %s (mode=%s, db=%s, site=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver, cfg.SiteID)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
