package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/ledgerguard/src/config"
	"github.com/username/ledgerguard/src/database"
	"github.com/username/ledgerguard/src/handlers"
	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/processors"
	"github.com/username/ledgerguard/src/security/queryguard"
	"github.com/username/ledgerguard/src/services"
	"github.com/username/ledgerguard/src/store"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("LedgerGuard server starting...")

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath)
	database.InitReadOnlyDB(config.Cfg.DatabasePath)

	viewCache := cache.New(config.Cfg.CacheExpiration, config.Cfg.CacheCleanupInterval)

	st := store.New(database.DB)
	categorizer := processors.NewCategorizer(st, config.Cfg.ConfidenceFloor)
	guard := queryguard.New(config.Cfg.QueryDefaultLimit, config.Cfg.QueryMaxLimit)

	portfolioService := services.NewPortfolioService(st, viewCache)
	importService := services.NewImportService(st, categorizer, portfolioService, config.Cfg.LearnThreshold)
	queryService := services.NewQueryService(database.ReadOnlyDB, guard, config.Cfg.QueryTimeout)

	importHandler := handlers.NewImportHandler(importService)
	queryHandler := handlers.NewQueryHandler(queryService)
	portfolioHandler := handlers.NewPortfolioHandler(portfolioService)
	txHandler := handlers.NewTransactionHandler(st)
	adminHandler := handlers.NewAdminHandler(st)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "LedgerGuard is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/import/preview", importHandler.HandlePreview)
		r.Post("/import/apply", importHandler.HandleApply)

		r.Post("/query", queryHandler.HandleQuery)

		r.Get("/transactions", txHandler.HandleGetTransactions)
		r.Put("/transactions/{id}/category", txHandler.HandleCorrectCategory)
		r.Get("/categories", txHandler.HandleGetCategories)
		r.Get("/accounts", txHandler.HandleGetAccounts)

		r.Get("/portfolio/snapshot", portfolioHandler.HandleGetSnapshot)
		r.Get("/portfolio/allocation", portfolioHandler.HandleGetAllocation)
		r.Get("/portfolio/staleness", portfolioHandler.HandleGetStaleness)
		r.Get("/holdings/{id}/value", portfolioHandler.HandleGetHoldingValue)
		r.Post("/holdings/{id}/value", portfolioHandler.HandleRecordValue)

		r.Post("/instruments", adminHandler.HandleCreateInstrument)
		r.Post("/holdings", adminHandler.HandleCreateHolding)
		r.Post("/holdings/{id}/close", adminHandler.HandleCloseHolding)
		r.Get("/asset-sources", adminHandler.HandleGetAssetSources)
		r.Get("/targets", adminHandler.HandleGetTargets)
		r.Put("/targets", adminHandler.HandleUpsertTarget)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
