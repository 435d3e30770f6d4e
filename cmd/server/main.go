// @title           Practice Sharing API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"serwer-gabinetu/internal/api"
	"serwer-gabinetu/internal/config"
	"serwer-gabinetu/internal/database"
	"serwer-gabinetu/internal/sharing"
	"serwer-gabinetu/internal/token"
	"serwer-gabinetu/internal/websocket"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	_ "serwer-gabinetu/docs"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Nie można połączyć się z bazą danych: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Nie można pingować bazy danych: %v", err)
	}
	log.Println("Pomyślnie połączono z bazą danych")

	issuer, err := token.NewIssuer(cfg.Share.BcryptCost)
	if err != nil {
		log.Fatalf("Nie można zainicjować generatora tokenów: %v", err)
	}

	wsHub := websocket.NewHub()
	go wsHub.Run()

	store := database.NewStore(dbpool)
	sessions := sharing.NewSessionManager(issuer, store)
	go sessions.RunCleanup(context.Background(), 1*time.Hour)

	sharingService := sharing.NewService(store, store, issuer, sessions, wsHub)
	server := api.NewServer(cfg, store, sharingService, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Share-Session"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("https://%s/swagger/doc.json", cfg.AppHost)),
	))

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(api.MetricsMiddleware)

		r.Post("/auth/login", server.LoginHandler)

		r.Post("/shared/{token}/verify", server.VerifyShareHandler)
		r.Get("/shared/{token}", server.GetSharedDataHandler)
		r.Patch("/shared/{token}/{resourceType}/{resourceId}", server.UpdateSharedDataHandler)

		r.Group(func(r chi.Router) {
			r.Use(server.AuthMiddleware)
			r.Post("/shares", server.CreateShareHandler)
			r.Get("/shares", server.ListSharesHandler)
			r.Delete("/shares/{shareId}", server.RevokeShareHandler)
			r.Get("/shares/{shareId}/logs", server.GetShareLogsHandler)
		})
	})

	log.Println("Uruchamianie serwera na porcie :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}
