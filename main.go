package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"skateQuestAPI/handlers"
	"skateQuestAPI/internal/notification"
	"skateQuestAPI/middleware"
	"skateQuestAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool           *pgxpool.Pool
	userService      *services.UserService
	spotService      *services.SpotService
	challengeService *services.ChallengeService
	dispatcher       *services.NotificationDispatcher
	fcmService       *notification.FCMService
	loungeManager    *services.LoungeManager
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to database")

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
		fcmService = nil
	} else {
		log.Println("FCM push provider initialized successfully")
	}

	dispatcher = services.NewNotificationDispatcher(dbPool, fcmService)
	userService = services.NewUserService(dbPool)
	spotService = services.NewSpotService(dbPool)
	challengeService = services.NewChallengeService(dbPool, services.NewPgProgressionStore(dbPool), dispatcher)
	loungeManager = services.NewLoungeManager(dbPool)

	middleware.InitPrometheus()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	spotHandler := handlers.NewSpotHandler(spotService)
	challengeHandler := handlers.NewChallengeHandler(challengeService)
	notificationHandler := handlers.NewNotificationHandler(dispatcher)
	webhookHandler := handlers.NewWebhookHandler(userService)
	loungeHandler := handlers.NewLoungeHandler(loungeManager)

	r := mux.NewRouter()

	// Websocket route stays off the rate limiter, the connection is long
	// lived.
	r.Handle("/api/v1/lounge/ws/{roomID}", middleware.ClerkAuthMiddleware(http.HandlerFunc(loungeHandler.JoinRoom)))

	standardRouter := r.PathPrefix("/").Subrouter()

	go middleware.CleanupVisitors()

	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "skateQuest-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/lounge/rooms", loungeHandler.GetRooms).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/leaderboard", userHandler.GetLeaderboard).Methods("GET")
	protected.HandleFunc("/user/badges", userHandler.GetBadges).Methods("GET")

	protected.HandleFunc("/spots", spotHandler.GetSpots).Methods("GET")
	protected.HandleFunc("/spots", spotHandler.AddSpot).Methods("POST")
	protected.HandleFunc("/spots/nearby", spotHandler.GetNearbySpots).Methods("GET")
	protected.HandleFunc("/spots/{id}", spotHandler.GetSpot).Methods("GET")
	protected.HandleFunc("/spots/{id}/share", spotHandler.ShareSpot).Methods("GET")
	protected.HandleFunc("/spots/{id}/challenges", challengeHandler.GetSpotChallenges).Methods("GET")

	protected.HandleFunc("/challenges", challengeHandler.CreateChallenge).Methods("POST")
	protected.HandleFunc("/challenges/mine", challengeHandler.GetMyChallenges).Methods("GET")
	protected.HandleFunc("/challenges/{id}/complete", challengeHandler.CompleteChallenge).Methods("POST")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/unregister-device", notificationHandler.UnregisterDevice).Methods("POST")

	protected.HandleFunc("/lounge/rooms", loungeHandler.CreateRoom).Methods("POST")
	protected.HandleFunc("/lounge/rooms/{roomID}/messages", loungeHandler.GetRoomHistory).Methods("GET")

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
