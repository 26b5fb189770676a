package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"smartbin-backend/internal/database"
	"smartbin-backend/internal/handlers"
	"smartbin-backend/internal/lifecycle"
	"smartbin-backend/internal/middleware"
	"smartbin-backend/internal/mirror"
	"smartbin-backend/internal/serial"
	"smartbin-backend/internal/services"
	"smartbin-backend/internal/store"
	"smartbin-backend/internal/sweeper"
	"smartbin-backend/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("🚀 SMARTBIN BACKEND SERVER STARTING")
	log.Println("═══════════════════════════════════════════════════════════════════")

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  Warning: .env file not found, using environment variables from system")
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Get database URL
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Println("❌ FATAL ERROR: DATABASE_URL environment variable is required")
		log.Fatal("DATABASE_URL environment variable is required")
	}

	// Connect to database (user accounts live in Postgres)
	db, err := database.Connect(dbURL)
	if err != nil {
		log.Println("❌ FATAL ERROR: Database connection failed")
		log.Fatal(err)
	}
	defer db.Close()
	log.Println("✅ Database connection established")

	if err := database.Migrate(db); err != nil {
		log.Println("❌ FATAL ERROR: Database migrations failed")
		log.Fatal(err)
	}
	log.Println("✅ Database migrations completed")

	if err := database.SeedUsers(db); err != nil {
		log.Println("❌ FATAL ERROR: User seeding failed")
		log.Fatal(err)
	}
	log.Println("✅ Users seeded successfully")

	ctx := context.Background()

	// Document store backend. Bin documents live in Firestore in production;
	// the in-memory store covers local development and tests.
	var docStore store.Store
	switch backend := os.Getenv("STORE_BACKEND"); backend {
	case "", "firestore":
		fs, err := store.NewFirestoreStore(
			ctx,
			os.Getenv("FIREBASE_PROJECT_ID"),
			os.Getenv("FIREBASE_CREDENTIALS_FILE"),
			os.Getenv("FIREBASE_CREDENTIALS_BASE64"),
		)
		if err != nil {
			log.Println("❌ FATAL ERROR: Firestore initialization failed")
			log.Fatal(err)
		}
		defer fs.Close()
		docStore = fs
		log.Println("✅ Firestore document store initialized")
	case "memory":
		docStore = store.NewMemoryStore()
		log.Println("⚠️  Using in-memory document store (data is not persisted)")
	default:
		log.Fatalf("Unknown STORE_BACKEND: %s (expected 'firestore' or 'memory')", backend)
	}

	// Resolves actor IDs to display names for audit fields, with caching.
	identity := services.NewActorDirectory(db)

	manager := lifecycle.NewManager(docStore, identity, lifecycle.Config{
		DeletedRetention: envDuration("RETENTION_DELETED", lifecycle.DefaultDeletedRetention),
	})

	serials := serial.NewService(docStore, serial.Config{})

	sw := sweeper.New(docStore, sweeper.Config{
		RestoredRetention: envDuration("RETENTION_RESTORED", sweeper.DefaultRestoredRetention),
		ReleaseSerials:    true,
	})

	// Seed the client mirror from the authoritative bin list.
	mir := mirror.New()
	bins, err := manager.ListBins(ctx)
	if err != nil {
		log.Println("❌ FATAL ERROR: Initial bin list failed")
		log.Fatal(err)
	}
	mir.Reconcile(bins)
	log.Printf("✅ Client mirror seeded with %d bins", mir.Len())

	// WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	log.Println("✅ WebSocket hub started")

	// Background retention sweeps
	sweepInterval := envDuration("SWEEP_INTERVAL", time.Hour)
	var scheduler sweeper.TickerScheduler
	stopSweeps := scheduler.Schedule(sweepInterval, func(ctx context.Context) {
		result, err := sw.Sweep(ctx)
		if err != nil {
			log.Printf("❌ Scheduled sweep failed: %v", err)
			return
		}
		if result.PurgedDeleted > 0 || result.PurgedRestored > 0 {
			wsHub.BroadcastEvent(websocket.EventSweepComplete, result)
		}
	})
	defer stopSweeps()
	log.Printf("✅ Retention sweeper scheduled every %s", sweepInterval)

	// Create router
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// Authentication routes (no auth required)
	r.Post("/api/auth/login", handlers.Login(db))

	// WebSocket endpoint (authentication handled in handler via query param)
	r.Get("/ws", websocket.HandleWebSocket(wsHub))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Operator endpoints (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)

			r.Get("/bins", handlers.GetBins(mir))
			r.Post("/bins", handlers.CreateBin(serials, mir, wsHub))
			r.Patch("/bins/{id}", handlers.ConfigureBin(manager, mir, wsHub))
			r.Post("/bins/{id}/archive", handlers.ArchiveBin(manager, mir, wsHub))

			r.Get("/archive", handlers.GetArchive(manager))
			r.Post("/archive/{id}/restore", handlers.RestoreBin(manager, mir, wsHub))
			r.Delete("/archive/{id}", handlers.SoftDeleteBin(manager, wsHub))
			r.Post("/archive/batch-restore", handlers.BatchRestore(manager, mir, wsHub))
			r.Post("/archive/batch-delete", handlers.BatchSoftDelete(manager, wsHub))

			r.Get("/deleted", handlers.GetDeleted(manager))
		})

		// Admin endpoints (require authentication + admin role)
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth)
			r.Use(middleware.RequireRole("admin"))

			r.Delete("/deleted/{id}", handlers.PurgeBin(manager, wsHub))
			r.Post("/retention/sweep", handlers.SweepNow(sw, wsHub))

			// User management
			r.Post("/users", handlers.CreateUser(db))
			r.Get("/users", handlers.GetUsers(db))
		})
	})

	// Get port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
		log.Printf("⚠️  PORT not set, using default: %s", port)
	}

	log.Println("═══════════════════════════════════════════════════════════════════")
	log.Println("✅ ALL INITIALIZATION COMPLETE")
	log.Printf("🚀 Server starting on http://localhost:%s", port)
	log.Println("═══════════════════════════════════════════════════════════════════")

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Println("❌ FATAL ERROR: Server failed to start")
		log.Fatal(err)
	}
}

// envDuration reads a duration env var, falling back when unset or invalid.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("⚠️  Invalid %s=%q, using default %s", key, raw, fallback)
		return fallback
	}
	return d
}
