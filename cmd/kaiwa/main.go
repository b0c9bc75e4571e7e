package main

import (
	"context"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"github.com/kaiwa-app/kaiwa/internal/chat"
	"github.com/kaiwa-app/kaiwa/internal/config"
	"github.com/kaiwa-app/kaiwa/internal/db"
	"github.com/kaiwa-app/kaiwa/internal/llm"
	"github.com/kaiwa-app/kaiwa/internal/server"
	"github.com/kaiwa-app/kaiwa/internal/version"
)

func main() {
	// Local development convenience; absence of a .env file is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	providers := llm.Registry{}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiProvider(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to initialize Gemini provider: %v", err)
		}
		providers["gemini"] = gemini
	} else {
		log.Printf("GEMINI_API_KEY not set; gemini models will fail to stream")
	}
	if cfg.GroqAPIKey != "" {
		providers["groq"] = llm.NewGroqProvider(cfg.GroqAPIKey)
	} else {
		log.Printf("GROQ_API_KEY not set; groq models will fail to stream")
	}

	svc := chat.NewService(database, providers, cfg.StreamTimeout)
	router := server.NewRouter(database, svc, cfg.JWTSecret)

	log.Printf("kaiwa %s (%s) listening on %s", version.Version, version.Commit, cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
