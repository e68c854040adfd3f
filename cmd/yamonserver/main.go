// Command yamonserver runs the ya mon multiplayer backgammon server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/yourusername/yamon/internal/store"
	"github.com/yourusername/yamon/pkg/api"
)

const version = "0.1.0"

// envString prefers the environment variable over the flag default.
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func main() {
	// Command line flags; environment variables set the defaults so the
	// server runs unflagged in containers.
	host := flag.String("host", envString("HOST", "0.0.0.0"), "Host to bind to")
	port := flag.Int("port", envInt("PORT", 3001), "Port to listen on")
	origin := flag.String("allowed-origin", envString("ALLOWED_ORIGIN", "http://localhost:3000"), "Browser origin allowed to connect")
	dbURL := flag.String("database-url", envString("DATABASE_URL", ""), "Postgres connection string (empty runs in-memory)")
	grace := flag.Duration("reconnect-grace", envDuration("RECONNECT_GRACE", 0), "Forfeit a seat this long after a disconnect (0 waits forever)")
	showVersion := flag.Bool("version", false, "Show version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("ya mon server v%s\n", version)
		os.Exit(0)
	}

	log.Printf("ya mon server v%s", version)

	var st store.Store
	if *dbURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		pg, err := store.OpenPostgres(ctx, *dbURL)
		cancel()
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		st = pg
		log.Printf("Connected to postgres")
	} else {
		st = store.NewMemory()
		log.Printf("DATABASE_URL not set, using in-memory store")
	}
	defer st.Close()

	config := api.ServerConfig{
		Host:           *host,
		Port:           *port,
		AllowedOrigin:  *origin,
		ReconnectGrace: *grace,
		ReadTimeout:    30 * time.Second,
		IdleTimeout:    60 * time.Second,
	}

	server := api.NewServer(st, config, version)

	if err := server.ListenAndServeWithGracefulShutdown(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
