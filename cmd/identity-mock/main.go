package main

import (
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"

	"go.uber.org/zap"
)

// actorEntry is what the mock returns for a known token.
type actorEntry struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-identity.json", "path to token fixture file")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal("read fixture", zap.Error(err))
	}

	var tokens map[string]actorEntry
	if err := json.Unmarshal(file, &tokens); err != nil {
		logger.Fatal("parse fixture", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/introspect", func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		entry, ok := tokens[token]
		if *verbose {
			logger.Info("introspect", zap.Bool("known", ok), zap.String("user_id", entry.UserID))
		}
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entry); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	addr := ":" + *port
	logger.Info("mock identity listening", zap.String("addr", addr), zap.Int("tokens", len(tokens)))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
