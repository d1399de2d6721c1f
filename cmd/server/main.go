package main

import (
	"crypto/tls"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/example/starhold/internal/ai"
	"github.com/example/starhold/internal/auth"
	srv "github.com/example/starhold/internal/server"
	"github.com/example/starhold/internal/store"
)

func main() {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	var (
		httpPort  = flag.String("http-port", "8080", "HTTP port")
		httpsPort = flag.String("https-port", "8443", "HTTPS port")
		certFile  = flag.String("cert", "", "Path to certificate file")
		keyFile   = flag.String("key", "", "Path to private key file")
		tlsOnly   = flag.Bool("tls-only", false, "Only serve HTTPS")
		storePath = flag.String("store", envOr("STORE_PATH", "starhold.db"), "Path to the session store database")
	)
	flag.Parse()

	storeLogger := log.New(os.Stderr, "[store] ", log.LstdFlags)
	st, err := store.OpenSQLite(*storePath, storeLogger)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	var proposer ai.Proposer = ai.Heuristic{}
	if advisorURL := os.Getenv("ADVISOR_URL"); advisorURL != "" {
		log.Printf("using external advisor at %s", advisorURL)
		proposer = ai.NewHTTPProposer(advisorURL)
	}

	authCfg := auth.NewConfig()
	gs := srv.NewGameServer(st, proposer, authCfg)
	defer gs.Close()

	r := mux.NewRouter()

	// CORS first so browser clients on other origins can reach the API
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	}).Methods("GET")

	// Unauthenticated token mint: a display name buys a reusable session.
	r.HandleFunc("/auth/guest", gs.HandleGuestToken).Methods("POST")

	// WebSocket endpoint; identity arrives in the connect message
	r.HandleFunc("/ws", gs.HandleWS)

	// REST lobby endpoints (protected)
	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(authCfg.AuthMiddleware)
	protected.HandleFunc("/rooms", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			gs.HandleListRooms(w, r)
			return
		}
		if r.Method == http.MethodPost {
			gs.HandleCreateRoom(w, r)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	})

	// Determine certificate paths
	certPath, keyPath := *certFile, *keyFile
	if certPath == "" || keyPath == "" {
		certPath = "certs/server.crt"
		keyPath = "certs/server.key"
	}

	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		if *tlsOnly {
			log.Fatalf("TLS-only mode enabled but certificate not found at %s", certPath)
		}
		log.Printf("Certificate not found at %s, serving HTTP only on port %s", certPath, *httpPort)
		log.Fatal(http.ListenAndServe(":"+*httpPort, r))
	}
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		if *tlsOnly {
			log.Fatalf("TLS-only mode enabled but private key not found at %s", keyPath)
		}
		log.Printf("Private key not found at %s, serving HTTP only on port %s", keyPath, *httpPort)
		log.Fatal(http.ListenAndServe(":"+*httpPort, r))
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		},
	}

	go func() {
		httpsAddr := ":" + *httpsPort
		log.Printf("Starhold backend (HTTPS) listening on %s", httpsAddr)
		server := &http.Server{
			Addr:      httpsAddr,
			Handler:   r,
			TLSConfig: tlsConfig,
		}
		if err := server.ListenAndServeTLS(certPath, keyPath); err != nil {
			log.Fatal("HTTPS server failed:", err)
		}
	}()

	if *tlsOnly {
		select {}
	}

	// Plain HTTP redirects to HTTPS, except for health probes.
	httpRouter := mux.NewRouter()
	httpRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")
	httpRouter.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpsURL := "https://" + r.Host
		if *httpsPort != "443" {
			httpsURL += ":" + *httpsPort
		}
		httpsURL += r.RequestURI
		http.Redirect(w, r, httpsURL, http.StatusMovedPermanently)
	})

	httpAddr := ":" + *httpPort
	log.Printf("Starhold backend (HTTP->HTTPS redirect) listening on %s", httpAddr)
	log.Fatal(http.ListenAndServe(httpAddr, httpRouter))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
