package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"vaultyard/pkg/admin"
	"vaultyard/pkg/auction"
	"vaultyard/pkg/custodian"
	"vaultyard/pkg/db"
	"vaultyard/pkg/events"
	"vaultyard/pkg/ledger"
	"vaultyard/pkg/lending"
	"vaultyard/pkg/notify"
	"vaultyard/pkg/registry"
	"vaultyard/pkg/royalty"
)

// @title           Vaultyard API
// @version         1.0
// @description     Custodial settlement engine for digital collectibles - collateralized lending and timed auctions

// @host      localhost:8080
// @BasePath  /

// @schemes   http https

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	pool := db.Connect()
	defer pool.Close()

	runner := db.NewRunner(pool)
	gate := admin.NewGate(os.Getenv("ADMIN_UUID"), []byte(os.Getenv("ADMIN_KEY_HASH")))

	emailService := notify.NewEmailService()
	notifier := notify.NewNotifier(emailService)

	hub := events.NewHub()
	eventsHandler := events.NewHandler(hub)

	assetRepo := registry.NewPostgresAssetRepository(pool)
	assetService := registry.NewAssetService(assetRepo)
	assetHandler := registry.NewAssetHandler(assetService)

	accountRepo := ledger.NewPostgresAccountRepository(pool)
	ledgerService := ledger.NewLedgerService(accountRepo, runner, gate)
	ledgerHandler := ledger.NewLedgerHandler(ledgerService)

	policyRepo := royalty.NewPostgresPolicyRepository(pool)
	splitterService := royalty.NewSplitterService(policyRepo, ledgerService, gate)
	policyHandler := royalty.NewPolicyHandler(splitterService)

	custodyRepo := custodian.NewPostgresCustodyRepository(pool)
	custodyService := custodian.NewCustodyService(custodyRepo, assetService, runner, gate,
		getEnv("CUSTODIAN_ACCOUNT_UUID", "00000000-0000-0000-0000-00000000c0de"))
	custodyHandler := custodian.NewCustodyHandler(custodyService)

	lendingCfg := lending.Config{
		CallerID:     getEnv("LENDING_CALLER_ID", "lending-engine"),
		PoolUUID:     mustEnv("LENDING_POOL_UUID"),
		LoanDuration: getEnvAsDuration("LOAN_DURATION", 30*24*time.Hour),
		Installments: getEnvAsInt("LOAN_INSTALLMENTS", 4),
	}
	loanRepo := lending.NewPostgresLoanRepository(pool)
	lendingService := lending.NewLendingService(loanRepo, custodyService, assetService, ledgerService,
		runner, gate, hub, notifier, lendingCfg)
	lendingHandler := lending.NewLendingHandler(lendingService)

	auctionCfg := auction.Config{
		CallerID:     getEnv("AUCTION_CALLER_ID", "auction-engine"),
		PoolUUID:     mustEnv("AUCTION_POOL_UUID"),
		TreasuryUUID: mustEnv("TREASURY_UUID"),
		FeeBps:       getEnvAsInt("PLATFORM_FEE_BPS", 250),
		MinDuration:  getEnvAsDuration("AUCTION_MIN_DURATION", time.Hour),
	}
	auctionRepo := auction.NewPostgresAuctionRepository(pool)
	auctionService := auction.NewAuctionService(auctionRepo, custodyService, assetService, ledgerService,
		splitterService, runner, gate, hub, notifier, auctionCfg)
	auctionHandler := auction.NewAuctionHandler(auctionService)

	// The lending and auction engines drive the custodian under their own
	// caller identities; trust them at boot so settlement works without a
	// manual grant after every schema reset.
	seedTrust(custodyRepo, lendingCfg.CallerID, auctionCfg.CallerID)

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(corsConfigFromEnv()))

	assetHandler.RegisterRoutes(router)
	ledgerHandler.RegisterRoutes(router)
	policyHandler.RegisterRoutes(router)
	custodyHandler.RegisterRoutes(router)
	lendingHandler.RegisterRoutes(router)
	auctionHandler.RegisterRoutes(router)

	router.GET("/ws/events", eventsHandler.HandleFeed)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	settings := loadTLSSettingsFromEnv()
	if err := settings.Validate(); err != nil {
		log.Fatalf("TLS settings invalid: %v", err)
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		if settings.EnableTLS {
			port = "8443"
		} else {
			port = "8080"
		}
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		if !settings.EnableTLS {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("listen (HTTP): %v", err)
			}
			return
		}

		tlsConfig, certFile, keyFile, err := buildTLSConfigWithSettings(settings)
		if err != nil {
			log.Fatalf("TLS setup error: %v", err)
		}
		srv.TLSConfig = tlsConfig

		if certFile != "" && keyFile != "" {
			if err := srv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
				log.Fatalf("listen (TLS files): %v", err)
			}
			return
		}
		if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen (TLS config): %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}

func seedTrust(repo custodian.CustodyRepository, callerIDs ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, id := range callerIDs {
		if err := repo.SetTrust(ctx, id, true); err != nil {
			log.Fatalf("Failed to seed custodian trust for %s: %v", id, err)
		}
	}
}

func corsConfigFromEnv() cors.Config {
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins == "" {
		origins = []string{"*"}
	} else {
		parts := strings.Split(allowedOrigins, ",")
		origins = make([]string, 0, len(parts))
		for _, p := range parts {
			o := strings.TrimSpace(p)
			if o != "" {
				origins = append(origins, o)
			}
		}
		if len(origins) == 0 {
			origins = []string{"*"}
		}
	}

	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: strings.EqualFold(os.Getenv("CORS_ALLOW_CREDENTIALS"), "true"),
		MaxAge:           12 * time.Hour,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s must be set", key)
	}
	return v
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}

// TLSSettings holds environment-driven TLS configuration.
type TLSSettings struct {
	EnableTLS       bool
	CertPath        string
	KeyPath         string
	Env             string
	AllowSelfSigned bool
}

// loadTLSSettingsFromEnv reads TLS settings from environment variables.
// Vars:
// - ENABLE_TLS: true/false
// - TLS_CERT_PATH / TLS_KEY_PATH: file paths to PEM cert/key
// - APP_ENV or ENV: "production" or "development"
// - TLS_SELF_SIGNED: true/false (dev convenience)
func loadTLSSettingsFromEnv() TLSSettings {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("APP_ENV")))
	if env == "" {
		env = strings.ToLower(strings.TrimSpace(os.Getenv("ENV")))
	}
	if env == "" {
		env = "development"
	}

	enableTLS := !strings.EqualFold(os.Getenv("ENABLE_TLS"), "false")
	if env == "production" {
		enableTLS = true
	}

	return TLSSettings{
		EnableTLS:       enableTLS,
		CertPath:        os.Getenv("TLS_CERT_PATH"),
		KeyPath:         os.Getenv("TLS_KEY_PATH"),
		Env:             env,
		AllowSelfSigned: !strings.EqualFold(os.Getenv("TLS_SELF_SIGNED"), "false"),
	}
}

// Validate ensures TLS settings are safe for the selected environment.
func (s TLSSettings) Validate() error {
	if s.Env == "production" {
		if !s.EnableTLS {
			return fmt.Errorf("TLS must be enabled in production")
		}
		if s.CertPath == "" || s.KeyPath == "" {
			return fmt.Errorf("TLS_CERT_PATH and TLS_KEY_PATH are required in production")
		}
	}
	return nil
}

// buildTLSConfigWithSettings constructs a tls.Config based on TLSSettings.
// Prefers file paths; falls back to inline PEM (TLS_CERT/TLS_KEY) or self-signed in development.
func buildTLSConfigWithSettings(s TLSSettings) (*tls.Config, string, string, error) {
	var cert tls.Certificate
	var err error

	if s.CertPath != "" && s.KeyPath != "" {
		cert, err = tls.LoadX509KeyPair(s.CertPath, s.KeyPath)
		if err != nil {
			return nil, "", "", err
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, s.CertPath, s.KeyPath, nil
	}

	certPEM := os.Getenv("TLS_CERT")
	keyPEM := os.Getenv("TLS_KEY")
	if certPEM != "" && keyPEM != "" {
		cert, err = tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
		if err != nil {
			return nil, "", "", err
		}
		return &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}, "", "", nil
	}

	if s.Env != "production" && s.AllowSelfSigned {
		genCert, genErr := generateSelfSignedCert()
		if genErr != nil {
			return nil, "", "", genErr
		}
		return &tls.Config{Certificates: []tls.Certificate{genCert}, MinVersion: tls.VersionTLS12}, "", "", nil
	}

	return nil, "", "", fmt.Errorf("no TLS certificates available")
}

// generateSelfSignedCert creates a minimal self-signed certificate for localhost usage.
func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	serialNumber, err := rand.Int(rand.Reader, serialNumberLimit)
	if err != nil {
		return tls.Certificate{}, err
	}

	tmpl := x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	return tls.X509KeyPair(certPEM, keyPEM)
}
