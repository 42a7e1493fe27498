package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sellerdesk/seller-backoffice/internal/api"
	"github.com/sellerdesk/seller-backoffice/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		subject    = flag.String("subject", "", "Subject the token is issued to (required)")
		ttl        = flag.Duration("ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
	)
	flag.Parse()

	if *subject == "" {
		fmt.Fprintln(os.Stderr, "usage: token -subject <name> [-ttl 24h] [-config path]")
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	token, err := api.IssueToken(cfg.JWT.Secret, *subject, *ttl)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}

	fmt.Fprintf(os.Stderr, "Issued token for %q", *subject)
	if *ttl > 0 {
		fmt.Fprintf(os.Stderr, ", expires %s", time.Now().Add(*ttl).UTC().Format(time.RFC3339))
	}
	fmt.Fprintln(os.Stderr)
	fmt.Println(token)
}
