package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

// Small probe used by deploy scripts: exits non-zero when the bot is
// down or its price snapshot has gone stale.

func main() {
	addr := flag.String("addr", "http://localhost:8888", "bot base URL")
	maxAge := flag.Duration("max-age", 5*time.Minute, "maximum tolerated price snapshot age")
	flag.Parse()

	fmt.Println("steam-bot-server Health Check Utility")
	fmt.Println("-------------------------------------")

	if err := checkServiceHealth(*addr, *maxAge); err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Println("Service is healthy!")
}

func checkServiceHealth(baseURL string, maxAge time.Duration) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var health struct {
		Status              string `json:"status"`
		PriceSnapshotAgeSec int    `json:"price_snapshot_age_sec"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return err
	}
	if health.Status != "ok" {
		return fmt.Errorf("status %q", health.Status)
	}
	if age := time.Duration(health.PriceSnapshotAgeSec) * time.Second; age > maxAge {
		return fmt.Errorf("price snapshot is %s old", age)
	}
	return nil
}
