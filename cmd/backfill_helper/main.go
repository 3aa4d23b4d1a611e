// Command backfill_helper scans the extracts directory for archives newer
// than the last successful pipeline run and asks the running service to
// process them.
package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vectorinsight/config"

	_ "modernc.org/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	extracts := listExtracts(cfg.ExtractsDir)
	if len(extracts) == 0 {
		log.Println("no extracts found")
		return
	}

	lastRun, err := lastSuccessfulRun(cfg.DBPath)
	if err != nil {
		log.Fatalf("load run history: %v", err)
	}

	pending := newerThan(cfg.ExtractsDir, extracts, lastRun)
	log.Printf("found %d extracts, %d newer than last successful run", len(extracts), len(pending))
	if len(pending) == 0 {
		return
	}

	baseURL := strings.TrimSuffix(os.Getenv("SERVICE_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost" + cfg.HTTPPort
	}
	log.Printf("requesting pipeline run from %s", baseURL)

	resp, err := http.Post(baseURL+"/ops/run", "application/json", nil)
	if err != nil {
		log.Fatalf("request run: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Fatalf("request run: %s", resp.Status)
	}
	log.Println("pipeline run queued")
}

func listExtracts(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Printf("scan extracts dir: %v", err)
		return nil
	}
	var out []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".csv") {
			continue
		}
		if !strings.HasPrefix(name, "surveillance_") && !strings.HasPrefix(name, "specimens_") {
			continue
		}
		out = append(out, entry.Name())
	}
	return out
}

func lastSuccessfulRun(dbPath string) (time.Time, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return time.Time{}, err
	}
	defer db.Close()
	var finished sql.NullTime
	row := db.QueryRow(`SELECT MAX(finished_at) FROM pipeline_runs WHERE status = 'succeeded'`)
	if err := row.Scan(&finished); err != nil {
		// A fresh database has no run history yet.
		return time.Time{}, nil
	}
	if !finished.Valid {
		return time.Time{}, nil
	}
	return finished.Time, nil
}

func newerThan(dir string, names []string, cutoff time.Time) []string {
	var pending []string
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			pending = append(pending, name)
		}
	}
	return pending
}
