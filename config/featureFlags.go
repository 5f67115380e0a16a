package config

import (
	"os"
	"strings"
)

// IATIDemoMode serves fabricated external activity data and fixed exchange rates
// so the compare/import flow is exercisable without registry credentials.
//
// Set via env:
// - IATI_DEMO_MODE=true
func IATIDemoMode() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("IATI_DEMO_MODE")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AutoSyncSweepEnabled controls the in-process 24h auto-sync sweep loop.
// Disable when the sweep runs as an external cron (cmd/auto-sync-sweep).
//
// Set via env:
// - AUTO_SYNC_SWEEP=false
func AutoSyncSweepEnabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTO_SYNC_SWEEP")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
