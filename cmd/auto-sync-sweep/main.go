package main

import (
	"context"
	"fmt"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/exchange"
	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/workflow"
)

// One-shot auto-sync sweep, for running as a cron job instead of the
// in-process loop (set AUTO_SYNC_SWEEP=false on the server).
func main() {
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	ctx := context.Background()
	fetcher := iati.NewFetcher()
	converter := exchange.NewConverter(exchange.NewRateSource())

	outcome, err := workflow.RunAutoSyncSweep(ctx, fetcher, converter)
	if err != nil {
		panic(err)
	}
	fmt.Printf("sweep finished: candidates=%d imported=%d unchanged=%d skipped=%d failed=%d\n",
		outcome.Candidates, outcome.Imported, outcome.Unchanged, outcome.Skipped, outcome.Failed)
}
