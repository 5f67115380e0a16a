package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/exchange"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/workflow"
	"github.com/sirupsen/logrus"
)

// Backfills value_usd on transaction rows that were imported before USD
// enrichment existed, or whose conversion failed at import time.
func main() {
	activityId := flag.Int("activity-id", 0, "Activity ID to backfill (optional; default = all)")
	dryRun := flag.Bool("dry-run", true, "Print actions without writing")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		panic("database not initialized")
	}
	logger := config.GetLogger()
	if logger == nil {
		logger = logrus.New()
	}

	ctx := context.Background()
	converter := exchange.NewConverter(exchange.NewRateSource())

	var activityIds []int
	if *activityId > 0 {
		activityIds = []int{*activityId}
	} else {
		if err := db.Model(&models.ActivityTransaction{}).
			Where("value_usd IS NULL").
			Distinct().
			Pluck("activity_id", &activityIds).Error; err != nil {
			panic(err)
		}
	}

	fmt.Printf("backfilling %d activities (dry-run=%v)\n", len(activityIds), *dryRun)

	for _, id := range activityIds {
		if *dryRun {
			var count int64
			if err := db.Model(&models.ActivityTransaction{}).
				Where("activity_id = ? AND value_usd IS NULL", id).
				Count(&count).Error; err != nil {
				panic(err)
			}
			fmt.Printf("activity %d: %d transactions need conversion\n", id, count)
			continue
		}
		if err := workflow.FillUSDValues(ctx, id, converter); err != nil {
			logger.WithFields(logrus.Fields{
				"activityId": id,
			}).Warn("backfill incomplete: " + err.Error())
			continue
		}
		fmt.Printf("activity %d: done\n", id)
	}
}
