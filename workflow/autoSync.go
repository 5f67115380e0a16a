package workflow

import (
	"context"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/exchange"
	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/models"
)

// SweepOutcome summarizes one auto-sync pass.
type SweepOutcome struct {
	Candidates int `json:"candidates"`
	Imported   int `json:"imported"`
	Unchanged  int `json:"unchanged"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// RunAutoSyncSweep compares every enrolled activity whose last sync is stale
// against the external source and imports only the ones where an enrolled
// field actually differs; the import touches only the enrolled fields. The
// compare itself stamps last_sync_time, so an unchanged activity leaves the
// candidate set until it goes stale again. A failed import flags the activity
// as errored but leaves enrollment on; only an explicit user action disables
// auto-sync. One activity's failure never stops the sweep.
func RunAutoSyncSweep(ctx context.Context, fetcher iati.Fetcher, converter *exchange.Converter) (*SweepOutcome, error) {
	logger := config.GetLogger()

	candidates, err := models.ListAutoSyncCandidates(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	outcome := &SweepOutcome{Candidates: len(candidates)}
	for _, record := range candidates {
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}

		fields, err := record.AutoSyncFields()
		if err != nil {
			config.LogError(logger, moduleName, "RunAutoSyncSweep", "Unreadable auto-sync field list", record.ActivityId, err)
			outcome.Skipped++
			continue
		}
		if len(fields) == 0 {
			outcome.Skipped++
			continue
		}

		report, err := CompareActivity(ctx, record.ActivityId, "", fetcher)
		if err != nil {
			config.LogError(logger, moduleName, "RunAutoSyncSweep", "Auto-sync compare failed", record.ActivityId, err)
			outcome.Failed++
			continue
		}
		if !report.AnyDiffers(fields) {
			outcome.Unchanged++
			continue
		}

		req := &ImportRequest{
			ActivityId: record.ActivityId,
			Fields:     fields,
			ImportType: models.ImportTypeAuto,
		}
		if _, err := ImportActivity(ctx, req, fetcher, converter); err != nil {
			config.LogError(logger, moduleName, "RunAutoSyncSweep", "Auto-sync import failed", record.ActivityId, err)
			outcome.Failed++
			continue
		}
		outcome.Imported++
	}

	return outcome, nil
}
