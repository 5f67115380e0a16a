package workflow

import (
	"context"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/models"
)

const moduleName = "workflow"

// CompareActivity fetches the external counterpart of a local activity,
// normalizes both sides and returns the field-by-field report. An explicit
// identifier overrides the one stored on the activity. A successful
// comparison counts as contact with the source and stamps last_sync_time; it
// never touches the error flag, which belongs to imports alone.
func CompareActivity(ctx context.Context, activityId int, identifier string, fetcher iati.Fetcher) (*ComparisonReport, error) {
	logger := config.GetLogger()
	db := config.GetDB().WithContext(ctx)

	activity, err := models.GetAidActivity(ctx, activityId)
	if err != nil {
		return nil, err
	}
	if identifier == "" {
		identifier = activity.IatiIdentifier
	}

	payload, err := fetcher.FetchActivity(ctx, identifier)
	if err != nil {
		config.LogError(logger, moduleName, "CompareActivity", "External fetch failed", activityId, err)
		return nil, err
	}

	external, err := iati.Normalize(payload)
	if err != nil {
		config.LogError(logger, moduleName, "CompareActivity", "Normalization failed", activityId, err)
		return nil, err
	}

	sectors, orgs, txns, err := models.LoadActivityCollections(db, activityId)
	if err != nil {
		return nil, err
	}
	local := activity.ToCanonical(sectors, orgs, txns)

	now := time.Now()
	report := BuildComparisonReport(activityId, local, external, now)

	if err := models.StampSyncSuccess(db, activityId, identifier, now, false); err != nil {
		config.LogError(logger, moduleName, "CompareActivity", "Failed to stamp sync time", activityId, err)
		return nil, err
	}

	return report, nil
}
