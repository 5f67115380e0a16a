package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/LeighHMitchell/AIMS-sub014/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestImportActivityFieldScopingAndSectorReplacement(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "aims_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	// The audit trail stamps the acting user from context.
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}

	activity := models.AidActivity{
		IatiIdentifier: "XM-TEST-1",
		Title:          "Old title",
		Description:    "Old description",
		Status:         string(models.ActivityStatusPipeline),
	}
	if err := db.WithContext(ctx).Create(&activity).Error; err != nil {
		t.Fatalf("seed activity: %v", err)
	}
	if err := models.ReplaceActivitySectors(db.WithContext(ctx), activity.ID, []models.AllocationLine{
		{Vocabulary: "1", Code: "11110", Name: "Education policy", Percentage: decimal.NewFromInt(100)},
	}); err != nil {
		t.Fatalf("seed sectors: %v", err)
	}

	payload := externalActivityPayload()

	// 1) Field-scoped import: only the title is enrolled, everything else must
	// survive untouched even though the payload carries more.
	result, err := workflow.ImportActivity(ctx, &workflow.ImportRequest{
		ActivityId: activity.ID,
		Fields:     []string{models.FieldTitle},
		Payload:    payload,
	}, nil, nil)
	if err != nil {
		t.Fatalf("field-scoped import: %v", err)
	}
	if len(result.FieldsUpdated) != 1 || result.FieldsUpdated[0] != models.FieldTitle {
		t.Fatalf("fields updated: %v", result.FieldsUpdated)
	}

	current, err := models.GetAidActivity(ctx, activity.ID)
	if err != nil {
		t.Fatalf("reload activity: %v", err)
	}
	if current.Title != "New title" {
		t.Fatalf("title not imported: %q", current.Title)
	}
	if current.Description != "Old description" {
		t.Fatalf("unselected description was touched: %q", current.Description)
	}
	if current.Status != string(models.ActivityStatusPipeline) {
		t.Fatalf("unselected status was touched: %q", current.Status)
	}
	if codes := sectorCodes(t, db, activity.ID); len(codes) != 1 || codes[0] != "11110" {
		t.Fatalf("unselected sectors were touched: %v", codes)
	}
	if n := transactionCount(t, db, activity.ID); n != 0 {
		t.Fatalf("unselected transactions were touched: %d rows", n)
	}

	// 2) Full import: sectors replace wholesale, orgs resolve-or-create,
	// transactions come in, and the sync record goes live.
	result, err = workflow.ImportActivity(ctx, &workflow.ImportRequest{
		ActivityId: activity.ID,
		Payload:    payload,
	}, nil, nil)
	if err != nil {
		t.Fatalf("full import: %v", err)
	}
	if result.TransactionsAdded != 1 {
		t.Fatalf("transactions added: %d", result.TransactionsAdded)
	}
	if result.OrganizationsSeen != 1 {
		t.Fatalf("organizations seen: %d", result.OrganizationsSeen)
	}

	current, err = models.GetAidActivity(ctx, activity.ID)
	if err != nil {
		t.Fatalf("reload activity: %v", err)
	}
	if current.Description != "New description" {
		t.Fatalf("description not imported: %q", current.Description)
	}
	if current.Status != string(models.ActivityStatusImplementation) {
		t.Fatalf("status not imported: %q", current.Status)
	}

	codes := sectorCodes(t, db, activity.ID)
	if len(codes) != 2 || codes[0] != "12220" || codes[1] != "12281" {
		t.Fatalf("sectors not replaced wholesale: %v", codes)
	}

	var org models.Organization
	if err := db.WithContext(ctx).Where("iati_ref = ?", "XM-DAC-1").First(&org).Error; err != nil {
		t.Fatalf("imported organization missing: %v", err)
	}
	if org.Name != "Global Fund" {
		t.Fatalf("organization name: %q", org.Name)
	}

	if n := transactionCount(t, db, activity.ID); n != 1 {
		t.Fatalf("expected 1 transaction, got %d", n)
	}

	syncRecord, err := models.GetSyncRecord(ctx, activity.ID)
	if err != nil {
		t.Fatalf("load sync record: %v", err)
	}
	if status := syncRecord.DeriveStatus(time.Now()); status != models.SyncStatusLive {
		t.Fatalf("sync status after import: %q", status)
	}

	entries, err := models.ListImportAuditEntries(ctx, activity.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Result != models.ImportResultSuccess || entries[0].UserId != 1 {
		t.Fatalf("latest audit entry: %+v", entries[0])
	}

	// 3) Re-importing the same payload is additive on transactions: nothing new
	// matches, nothing duplicates.
	result, err = workflow.ImportActivity(ctx, &workflow.ImportRequest{
		ActivityId: activity.ID,
		Payload:    payload,
	}, nil, nil)
	if err != nil {
		t.Fatalf("repeat import: %v", err)
	}
	if result.TransactionsAdded != 0 {
		t.Fatalf("repeat import added %d transactions", result.TransactionsAdded)
	}
	if n := transactionCount(t, db, activity.ID); n != 1 {
		t.Fatalf("repeat import duplicated transactions: %d rows", n)
	}

	// 4) A failing step rolls the whole import back: the bad sector set aborts
	// the transaction, so the title change in the same attempt never lands,
	// the previous sectors survive, and the failure is recorded.
	bad := externalActivityPayload()
	bad["title"] = "Should not stick"
	bad["sector"] = []interface{}{
		map[string]interface{}{"@vocabulary": "1", "@code": "12220", "narrative": "Primary health care", "@percentage": "60"},
		map[string]interface{}{"@vocabulary": "1", "@code": "12281", "narrative": "Health personnel development", "@percentage": "30"},
	}

	_, err = workflow.ImportActivity(ctx, &workflow.ImportRequest{
		ActivityId: activity.ID,
		Payload:    bad,
	}, nil, nil)
	var allocErr *utils.AllocationValidationError
	if !errors.As(err, &allocErr) {
		t.Fatalf("expected AllocationValidationError, got %v", err)
	}

	current, err = models.GetAidActivity(ctx, activity.ID)
	if err != nil {
		t.Fatalf("reload activity: %v", err)
	}
	if current.Title != "New title" {
		t.Fatalf("failed import leaked a scalar change: %q", current.Title)
	}
	codes = sectorCodes(t, db, activity.ID)
	if len(codes) != 2 || codes[0] != "12220" || codes[1] != "12281" {
		t.Fatalf("failed import altered sectors: %v", codes)
	}

	entries, err = models.ListImportAuditEntries(ctx, activity.ID)
	if err != nil {
		t.Fatalf("list audit entries: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 audit entries, got %d", len(entries))
	}
	if entries[0].Result != models.ImportResultFailure || entries[0].ErrorDetails == "" {
		t.Fatalf("failure audit entry: %+v", entries[0])
	}

	syncRecord, err = models.GetSyncRecord(ctx, activity.ID)
	if err != nil {
		t.Fatalf("load sync record: %v", err)
	}
	if !syncRecord.ErrorFlag || syncRecord.Pending {
		t.Fatalf("sync record after failure: %+v", syncRecord)
	}
	if status := syncRecord.DeriveStatus(time.Now()); status != models.SyncStatusError {
		t.Fatalf("sync status after failure: %q", status)
	}
}

func externalActivityPayload() map[string]interface{} {
	return map[string]interface{}{
		"iati-identifier": "XM-TEST-1",
		"title":           "New title",
		"description":     "New description",
		"activity-status": map[string]interface{}{"@code": "2"},
		"activity-date": []interface{}{
			map[string]interface{}{"@type": "2", "@iso-date": "2025-01-15"},
		},
		"sector": []interface{}{
			map[string]interface{}{"@vocabulary": "1", "@code": "12220", "narrative": "Primary health care", "@percentage": "60"},
			map[string]interface{}{"@vocabulary": "1", "@code": "12281", "narrative": "Health personnel development", "@percentage": "40"},
		},
		"participating-org": []interface{}{
			map[string]interface{}{"@ref": "XM-DAC-1", "narrative": "Global Fund", "@role": "1", "@type": "40"},
		},
		"transaction": []interface{}{
			map[string]interface{}{
				"transaction-type": map[string]interface{}{"@code": "3"},
				"transaction-date": map[string]interface{}{"@iso-date": "2025-06-15"},
				"value":            map[string]interface{}{"text": "250000", "@currency": "USD"},
			},
		},
	}
}

func sectorCodes(t *testing.T, db *gorm.DB, activityId int) []string {
	t.Helper()
	var rows []*models.SectorAllocation
	if err := db.Where("activity_id = ?", activityId).Order("sort_order, id").Find(&rows).Error; err != nil {
		t.Fatalf("load sector allocations: %v", err)
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		codes = append(codes, row.Code)
	}
	return codes
}

func transactionCount(t *testing.T, db *gorm.DB, activityId int) int {
	t.Helper()
	var count int64
	if err := db.Model(&models.ActivityTransaction{}).Where("activity_id = ?", activityId).Count(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return int(count)
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("aims-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("aims-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=aims_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
