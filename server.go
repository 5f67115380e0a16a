package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/LeighHMitchell/AIMS-sub014/config"
	"github.com/LeighHMitchell/AIMS-sub014/exchange"
	"github.com/LeighHMitchell/AIMS-sub014/iati"
	"github.com/LeighHMitchell/AIMS-sub014/middlewares"
	"github.com/LeighHMitchell/AIMS-sub014/models"
	"github.com/LeighHMitchell/AIMS-sub014/reports"
	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/LeighHMitchell/AIMS-sub014/workflow"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("aims-sync")

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, user, err := models.AuthenticateUser(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user":  gin.H{"id": user.ID, "name": user.Name, "email": user.Email},
		})
	}
}

func activityIdParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid activity id"})
		return 0, false
	}
	return id, true
}

func compareHandler(fetcher iati.Fetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		report, err := workflow.CompareActivity(c.Request.Context(), activityId, c.Query("identifier"), fetcher)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, utils.ErrorRecordNotFound) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func importHandler(fetcher iati.Fetcher, converter *exchange.Converter) gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		var req workflow.ImportRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		req.ActivityId = activityId

		result, err := workflow.ImportActivity(c.Request.Context(), &req, fetcher, converter)
		if err != nil {
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, utils.ErrorRecordNotFound):
				status = http.StatusNotFound
			case errors.Is(err, utils.ErrUnknownField):
				status = http.StatusBadRequest
			case errors.Is(err, utils.ErrImportInProgress):
				status = http.StatusConflict
			}
			var allocErr *utils.AllocationValidationError
			if errors.As(err, &allocErr) {
				status = http.StatusUnprocessableEntity
			}
			var payloadErr *utils.PayloadValidationError
			if errors.As(err, &payloadErr) {
				status = http.StatusUnprocessableEntity
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func syncStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		record, err := models.GetSyncRecord(c.Request.Context(), activityId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp := gin.H{
			"activityId": activityId,
			"status":     record.DeriveStatus(time.Now()),
		}
		if record != nil {
			resp["lastSyncTime"] = record.LastSyncTime
			resp["autoSyncEnabled"] = record.AutoSyncEnabled
			if record.ErrorFlag {
				resp["lastError"] = record.LastError
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

type autoSyncInput struct {
	Enabled bool     `json:"enabled"`
	Fields  []string `json:"fields"`
}

func autoSyncHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		var input autoSyncInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := iati.ValidateFieldSelection(input.Fields); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		activity, err := models.GetAidActivity(c.Request.Context(), activityId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if err := models.SetAutoSync(c.Request.Context(), activityId, activity.IatiIdentifier, input.Enabled, input.Fields); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"activityId": activityId, "autoSyncEnabled": input.Enabled, "fields": input.Fields})
	}
}

type convertInput struct {
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	From     string          `json:"from" binding:"required"`
	To       string          `json:"to" binding:"required"`
	Date     string          `json:"date" binding:"required"`
}

func convertHandler(converter *exchange.Converter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input convertInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}

		conversion, err := converter.Convert(c.Request.Context(), input.Amount, input.From, input.To, date)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, exchange.ErrFutureDate) {
				status = http.StatusBadRequest
			}
			var fetchErr *utils.FetchError
			if errors.As(err, &fetchErr) {
				status = http.StatusBadGateway
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, conversion)
	}
}

// sectorAllocationsHandler returns the activity's allocation set, validated,
// with exact minor-unit amounts when a total is supplied.
func sectorAllocationsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		var totalMinor *int64
		if v := c.Query("totalMinor"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "totalMinor must be a non-negative integer"})
				return
			}
			totalMinor = &n
		}

		set, err := models.BuildAllocationSet(c.Request.Context(), activityId, totalMinor)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		validated, err := models.ValidateAllocationSet(set)
		if err != nil {
			var allocErr *utils.AllocationValidationError
			if errors.As(err, &allocErr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "problems": allocErr.Problems})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, validated)
	}
}

func auditListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		entries, err := models.ListImportAuditEntries(c.Request.Context(), activityId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}

func auditExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activityId, ok := activityIdParam(c)
		if !ok {
			return
		}
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=import-audit.xlsx")
		if err := reports.ExportImportAuditExcel(c.Request.Context(), activityId, c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
	}
}

// runAutoSyncLoop runs the 24h staleness sweep on a fixed interval until the
// context is cancelled.
func runAutoSyncLoop(ctx context.Context, fetcher iati.Fetcher, converter *exchange.Converter) {
	logger := config.GetLogger()

	intervalMin := 60
	if v, err := strconv.Atoi(os.Getenv("AUTO_SYNC_INTERVAL_MINUTES")); err == nil && v > 0 {
		intervalMin = v
	}
	ticker := time.NewTicker(time.Duration(intervalMin) * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, span := tracer.Start(ctx, "auto-sync-sweep")
			outcome, err := workflow.RunAutoSyncSweep(sweepCtx, fetcher, converter)
			span.End()
			if err != nil {
				config.LogError(logger, "server.go", "runAutoSyncLoop", "Sweep failed", nil, err)
				continue
			}
			logger.WithFields(logrus.Fields{
				"candidates": outcome.Candidates,
				"imported":   outcome.Imported,
				"unchanged":  outcome.Unchanged,
				"skipped":    outcome.Skipped,
				"failed":     outcome.Failed,
			}).Info("auto-sync sweep finished")
		}
	}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the platform considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// Production-safe CORS: explicit allowlist via CORS_ALLOWED_ORIGINS in
	// production, allow-all otherwise.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))
	r.Use(gin.Recovery())

	fetcher := iati.NewFetcher()
	converter := exchange.NewConverter(exchange.NewRateSource())

	r.POST("/api/login", loginHandler())

	authorized := r.Group("/api", middlewares.AuthMiddleware())
	authorized.GET("/activities/:id/compare", compareHandler(fetcher))
	authorized.POST("/activities/:id/import", importHandler(fetcher, converter))
	authorized.GET("/activities/:id/sync-status", syncStatusHandler())
	authorized.POST("/activities/:id/auto-sync", autoSyncHandler())
	authorized.GET("/activities/:id/sectors", sectorAllocationsHandler())
	authorized.GET("/activities/:id/audit", auditListHandler())
	authorized.GET("/activities/:id/audit/export", auditExportHandler())
	authorized.POST("/currency/convert", convertHandler(converter))

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling on startup
	// and running migrations as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if config.AutoSyncSweepEnabled() {
		go runAutoSyncLoop(sweepCtx, fetcher, converter)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop the sweep first so it doesn't start new imports while draining.
	cancelSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
}
