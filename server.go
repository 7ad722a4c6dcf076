package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bitbucket.org/speantag/bakery_backend/config"
	"bitbucket.org/speantag/bakery_backend/middlewares"
	"bitbucket.org/speantag/bakery_backend/models"
	"bitbucket.org/speantag/bakery_backend/models/reports"
	"bitbucket.org/speantag/bakery_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("bakery-books")

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// respondError maps the error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	switch {
	case utils.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case utils.IsNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case utils.IsInsufficientInventoryError(err):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case utils.IsStorageError(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// respondBindError turns a request-body binding failure into a 400 with a
// field->tag map when the failure came from struct validation.
func respondBindError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": utils.ProcessValidationErrors(validationErrors),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func requireUser(c *gin.Context) (string, bool) {
	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || username == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return username, true
}

func requireAdmin(c *gin.Context) (string, bool) {
	username, ok := requireUser(c)
	if !ok {
		return "", false
	}
	if isAdmin, _ := utils.GetIsAdminFromContext(c.Request.Context()); !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return "", false
	}
	return username, true
}

// dateRangeFromQuery reads start_date/end_date query params (YYYY-MM-DD).
// Defaults match the original books: first of the current month through today.
func dateRangeFromQuery(c *gin.Context) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	start := utils.StartOfMonth(now)
	end := now.Truncate(24 * time.Hour)

	var err error
	if s := c.Query("start_date"); s != "" {
		if start, err = utils.ParseDateOnly(s); err != nil {
			return start, end, utils.NewValidationError("invalid start_date %q", s)
		}
	}
	if s := c.Query("end_date"); s != "" {
		if end, err = utils.ParseDateOnly(s); err != nil {
			return start, end, utils.NewValidationError("invalid end_date %q", s)
		}
	}
	if end.Before(start) {
		return start, end, utils.NewValidationError("end date must not be before start date")
	}
	return start, end, nil
}

func actorFromContext(ctx context.Context) (*int, string) {
	username, _ := utils.GetUsernameFromContext(ctx)
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		return &userId, username
	}
	return nil, username
}

func loginHandler() gin.HandlerFunc {
	type loginRequest struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		info, err := models.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireUser(c); !ok {
			return
		}
		ok, err := models.Logout(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": ok})
	}
}

func createSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDailySale
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		sale, err := models.CreateDailySale(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		userId, username := actorFromContext(ctx)
		models.LogActivitySafe(ctx, &models.NewActivityLog{
			UserId:   userId,
			Username: username,
			Action:   models.ActionRecordSale,
			// Amount first: the large-transaction rule reads the first
			// number out of the details.
			Details:  fmt.Sprintf("Recorded sale for $%s: %s %s", sale.TotalAmount, sale.QuantitySold, sale.ItemName),
		})
		c.JSON(http.StatusCreated, sale)
	}
}

func listSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		sales, err := models.GetDailySales(c.Request.Context(), start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sales)
	}
}

func deleteSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
			return
		}
		sale, err := models.DeleteDailySale(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		userId, username := actorFromContext(ctx)
		models.LogActivitySafe(ctx, &models.NewActivityLog{
			UserId:   userId,
			Username: username,
			Action:   models.ActionDeleteSale,
			Details:  fmt.Sprintf("Deleted sale for $%s: %s %s", sale.TotalAmount, sale.QuantitySold, sale.ItemName),
		})
		c.JSON(http.StatusOK, sale)
	}
}

func createPurchaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMarketPurchase
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		purchase, err := models.CreateMarketPurchase(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		userId, username := actorFromContext(ctx)
		models.LogActivitySafe(ctx, &models.NewActivityLog{
			UserId:   userId,
			Username: username,
			Action:   models.ActionRecordPurchase,
			Details:  fmt.Sprintf("Recorded market purchase for $%s across %d items", purchase.TotalAmountSpent, len(purchase.Items)),
		})
		c.JSON(http.StatusCreated, purchase)
	}
}

func listPurchasesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		purchases, err := models.GetMarketPurchases(c.Request.Context(), start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, purchases)
	}
}

func createUsageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewInventoryUsage
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		usage, err := models.CreateInventoryUsage(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		userId, username := actorFromContext(ctx)
		models.LogActivitySafe(ctx, &models.NewActivityLog{
			UserId:   userId,
			Username: username,
			Action:   models.ActionRecordUsage,
			Details:  fmt.Sprintf("Recorded usage costing $%s for item %d", usage.CostUsed, usage.InventoryItemId),
		})
		c.JSON(http.StatusCreated, usage)
	}
}

func listUsagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("start_date") == "" && c.Query("end_date") == "" {
			usages, err := models.GetRecentInventoryUsages(c.Request.Context(), 20)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, usages)
			return
		}
		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		usages, err := models.GetInventoryUsages(c.Request.Context(), start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, usages)
	}
}

func listInventoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			items []*models.InventoryItem
			err   error
		)
		if c.Query("available") != "" {
			items, err = models.ListAvailableInventoryItems(c.Request.Context())
		} else {
			items, err = models.ListInventoryItems(c.Request.Context())
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

func summaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := models.GetProfitLossSummary(c.Request.Context(), start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := models.GetDashboardSummary(c.Request.Context(), start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func exportExcelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "export-excel")
		defer span.End()

		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		records, err := models.GetPeriodRecords(ctx, start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		summary, err := models.GetProfitLossSummary(ctx, start, end)
		if err != nil {
			respondError(c, err)
			return
		}
		items, err := models.ListInventoryItems(ctx)
		if err != nil {
			respondError(c, err)
			return
		}
		itemNames := make(map[int]string, len(items))
		for _, item := range items {
			itemNames[item.ID] = item.ItemName
		}

		f, err := reports.BuildPeriodWorkbook(summary, records, itemNames)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build workbook"})
			return
		}
		if err := reports.WritePeriodReport(c.Writer, f, start, end); err != nil {
			config.LogError(config.GetLogger(), "server.go", "exportExcelHandler", "stream workbook", nil, err)
		}
	}
}

func logActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewActivityLog
		if err := c.ShouldBindJSON(&input); err != nil {
			respondBindError(c, err)
			return
		}
		event, err := models.LogActivity(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, event)
	}
}

func listActivityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		start, end, err := dateRangeFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		var userId *int
		if s := c.Query("user_id"); s != "" {
			id, err := strconv.Atoi(s)
			if err != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
				return
			}
			userId = &id
		}
		events, err := models.GetActivityLogs(c.Request.Context(), start, end, userId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

func listAlertsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := requireAdmin(c); !ok {
			return
		}
		alerts, err := models.GetFraudAlerts(c.Request.Context(), c.Query("unresolved") != "")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, alerts)
	}
}

func resolveAlertHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := requireAdmin(c)
		if !ok {
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
			return
		}
		alert, err := models.ResolveFraudAlert(c.Request.Context(), id, admin)
		if err != nil {
			respondError(c, err)
			return
		}

		ctx := c.Request.Context()
		userId, username := actorFromContext(ctx)
		models.LogActivitySafe(ctx, &models.NewActivityLog{
			UserId:   userId,
			Username: username,
			Action:   models.ActionResolveAlert,
			Details:  fmt.Sprintf("Resolved %s alert %d", alert.AlertType, alert.ID),
		})
		c.JSON(http.StatusOK, alert)
	}
}

func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			config.LogError(logger, "server.go", "customErrorLogger", c.Request.URL.Path, nil, ginErr)
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// SIGTERM arrives on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP; until DB/redis are ready, app endpoints
	// return 503.
	r := gin.New()

	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
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

	r.Use(middlewares.ClientContextMiddleware())
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/login", loginHandler())
	r.POST("/logout", logoutHandler())

	r.GET("/daily-sales", listSalesHandler())
	r.POST("/daily-sales", createSaleHandler())
	r.DELETE("/daily-sales/:id", deleteSaleHandler())

	r.GET("/market-purchases", listPurchasesHandler())
	r.POST("/market-purchases", createPurchaseHandler())

	r.GET("/inventory", listInventoryHandler())
	r.GET("/inventory-usages", listUsagesHandler())
	r.POST("/inventory-usages", createUsageHandler())

	r.GET("/reports/summary", summaryHandler())
	r.GET("/reports/dashboard", dashboardHandler())
	r.GET("/reports/export-excel", exportExcelHandler())

	r.POST("/activity-logs", logActivityHandler())
	r.GET("/activity-logs", listActivityHandler())
	r.GET("/fraud-alerts", listAlertsHandler())
	r.POST("/fraud-alerts/:id/resolve", resolveAlertHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	select {
	case <-sigCtx.Done():
		logger.Info("shutdown signal received; draining")
	case err := <-serverErrCh:
		if err != nil && err != http.ErrServerClosed {
			logger.WithFields(logrus.Fields{"field": "ListenAndServe"}).Error(err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "Shutdown"}).Error(err.Error())
	}
}
