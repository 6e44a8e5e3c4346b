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

	"github.com/casahogar/cashbox_backend/config"
	"github.com/casahogar/cashbox_backend/middlewares"
	"github.com/casahogar/cashbox_backend/models"
	"github.com/casahogar/cashbox_backend/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("cashbox-backend")

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"code": utils.CodeNotFound, "message": "route not found"})
}

// correlationMiddleware generates one id per request and attaches it to the context.
func correlationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	}
}

// readinessMiddleware answers 503 until the database is connected.
// Redis is optional: sessions, caches and locks degrade without it.
func readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
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
	}
}

func corsMiddleware() gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()
	// In production only the CORS_ALLOWED_ORIGINS allowlist (comma-separated) is accepted.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if config.IsProduction() {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id", "Idempotency-Key")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	return cors.New(corsConfig)
}

func rateLimiterFromEnv(prefix string, envLimit string, defaultLimit int64) *middlewares.RateLimiter {
	limit := defaultLimit
	if v := strings.TrimSpace(os.Getenv(envLimit)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			limit = n
		}
	}
	windowSec := int64(60)
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			windowSec = n
		}
	}
	return middlewares.NewRateLimiter(nil, prefix, limit, time.Duration(windowSec)*time.Second)
}

func newRouter(logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.Use(readinessMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.Use(corsMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	// - RATE_LIMIT_LOGIN_MAX_REQUESTS=5
	if config.RateLimitEnabled() {
		api.Use(rateLimiterFromEnv("api", "RATE_LIMIT_MAX_REQUESTS", 600).RateLimitMiddleware)
		api.POST("/login", rateLimiterFromEnv("login", "RATE_LIMIT_LOGIN_MAX_REQUESTS", 5).RateLimitMiddleware, loginHandler())
	} else {
		api.POST("/login", loginHandler())
	}

	authed := api.Group("", middlewares.SessionMiddleware(), middlewares.RequireSession())
	admin := authed.Group("", middlewares.RequireAdmin())
	registerRoutes(authed, admin)

	r.NoRoute(customNotFoundHandler)
	return r
}

func registerRoutes(authed *gin.RouterGroup, admin *gin.RouterGroup) {
	authed.GET("/user", meHandler())
	authed.POST("/logout", logoutHandler())

	authed.GET("/products", listProductsHandler())
	authed.GET("/products/:id", getProductHandler())
	authed.GET("/products/:id/stock", getProductStockHandler())
	admin.POST("/products", createProductHandler())
	admin.PUT("/products/:id", updateProductHandler())
	admin.DELETE("/products/:id", deleteProductHandler())
	admin.POST("/products/:id/restore", restoreProductHandler())
	admin.POST("/products/:id/restock", restockProductHandler())

	authed.GET("/nurses", listNursesHandler())
	authed.GET("/nurses/:id", getNurseHandler())
	admin.POST("/nurses", createNurseHandler())
	admin.PUT("/nurses/:id", updateNurseHandler())
	admin.POST("/nurses/:id/toggle", toggleNurseHandler())
	admin.DELETE("/nurses/:id", deleteNurseHandler())
	admin.POST("/nurses/:id/restore", restoreNurseHandler())

	authed.GET("/sales", listSalesHandler())
	authed.GET("/sales/:id", getSaleHandler())
	authed.POST("/sales", createSaleHandler())
	authed.PUT("/sales/:id", updateSaleHandler())
	authed.DELETE("/sales/:id", deleteSaleHandler())

	authed.GET("/expenses", listExpensesHandler())
	authed.GET("/expenses/:id", getExpenseHandler())
	authed.POST("/expenses", createExpenseHandler())
	admin.PUT("/expenses/:id", updateExpenseHandler())
	admin.DELETE("/expenses/:id", deleteExpenseHandler())

	admin.GET("/capital-injections", listCapitalInjectionsHandler())
	admin.GET("/capital-injections/date/:date", capitalInjectionsByDateHandler())
	admin.GET("/capital-injections/:id", getCapitalInjectionHandler())
	admin.POST("/capital-injections", createCapitalInjectionHandler())
	admin.PUT("/capital-injections/:id", updateCapitalInjectionHandler())
	admin.DELETE("/capital-injections/:id", deleteCapitalInjectionHandler())

	authed.GET("/waste-records", listWasteRecordsHandler())
	authed.GET("/waste-records/:id", getWasteRecordHandler())
	authed.POST("/waste-records", createWasteRecordHandler())
	admin.DELETE("/waste-records/:id", deleteWasteRecordHandler())

	authed.GET("/daily-closings/last-balance", lastBalanceHandler())
	authed.GET("/daily-closings/preview/:date", previewClosingHandler())
	authed.POST("/daily-closings/calculate", calculateClosingHandler())
	admin.PUT("/daily-closings/:date/recompute", recomputeClosingHandler())
	admin.GET("/daily-closings", listClosingsHandler())
	admin.GET("/daily-closings/:date", getClosingHandler())

	admin.GET("/reports/dashboard", dashboardHandler())
	admin.GET("/reports/sales-by-date", salesReportHandler())
	admin.GET("/reports/daily-detail/:date", dailyDetailHandler())
	admin.GET("/reports/activity-logs", activityLogsHandler())
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
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start listening before dependencies are ready; the readiness gate answers 503 meanwhile.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: newRouter(logger),
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS=true leaves it to a separate job.
	if !config.SkipMigrations() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// customErrorLogger logs only requests that recorded errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
			logger.WithFields(logrus.Fields{
				"path":           c.FullPath(),
				"method":         c.Request.Method,
				"status":         c.Writer.Status(),
				"correlation_id": cid,
			}).Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
