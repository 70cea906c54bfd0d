package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caseguard/internal/handler"
	"caseguard/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware. gatherer
// backs /metrics; nil selects the default registry.
func Setup(
	redactionH *handler.RedactionHandler,
	healthH *handler.HealthHandler,
	allowedOrigins []string,
	gatherer prometheus.Gatherer,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(allowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")

	cases := v1.Group("/cases/:caseId")
	cases.POST("/documents", redactionH.ProcessDocument)
	cases.GET("/redaction-status", redactionH.GetStatus)
	cases.GET("/redaction-audits/export", redactionH.ExportAudits)

	return r
}
