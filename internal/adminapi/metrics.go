package adminapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/metrics"
	"github.com/spf13/cast"
)

var systemGauges = []string{"hms_cpuuse", "hms_memuse", "system_cpuuse", "system_memuse"}

func registerMetricsRoutes() {
	webserver.ApiGET("/metrics/system", SystemMetrics, webserver.AdminOnly())
}

// SystemMetrics returns recent cpu and memory samples.
// Cpu values are percent * 100, memory values MB.
// @Summary system gauges
// @Tags System
// @Param minutes query int false "Window in minutes, default 60"
// @Success 200 {object} Response
// @Router /api/v1/metrics/system [get]
func SystemMetrics(c echo.Context) error {
	minutes := cast.ToInt(c.QueryParam("minutes"))
	if minutes <= 0 || minutes > 7*24*60 {
		minutes = 60
	}
	end := time.Now()
	start := end.Add(-time.Duration(minutes) * time.Minute)
	result := make(map[string][]metrics.Point, len(systemGauges))
	for _, name := range systemGauges {
		pts, err := metrics.Query(name, start, end)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metrics", err.Error())
		}
		result[name] = pts
	}
	return ok(c, map[string]interface{}{
		"from":    start.Unix(),
		"to":      end.Unix(),
		"metrics": result,
	})
}
