package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
)

func registerAuditRoutes() {
	webserver.ApiGET("/audit-logs", ListAuditLogs, webserver.AdminOnly())
}

// ListAuditLogs queries the operation log
// @Summary list audit log entries
// @Tags System
// @Param operator query string false "Operator name"
// @Param entity query string false "Entity"
// @Param action query string false "Action"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} ListResponse
// @Router /api/v1/audit-logs [get]
func ListAuditLogs(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.SysOprLog{})
	if name := strings.TrimSpace(c.QueryParam("operator")); name != "" {
		query = query.Where("opr_name = ?", name)
	}
	if entity := strings.TrimSpace(c.QueryParam("entity")); entity != "" {
		query = query.Where("entity = ?", entity)
	}
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		query = query.Where("opt_action = ?", action)
	}
	if id := queryID(c, "entity_id"); id > 0 {
		query = query.Where("entity_id = ?", id)
	}
	if from := strings.TrimSpace(c.QueryParam("from")); from != "" {
		t, err := common.ParseDate(from)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid from date", from)
		}
		start, _ := common.DayRange(t)
		query = query.Where("opt_time >= ?", start)
	}
	if to := strings.TrimSpace(c.QueryParam("to")); to != "" {
		t, err := common.ParseDate(to)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid to date", to)
		}
		_, end := common.DayRange(t)
		query = query.Where("opt_time < ?", end)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query audit log", err.Error())
	}
	var rows []domain.SysOprLog
	if err := query.Order("opt_time DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query audit log", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}
