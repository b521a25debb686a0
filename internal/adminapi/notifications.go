package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/spf13/cast"
)

func registerNotificationRoutes() {
	webserver.ApiGET("/notifications", ListNotifications)
	webserver.ApiGET("/notifications/unread-count", UnreadNotificationCount)
	webserver.ApiPUT("/notifications/read-all", MarkAllNotificationsRead)
	webserver.ApiPUT("/notifications/:id/read", MarkNotificationRead)
}

// ListNotifications returns in-app notifications, newest first
// @Summary list notifications
// @Tags Notifications
// @Param unread query bool false "Only unread"
// @Param type query string false "Notification type"
// @Success 200 {object} ListResponse
// @Router /api/v1/notifications [get]
func ListNotifications(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Notification{})
	if cast.ToBool(c.QueryParam("unread")) {
		query = query.Where("is_read = ?", false)
	}
	if typ := strings.TrimSpace(c.QueryParam("type")); typ != "" {
		query = query.Where("type = ?", typ)
	}
	if entity := strings.TrimSpace(c.QueryParam("entity")); entity != "" {
		query = query.Where("entity = ?", entity)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query notifications", err.Error())
	}
	var rows []domain.Notification
	if err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query notifications", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func UnreadNotificationCount(c echo.Context) error {
	var count int64
	if err := GetDB(c).Model(&domain.Notification{}).Where("is_read = ?", false).Count(&count).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to count notifications", err.Error())
	}
	return ok(c, map[string]int64{"count": count})
}

func MarkNotificationRead(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID", nil)
	}
	var note domain.Notification
	if err := GetDB(c).First(&note, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found", nil)
	}
	if !note.IsRead {
		now := time.Now()
		if err := GetDB(c).Model(&note).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update notification", err.Error())
		}
		note.IsRead = true
		note.ReadAt = &now
	}
	return ok(c, note)
}

func MarkAllNotificationsRead(c echo.Context) error {
	res := GetDB(c).Model(&domain.Notification{}).Where("is_read = ?", false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update notifications", res.Error.Error())
	}
	return ok(c, map[string]int64{"updated": res.RowsAffected})
}
