package adminapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/pkg/errors"
)

type settingItem struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Value       string `json:"value"`
	Default     string `json:"default"`
	Description string `json:"description"`
}

func registerSettingsRoutes() {
	webserver.ApiGET("/settings", ListSettings)
	webserver.ApiPUT("/settings", UpdateSettings, webserver.AdminOnly())
	webserver.ApiGET("/counters", ListCounters)
}

// ListSettings returns every known setting with its current value
// @Summary list settings
// @Tags Settings
// @Success 200 {object} Response
// @Router /api/v1/settings [get]
func ListSettings(c echo.Context) error {
	cm := GetAppContext(c).ConfigMgr()
	items := make([]settingItem, 0)
	for _, s := range cm.Schemas() {
		category, name := splitSettingKey(s.Key)
		items = append(items, settingItem{
			Key:         s.Key,
			Type:        s.Type,
			Value:       cm.GetString(category, name),
			Default:     s.Default,
			Description: s.Description,
		})
	}
	return ok(c, items)
}

// UpdateSettings saves a map of setting key to value
// @Summary update settings
// @Tags Settings
// @Param settings body map[string]string true "key/value pairs"
// @Success 200 {object} Response
// @Router /api/v1/settings [put]
func UpdateSettings(c echo.Context) error {
	var payload map[string]string
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if len(payload) == 0 {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "No settings given", nil)
	}
	cm := GetAppContext(c).ConfigMgr()
	for k, v := range payload {
		if err := cm.Validate(k, v); err != nil {
			if errors.Is(err, app.ErrUnknownSetting) {
				return fail(c, http.StatusBadRequest, "UNKNOWN_SETTING", err.Error(), nil)
			}
			return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		}
	}
	if err := GetAppContext(c).SaveSettings(payload); err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to save settings", err.Error())
	}
	publishAudit(c, "update", "settings", 0, payload)
	return ListSettings(c)
}

// ListCounters shows the code sequences
// @Summary list counters
// @Tags Settings
// @Success 200 {object} Response
// @Router /api/v1/counters [get]
func ListCounters(c echo.Context) error {
	var counters []domain.SysCounter
	if err := GetDB(c).Order("name").Find(&counters).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query counters", err.Error())
	}
	return ok(c, counters)
}

func splitSettingKey(key string) (string, string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '.' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}
