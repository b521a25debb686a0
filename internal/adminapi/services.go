package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type servicePayload struct {
	Code     string          `json:"code" validate:"required,min=2,max=32"`
	Name     string          `json:"name" validate:"required,max=200"`
	Category string          `json:"category" validate:"omitempty,max=100"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Remark   string          `json:"remark" validate:"omitempty,max=500"`
}

type serviceUpdatePayload struct {
	Name     *string          `json:"name" validate:"omitempty,min=1,max=200"`
	Category *string          `json:"category" validate:"omitempty,max=100"`
	Price    *decimal.Decimal `json:"price"`
	Status   *string          `json:"status" validate:"omitempty,oneof=enabled disabled"`
	Remark   *string          `json:"remark" validate:"omitempty,max=500"`
}

// registerServiceRoutes registers the price list endpoints
func registerServiceRoutes() {
	webserver.ApiGET("/services", ListServices)
	webserver.ApiGET("/services/:id", GetService)
	webserver.ApiPOST("/services", CreateService)
	webserver.ApiPUT("/services/:id", UpdateService)
	webserver.ApiDELETE("/services/:id", DeleteService)
}

// ListServices returns a paginated list of billable services
func ListServices(c echo.Context) error {
	page, pageSize := parsePagination(c)
	db := GetDB(c).Model(&domain.Service{})
	db = searchScope(db, c.QueryParam("q"), "code", "name", "category")
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		db = db.Where("category = ?", category)
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		db = db.Where("status = ?", status)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query services", err.Error())
	}

	var services []domain.Service
	db = sortScope(c, db, []string{"code", "name", "category", "price"}, "code ASC")
	if err := db.Offset((page - 1) * pageSize).Limit(pageSize).Find(&services).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query services", err.Error())
	}
	return paged(c, services, total, page, pageSize)
}

// GetService returns a single service by ID
func GetService(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid service ID", nil)
	}

	var s domain.Service
	if err := GetDB(c).Where("id = ?", id).First(&s).Error; err != nil {
		return fail(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found", nil)
	}
	return ok(c, s)
}

func CreateService(c echo.Context) error {
	var payload servicePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if payload.Price.IsNegative() {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Price cannot be negative", nil)
	}
	code := strings.ToUpper(strings.TrimSpace(payload.Code))
	var count int64
	GetDB(c).Model(&domain.Service{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "CODE_EXISTS", "Service code already exists", nil)
	}
	s := domain.Service{
		ID:       common.UUIDint64(),
		Code:     code,
		Name:     strings.TrimSpace(payload.Name),
		Category: strings.TrimSpace(payload.Category),
		Price:    common.Round2(payload.Price),
		Status:   common.If(payload.Status == "", common.ENABLED, payload.Status).(string),
		Remark:   payload.Remark,
	}
	if err := GetDB(c).Create(&s).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create service", err.Error())
	}
	publishAudit(c, "create", "service", s.ID, s.Code)
	return created(c, s)
}

func UpdateService(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid service ID", nil)
	}
	var s domain.Service
	if err := GetDB(c).First(&s, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "SERVICE_NOT_FOUND", "Service not found", nil)
	}
	var payload serviceUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	updates := make(map[string]interface{})
	if payload.Name != nil {
		updates["name"] = strings.TrimSpace(*payload.Name)
	}
	if payload.Category != nil {
		updates["category"] = strings.TrimSpace(*payload.Category)
	}
	if payload.Price != nil {
		if payload.Price.IsNegative() {
			return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Price cannot be negative", nil)
		}
		updates["price"] = common.Round2(*payload.Price)
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.Remark != nil {
		updates["remark"] = *payload.Remark
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&s).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update service", err.Error())
		}
		publishAudit(c, "update", "service", s.ID, updates)
	}
	GetDB(c).First(&s, id)
	return ok(c, s)
}

// DeleteService deletes a service by ID. Invoice lines keep their copy
// of the description and price.
func DeleteService(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid service ID", nil)
	}

	if err := GetDB(c).Where("id = ?", id).Delete(&domain.Service{}).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete service", err.Error())
	}

	zap.L().Info("service deleted", zap.Int64("id", id))
	publishAudit(c, "delete", "service", id, nil)
	return c.NoContent(http.StatusNoContent)
}
