package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type equipmentPayload struct {
	Name                string `json:"name" validate:"required,max=200"`
	SerialNumber        string `json:"serial_number" validate:"required,max=64"`
	Category            string `json:"category" validate:"omitempty,max=100"`
	Location            string `json:"location" validate:"omitempty,max=200"`
	Manufacturer        string `json:"manufacturer" validate:"omitempty,max=200"`
	Status              string `json:"status" validate:"omitempty,oneof=OPERATIONAL MAINTENANCE OUT_OF_SERVICE RETIRED"`
	PurchaseDate        string `json:"purchase_date" validate:"omitempty,max=32"`
	MaintenanceInterval int    `json:"maintenance_interval" validate:"omitempty,min=0,max=3650"`
	LastMaintenance     string `json:"last_maintenance" validate:"omitempty,max=32"`
	Remark              string `json:"remark" validate:"omitempty,max=1000"`
}

type maintenancePayload struct {
	Date        string          `json:"date" validate:"omitempty,max=32"`
	Type        string          `json:"type" validate:"required,oneof=PREVENTIVE CORRECTIVE CALIBRATION"`
	PerformedBy string          `json:"performed_by" validate:"required,max=100"`
	Cost        decimal.Decimal `json:"cost"`
	Notes       string          `json:"notes" validate:"omitempty,max=2000"`
}

func registerEquipmentRoutes() {
	webserver.ApiGET("/equipment", ListEquipment)
	webserver.ApiGET("/equipment/due", DueEquipment)
	webserver.ApiGET("/equipment/:id", GetEquipment)
	webserver.ApiPOST("/equipment", CreateEquipment)
	webserver.ApiPUT("/equipment/:id", UpdateEquipment)
	webserver.ApiDELETE("/equipment/:id", DeleteEquipment)
	webserver.ApiGET("/equipment/:id/maintenance", ListMaintenance)
	webserver.ApiPOST("/equipment/:id/maintenance", RecordMaintenance)
}

func ListEquipment(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Equipment{})
	query = searchScope(query, c.QueryParam("q"), "name", "serial_number", "location")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		query = query.Where("category = ?", category)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query equipment", err.Error())
	}
	var rows []domain.Equipment
	query = sortScope(c, query, []string{"name", "category", "status", "next_maintenance"}, "name ASC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query equipment", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func GetEquipment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid equipment ID", nil)
	}
	var e domain.Equipment
	if err := GetDB(c).First(&e, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "EQUIPMENT_NOT_FOUND", "Equipment not found", nil)
	}
	return ok(c, e)
}

// CreateEquipment registers a device and schedules its first maintenance
// @Summary create equipment
// @Tags Equipment
// @Param equipment body equipmentPayload true "Equipment"
// @Success 201 {object} domain.Equipment
// @Router /api/v1/equipment [post]
func CreateEquipment(c echo.Context) error {
	var payload equipmentPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	e := domain.Equipment{ID: common.UUIDint64()}
	if err := applyEquipmentPayload(&e, payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
	}
	var count int64
	GetDB(c).Model(&domain.Equipment{}).Where("serial_number = ?", e.SerialNumber).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "SERIAL_EXISTS", "Serial number already registered", nil)
	}
	if err := GetDB(c).Create(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create equipment", err.Error())
	}
	publishAudit(c, "create", "equipment", e.ID, e.SerialNumber)
	return created(c, e)
}

func UpdateEquipment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid equipment ID", nil)
	}
	var e domain.Equipment
	if err := GetDB(c).First(&e, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "EQUIPMENT_NOT_FOUND", "Equipment not found", nil)
	}
	var payload equipmentPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if err := applyEquipmentPayload(&e, payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
	}
	var count int64
	GetDB(c).Model(&domain.Equipment{}).Where("serial_number = ? AND id <> ?", e.SerialNumber, id).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "SERIAL_EXISTS", "Serial number already registered", nil)
	}
	if err := GetDB(c).Save(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update equipment", err.Error())
	}
	publishAudit(c, "update", "equipment", e.ID, payload)
	return ok(c, e)
}

func DeleteEquipment(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid equipment ID", nil)
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&domain.Equipment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("equipment_id = ?", id).Delete(&domain.MaintenanceRecord{}).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "EQUIPMENT_NOT_FOUND", "Equipment not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete equipment", err.Error())
	}
	publishAudit(c, "delete", "equipment", id, nil)
	return c.NoContent(http.StatusNoContent)
}

func ListMaintenance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid equipment ID", nil)
	}
	var records []domain.MaintenanceRecord
	if err := GetDB(c).Where("equipment_id = ?", id).Order("date DESC").Find(&records).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query maintenance", err.Error())
	}
	return ok(c, records)
}

// RecordMaintenance logs a maintenance and reschedules the next one
// @Summary record maintenance
// @Tags Equipment
// @Param id path string true "Equipment ID"
// @Param record body maintenancePayload true "Maintenance"
// @Success 201 {object} Response
// @Router /api/v1/equipment/{id}/maintenance [post]
func RecordMaintenance(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid equipment ID", nil)
	}
	var payload maintenancePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if payload.Cost.IsNegative() {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Cost cannot be negative", nil)
	}
	date := common.Today()
	if payload.Date != "" {
		if date, err = common.NormalizeDate(payload.Date); err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid maintenance date", payload.Date)
		}
	}

	var e domain.Equipment
	rec := domain.MaintenanceRecord{
		ID:          common.UUIDint64(),
		EquipmentId: id,
		Date:        date,
		Type:        payload.Type,
		PerformedBy: payload.PerformedBy,
		Cost:        common.Round2(payload.Cost),
		Notes:       payload.Notes,
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&e, id).Error; err != nil {
			return err
		}
		if err := e.RecordMaintenance(rec); err != nil {
			return err
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		return tx.Save(&e).Error
	})
	if err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "EQUIPMENT_NOT_FOUND", "Equipment not found", nil)
		}
		return domainError(c, err, "MAINTENANCE_FAILED")
	}
	publishAudit(c, "maintenance", "equipment", e.ID, map[string]string{"type": rec.Type, "date": rec.Date})
	return created(c, map[string]interface{}{
		"equipment": e,
		"record":    rec,
	})
}

// DueEquipment lists devices whose maintenance is due within N days
// @Summary maintenance due
// @Tags Equipment
// @Param days query int false "Horizon in days, default 7"
// @Success 200 {object} Response
// @Router /api/v1/equipment/due [get]
func DueEquipment(c echo.Context) error {
	days, err := strconv.Atoi(c.QueryParam("days"))
	if err != nil || days < 0 {
		days = 7
	}
	until, _ := common.AddDays(common.Today(), days)
	var rows []domain.Equipment
	err = GetDB(c).
		Where("status <> ? AND next_maintenance <> '' AND next_maintenance <= ?", domain.EquipmentRetired, until).
		Order("next_maintenance ASC").
		Find(&rows).Error
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query equipment", err.Error())
	}
	today := common.Today()
	result := make([]map[string]interface{}, 0, len(rows))
	for _, e := range rows {
		result = append(result, map[string]interface{}{
			"equipment": e,
			"overdue":   e.NextMaintenance < today,
		})
	}
	return ok(c, result)
}

func applyEquipmentPayload(e *domain.Equipment, p equipmentPayload) error {
	var err error
	purchase, last := "", ""
	if p.PurchaseDate != "" {
		if purchase, err = common.NormalizeDate(p.PurchaseDate); err != nil {
			return err
		}
	}
	if p.LastMaintenance != "" {
		if last, err = common.NormalizeDate(p.LastMaintenance); err != nil {
			return err
		}
	}
	e.Name = strings.TrimSpace(p.Name)
	e.SerialNumber = strings.ToUpper(strings.TrimSpace(p.SerialNumber))
	e.Category = p.Category
	e.Location = p.Location
	e.Manufacturer = p.Manufacturer
	e.Status = common.If(p.Status == "", domain.EquipmentOperational, p.Status).(string)
	e.PurchaseDate = purchase
	e.MaintenanceInterval = p.MaintenanceInterval
	e.Remark = p.Remark
	if last != "" {
		e.LastMaintenance = last
	}
	from := e.LastMaintenance
	if from == "" {
		from = common.If(purchase == "", common.Today(), purchase).(string)
	}
	return e.ScheduleNext(from)
}
