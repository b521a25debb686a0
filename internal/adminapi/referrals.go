package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
)

type referralPayload struct {
	PatientId        int64  `json:"patient_id,string" validate:"required"`
	FromDoctorId     int64  `json:"from_doctor_id,string" validate:"required"`
	ToDoctorId       int64  `json:"to_doctor_id,string"`
	ExternalFacility string `json:"external_facility" validate:"omitempty,max=200"`
	Reason           string `json:"reason" validate:"required,max=1000"`
	Urgency          string `json:"urgency" validate:"omitempty,oneof=ROUTINE URGENT EMERGENCY"`
	Notes            string `json:"notes" validate:"omitempty,max=2000"`
}

type referralUpdatePayload struct {
	Reason  *string `json:"reason" validate:"omitempty,min=1,max=1000"`
	Urgency *string `json:"urgency" validate:"omitempty,oneof=ROUTINE URGENT EMERGENCY"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}

func registerReferralRoutes() {
	webserver.ApiGET("/referrals", ListReferrals)
	webserver.ApiGET("/referrals/:id", GetReferral)
	webserver.ApiPOST("/referrals", CreateReferral)
	webserver.ApiPUT("/referrals/:id", UpdateReferral)
	webserver.ApiPATCH("/referrals/:id/status", UpdateReferralStatus)
	webserver.ApiDELETE("/referrals/:id", DeleteReferral)
}

func ListReferrals(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Referral{})
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if urgency := strings.TrimSpace(c.QueryParam("urgency")); urgency != "" {
		query = query.Where("urgency = ?", urgency)
	}
	if id := queryID(c, "patient_id"); id > 0 {
		query = query.Where("patient_id = ?", id)
	}
	if id := queryID(c, "doctor_id"); id > 0 {
		query = query.Where("from_doctor_id = ? OR to_doctor_id = ?", id, id)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query referrals", err.Error())
	}
	var rows []domain.Referral
	if err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query referrals", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func GetReferral(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid referral ID", nil)
	}
	var r domain.Referral
	if err := GetDB(c).First(&r, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "REFERRAL_NOT_FOUND", "Referral not found", nil)
	}
	return ok(c, r)
}

// CreateReferral refers a patient to another doctor or an outside facility
// @Summary create referral
// @Tags Referrals
// @Param referral body referralPayload true "Referral"
// @Success 201 {object} domain.Referral
// @Router /api/v1/referrals [post]
func CreateReferral(c echo.Context) error {
	var payload referralPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if payload.ToDoctorId == 0 && strings.TrimSpace(payload.ExternalFacility) == "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "A target doctor or an external facility is required", nil)
	}
	if payload.ToDoctorId != 0 && payload.ToDoctorId == payload.FromDoctorId {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "A doctor cannot refer to themselves", nil)
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, payload.PatientId).Error; err != nil {
		return fail(c, http.StatusUnprocessableEntity, "PATIENT_UNAVAILABLE", "Patient not found", nil)
	}
	r := domain.Referral{
		ID:               common.UUIDint64(),
		PatientId:        payload.PatientId,
		FromDoctorId:     payload.FromDoctorId,
		ToDoctorId:       payload.ToDoctorId,
		ExternalFacility: strings.TrimSpace(payload.ExternalFacility),
		Reason:           payload.Reason,
		Urgency:          common.If(payload.Urgency == "", "ROUTINE", payload.Urgency).(string),
		Status:           domain.ReferralPending,
		Notes:            payload.Notes,
	}
	if err := GetDB(c).Create(&r).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create referral", err.Error())
	}
	publishAudit(c, "create", "referral", r.ID, map[string]string{"urgency": r.Urgency})
	return created(c, r)
}

func UpdateReferral(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid referral ID", nil)
	}
	var r domain.Referral
	if err := GetDB(c).First(&r, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "REFERRAL_NOT_FOUND", "Referral not found", nil)
	}
	var payload referralUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	updates := make(map[string]interface{})
	if payload.Reason != nil {
		updates["reason"] = *payload.Reason
	}
	if payload.Urgency != nil {
		updates["urgency"] = *payload.Urgency
	}
	if payload.Notes != nil {
		updates["notes"] = *payload.Notes
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&r).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update referral", err.Error())
		}
		publishAudit(c, "update", "referral", r.ID, updates)
	}
	GetDB(c).First(&r, id)
	return ok(c, r)
}

// UpdateReferralStatus accepts, rejects or completes a referral
// @Summary change referral status
// @Tags Referrals
// @Param id path string true "Referral ID"
// @Param body body statusPayload true "Target status"
// @Success 200 {object} domain.Referral
// @Router /api/v1/referrals/{id}/status [patch]
func UpdateReferralStatus(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid referral ID", nil)
	}
	var payload statusPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	var r domain.Referral
	if err := GetDB(c).First(&r, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "REFERRAL_NOT_FOUND", "Referral not found", nil)
	}
	from := r.Status
	if err := r.Transition(strings.ToUpper(payload.Status)); err != nil {
		return domainError(c, err, "UPDATE_FAILED")
	}
	res := GetDB(c).Model(&domain.Referral{}).Where("id = ? AND status = ?", r.ID, from).Update("status", r.Status)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update referral", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusConflict, "CONCURRENT_UPDATE", "Referral was changed by another operator", nil)
	}
	publishAudit(c, "status", "referral", r.ID, map[string]string{"from": from, "to": r.Status})
	return ok(c, r)
}

func DeleteReferral(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid referral ID", nil)
	}
	res := GetDB(c).Delete(&domain.Referral{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete referral", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "REFERRAL_NOT_FOUND", "Referral not found", nil)
	}
	publishAudit(c, "delete", "referral", id, nil)
	return c.NoContent(http.StatusNoContent)
}
