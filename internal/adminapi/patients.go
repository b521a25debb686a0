package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type patientPayload struct {
	FirstName        string `json:"first_name" validate:"required,max=100"`
	LastName         string `json:"last_name" validate:"omitempty,max=100"`
	DateOfBirth      string `json:"date_of_birth" validate:"omitempty,max=32"`
	Gender           string `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
	Phone            string `json:"phone" validate:"omitempty,max=32"`
	Email            string `json:"email" validate:"omitempty,email"`
	Address          string `json:"address" validate:"omitempty,max=500"`
	BloodGroup       string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies        string `json:"allergies" validate:"omitempty,max=1000"`
	EmergencyContact string `json:"emergency_contact" validate:"omitempty,max=100"`
	EmergencyPhone   string `json:"emergency_phone" validate:"omitempty,max=32"`
	Status           string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Remark           string `json:"remark" validate:"omitempty,max=1000"`
}

type patientUpdatePayload struct {
	FirstName        *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName         *string `json:"last_name" validate:"omitempty,max=100"`
	DateOfBirth      *string `json:"date_of_birth" validate:"omitempty,max=32"`
	Gender           *string `json:"gender" validate:"omitempty,oneof=MALE FEMALE OTHER"`
	Phone            *string `json:"phone" validate:"omitempty,max=32"`
	Email            *string `json:"email" validate:"omitempty,email"`
	Address          *string `json:"address" validate:"omitempty,max=500"`
	BloodGroup       *string `json:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Allergies        *string `json:"allergies" validate:"omitempty,max=1000"`
	EmergencyContact *string `json:"emergency_contact" validate:"omitempty,max=100"`
	EmergencyPhone   *string `json:"emergency_phone" validate:"omitempty,max=32"`
	Status           *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Remark           *string `json:"remark" validate:"omitempty,max=1000"`
}

func registerPatientRoutes() {
	webserver.ApiGET("/patients", ListPatients)
	webserver.ApiGET("/patients/:id", GetPatient)
	webserver.ApiGET("/patients/:id/history", PatientHistory)
	webserver.ApiPOST("/patients", CreatePatient)
	webserver.ApiPUT("/patients/:id", UpdatePatient)
	webserver.ApiDELETE("/patients/:id", DeletePatient)
}

// ListPatients lists patients with search and paging
// @Summary list patients
// @Tags Patients
// @Param q query string false "Name, MRN or phone"
// @Param status query string false "ACTIVE or INACTIVE"
// @Param page query int false "Page number"
// @Param pageSize query int false "Items per page"
// @Success 200 {object} ListResponse
// @Router /api/v1/patients [get]
func ListPatients(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Patient{})
	query = searchScope(query, c.QueryParam("q"), "first_name", "last_name", "mrn", "phone")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if gender := strings.TrimSpace(c.QueryParam("gender")); gender != "" {
		query = query.Where("gender = ?", gender)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query patients", err.Error())
	}
	var patients []domain.Patient
	query = sortScope(c, query, []string{"mrn", "first_name", "last_name", "date_of_birth", "created_at"}, "created_at DESC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&patients).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query patients", err.Error())
	}
	return paged(c, patients, total, page, pageSize)
}

// GetPatient fetches one patient
// @Summary get patient
// @Tags Patients
// @Param id path string true "Patient ID"
// @Success 200 {object} domain.Patient
// @Router /api/v1/patients/{id} [get]
func GetPatient(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid patient ID", nil)
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, id).Error; err != nil {
		if isNotFound(err) {
			return fail(c, http.StatusNotFound, "PATIENT_NOT_FOUND", "Patient not found", nil)
		}
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query patient", err.Error())
	}
	return ok(c, map[string]interface{}{
		"patient": patient,
		"age":     patient.Age(time.Now()),
	})
}

// CreatePatient registers a patient and assigns the next MRN
// @Summary create patient
// @Tags Patients
// @Param patient body patientPayload true "Patient"
// @Success 201 {object} domain.Patient
// @Router /api/v1/patients [post]
func CreatePatient(c echo.Context) error {
	var payload patientPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	dob, err := normalizeBirthDate(payload.DateOfBirth)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
	}

	patient := domain.Patient{
		ID:               common.UUIDint64(),
		FirstName:        common.TitleName(payload.FirstName),
		LastName:         common.TitleName(payload.LastName),
		DateOfBirth:      dob,
		Gender:           payload.Gender,
		Phone:            strings.TrimSpace(payload.Phone),
		Email:            strings.ToLower(strings.TrimSpace(payload.Email)),
		Address:          payload.Address,
		BloodGroup:       payload.BloodGroup,
		Allergies:        payload.Allergies,
		EmergencyContact: payload.EmergencyContact,
		EmergencyPhone:   payload.EmergencyPhone,
		Status:           common.If(payload.Status == "", domain.PatientActive, payload.Status).(string),
		Remark:           payload.Remark,
	}
	err = GetDB(c).Transaction(func(tx *gorm.DB) error {
		mrn, err := app.NextCode(tx, app.CounterMRN)
		if err != nil {
			return err
		}
		patient.Mrn = mrn
		return tx.Create(&patient).Error
	})
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create patient", err.Error())
	}
	publishAudit(c, "create", "patient", patient.ID, map[string]string{"mrn": patient.Mrn, "name": patient.FullName()})
	return created(c, patient)
}

// UpdatePatient applies a partial update
// @Summary update patient
// @Tags Patients
// @Param id path string true "Patient ID"
// @Param patient body patientUpdatePayload true "Fields to change"
// @Success 200 {object} domain.Patient
// @Router /api/v1/patients/{id} [put]
func UpdatePatient(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid patient ID", nil)
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "PATIENT_NOT_FOUND", "Patient not found", nil)
	}

	var payload patientUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	updates := make(map[string]interface{})
	if payload.FirstName != nil {
		updates["first_name"] = common.TitleName(*payload.FirstName)
	}
	if payload.LastName != nil {
		updates["last_name"] = common.TitleName(*payload.LastName)
	}
	if payload.DateOfBirth != nil {
		dob, err := normalizeBirthDate(*payload.DateOfBirth)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
		}
		updates["date_of_birth"] = dob
	}
	if payload.Gender != nil {
		updates["gender"] = *payload.Gender
	}
	if payload.Phone != nil {
		updates["phone"] = strings.TrimSpace(*payload.Phone)
	}
	if payload.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*payload.Email))
	}
	if payload.Address != nil {
		updates["address"] = *payload.Address
	}
	if payload.BloodGroup != nil {
		updates["blood_group"] = *payload.BloodGroup
	}
	if payload.Allergies != nil {
		updates["allergies"] = *payload.Allergies
	}
	if payload.EmergencyContact != nil {
		updates["emergency_contact"] = *payload.EmergencyContact
	}
	if payload.EmergencyPhone != nil {
		updates["emergency_phone"] = *payload.EmergencyPhone
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.Remark != nil {
		updates["remark"] = *payload.Remark
	}

	if len(updates) > 0 {
		if err := GetDB(c).Model(&patient).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update patient", err.Error())
		}
		publishAudit(c, "update", "patient", patient.ID, updates)
	}
	GetDB(c).First(&patient, id)
	return ok(c, patient)
}

// DeletePatient soft deletes a patient without open appointments
// @Summary delete patient
// @Tags Patients
// @Param id path string true "Patient ID"
// @Success 204 "No Content"
// @Router /api/v1/patients/{id} [delete]
func DeletePatient(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid patient ID", nil)
	}
	var patient domain.Patient
	if err := GetDB(c).First(&patient, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "PATIENT_NOT_FOUND", "Patient not found", nil)
	}
	var open int64
	GetDB(c).Model(&domain.Appointment{}).
		Where("patient_id = ? AND status IN ?", id, []string{domain.ApptScheduled, domain.ApptWaiting, domain.ApptInProgress}).
		Count(&open)
	if open > 0 {
		return fail(c, http.StatusConflict, "PATIENT_HAS_APPOINTMENTS", "Patient has open appointments", open)
	}
	if err := GetDB(c).Delete(&patient).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete patient", err.Error())
	}
	publishAudit(c, "delete", "patient", patient.ID, patient.Mrn)
	return c.NoContent(http.StatusNoContent)
}

// PatientHistory returns the appointments, invoices and follow-ups of a patient
// @Summary patient history
// @Tags Patients
// @Param id path string true "Patient ID"
// @Success 200 {object} Response
// @Router /api/v1/patients/{id}/history [get]
func PatientHistory(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid patient ID", nil)
	}
	db := GetDB(c)
	var patient domain.Patient
	if err := db.Unscoped().First(&patient, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "PATIENT_NOT_FOUND", "Patient not found", nil)
	}
	var appointments []domain.Appointment
	var invoices []domain.Invoice
	var followUps []domain.FollowUp
	db.Where("patient_id = ?", id).Order("date DESC, start_time DESC").Find(&appointments)
	db.Where("patient_id = ?", id).Order("issue_date DESC").Find(&invoices)
	db.Where("patient_id = ?", id).Order("due_date DESC").Find(&followUps)
	return ok(c, map[string]interface{}{
		"patient":      patient,
		"appointments": appointments,
		"invoices":     invoices,
		"follow_ups":   followUps,
	})
}

// normalizeBirthDate accepts any common date format, rejecting future dates
func normalizeBirthDate(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	d, err := common.NormalizeDate(s)
	if err != nil {
		return "", err
	}
	if d > common.Today() {
		return "", errors.New("date of birth is in the future")
	}
	return d, nil
}
