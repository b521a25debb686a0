package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/montanaflynn/stats"
	"gorm.io/gorm"
)

type feedbackPayload struct {
	PatientId int64  `json:"patient_id,string"`
	DoctorId  int64  `json:"doctor_id,string"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Category  string `json:"category" validate:"omitempty,max=100"`
	Comment   string `json:"comment" validate:"omitempty,max=2000"`
}

type feedbackUpdatePayload struct {
	Status   *string `json:"status" validate:"omitempty,oneof=NEW REVIEWED RESOLVED"`
	Response *string `json:"response" validate:"omitempty,max=2000"`
	Category *string `json:"category" validate:"omitempty,max=100"`
}

type FeedbackStats struct {
	Count     int            `json:"count"`
	Mean      float64        `json:"mean"`
	Median    float64        `json:"median"`
	Histogram map[string]int `json:"histogram"`
	ByStatus  map[string]int `json:"by_status"`
}

func registerFeedbackRoutes() {
	webserver.ApiGET("/feedback", ListFeedback)
	webserver.ApiGET("/feedback/stats", GetFeedbackStats)
	webserver.ApiPOST("/feedback", CreateFeedback)
	webserver.ApiPUT("/feedback/:id", UpdateFeedback)
	webserver.ApiDELETE("/feedback/:id", DeleteFeedback)
}

func ListFeedback(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := feedbackFilter(c)
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query feedback", err.Error())
	}
	var rows []domain.Feedback
	query = sortScope(c, query, []string{"rating", "created_at", "status"}, "created_at DESC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query feedback", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func CreateFeedback(c echo.Context) error {
	var payload feedbackPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	fb := domain.Feedback{
		ID:        common.UUIDint64(),
		PatientId: payload.PatientId,
		DoctorId:  payload.DoctorId,
		Rating:    payload.Rating,
		Category:  common.If(payload.Category == "", "GENERAL", strings.ToUpper(payload.Category)).(string),
		Comment:   payload.Comment,
		Status:    domain.FeedbackNew,
	}
	if err := GetDB(c).Create(&fb).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to save feedback", err.Error())
	}
	publishAudit(c, "create", "feedback", fb.ID, nil)
	return created(c, fb)
}

func UpdateFeedback(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid feedback ID", nil)
	}
	var fb domain.Feedback
	if err := GetDB(c).First(&fb, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "FEEDBACK_NOT_FOUND", "Feedback not found", nil)
	}
	var payload feedbackUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	updates := make(map[string]interface{})
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.Response != nil {
		updates["response"] = *payload.Response
		if payload.Status == nil && fb.Status == domain.FeedbackNew {
			updates["status"] = domain.FeedbackReviewed
		}
	}
	if payload.Category != nil {
		updates["category"] = strings.ToUpper(*payload.Category)
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&fb).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update feedback", err.Error())
		}
		publishAudit(c, "update", "feedback", fb.ID, updates)
	}
	GetDB(c).First(&fb, id)
	return ok(c, fb)
}

func DeleteFeedback(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid feedback ID", nil)
	}
	res := GetDB(c).Delete(&domain.Feedback{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete feedback", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "FEEDBACK_NOT_FOUND", "Feedback not found", nil)
	}
	publishAudit(c, "delete", "feedback", id, nil)
	return c.NoContent(http.StatusNoContent)
}

// GetFeedbackStats summarises ratings
// @Summary feedback statistics
// @Tags Feedback
// @Param doctor_id query string false "Doctor ID"
// @Param from query string false "First day"
// @Param to query string false "Last day"
// @Success 200 {object} FeedbackStats
// @Router /api/v1/feedback/stats [get]
func GetFeedbackStats(c echo.Context) error {
	var rows []domain.Feedback
	if err := feedbackFilter(c).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query feedback", err.Error())
	}
	return ok(c, summariseFeedback(rows))
}

func summariseFeedback(rows []domain.Feedback) FeedbackStats {
	result := FeedbackStats{
		Count:     len(rows),
		Histogram: map[string]int{"1": 0, "2": 0, "3": 0, "4": 0, "5": 0},
		ByStatus:  map[string]int{},
	}
	ratings := make(stats.Float64Data, 0, len(rows))
	for _, r := range rows {
		ratings = append(ratings, float64(r.Rating))
		result.Histogram[strconv.Itoa(r.Rating)]++
		result.ByStatus[r.Status]++
	}
	if len(ratings) == 0 {
		return result
	}
	mean, _ := ratings.Mean()
	median, _ := ratings.Median()
	result.Mean, _ = stats.Round(mean, 2)
	result.Median = median
	return result
}

func feedbackFilter(c echo.Context) *gorm.DB {
	query := GetDB(c).Model(&domain.Feedback{})
	if id := queryID(c, "doctor_id"); id > 0 {
		query = query.Where("doctor_id = ?", id)
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		query = query.Where("category = ?", strings.ToUpper(category))
	}
	if from := strings.TrimSpace(c.QueryParam("from")); from != "" {
		if t, err := common.ParseDate(from); err == nil {
			query = query.Where("created_at >= ?", t)
		}
	}
	if to := strings.TrimSpace(c.QueryParam("to")); to != "" {
		if t, err := common.ParseDate(to); err == nil {
			query = query.Where("created_at < ?", t.AddDate(0, 0, 1))
		}
	}
	return query
}
