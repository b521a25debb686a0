package adminapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
)

type operatorPayload struct {
	Username string `json:"username" validate:"required,min=3,max=64,alphanum"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Realname string `json:"realname" validate:"required,max=100"`
	Mobile   string `json:"mobile" validate:"omitempty,max=32"`
	Email    string `json:"email" validate:"omitempty,email"`
	Level    string `json:"level" validate:"required,oneof=super admin doctor reception accountant"`
	Status   string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	DoctorId int64  `json:"doctor_id,string"`
	Remark   string `json:"remark" validate:"omitempty,max=500"`
}

type operatorUpdatePayload struct {
	Password *string `json:"password" validate:"omitempty,min=6,max=128"`
	Realname *string `json:"realname" validate:"omitempty,max=100"`
	Mobile   *string `json:"mobile" validate:"omitempty,max=32"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Level    *string `json:"level" validate:"omitempty,oneof=super admin doctor reception accountant"`
	Status   *string `json:"status" validate:"omitempty,oneof=enabled disabled"`
	DoctorId *int64  `json:"doctor_id,string"`
	Remark   *string `json:"remark" validate:"omitempty,max=500"`
}

func registerOperatorRoutes() {
	admin := webserver.AdminOnly()
	webserver.ApiGET("/system/operators", ListOperators, admin)
	webserver.ApiGET("/system/operators/:id", GetOperator, admin)
	webserver.ApiPOST("/system/operators", CreateOperator, admin)
	webserver.ApiPUT("/system/operators/:id", UpdateOperator, admin)
	webserver.ApiDELETE("/system/operators/:id", DeleteOperator, admin)
}

// ListOperators lists staff accounts
// @Summary list operators
// @Tags Operators
// @Success 200 {object} ListResponse
// @Router /api/v1/system/operators [get]
func ListOperators(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.SysOpr{})
	query = searchScope(query, c.QueryParam("q"), "username", "realname")
	if level := strings.TrimSpace(c.QueryParam("level")); level != "" {
		query = query.Where("level = ?", level)
	}
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operators", err.Error())
	}
	var oprs []domain.SysOpr
	query = sortScope(c, query, []string{"username", "realname", "level", "last_login", "created_at"}, "id DESC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&oprs).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query operators", err.Error())
	}
	return paged(c, oprs, total, page, pageSize)
}

func GetOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).First(&opr, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	}
	return ok(c, opr)
}

// CreateOperator adds a staff account
// @Summary create operator
// @Tags Operators
// @Param operator body operatorPayload true "Operator"
// @Success 201 {object} domain.SysOpr
// @Router /api/v1/system/operators [post]
func CreateOperator(c echo.Context) error {
	var payload operatorPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if payload.Level == domain.LevelSuper && webserver.GetCurrentOperator(c).Level != domain.LevelSuper {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Only super operators can create super operators", nil)
	}

	var count int64
	GetDB(c).Model(&domain.SysOpr{}).Where("username = ?", payload.Username).Count(&count)
	if count > 0 {
		return fail(c, http.StatusConflict, "USERNAME_EXISTS", "Username already exists", nil)
	}

	hashed, err := common.HashPassword(payload.Password)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to hash password", err.Error())
	}
	opr := domain.SysOpr{
		ID:       common.UUIDint64(),
		DoctorId: payload.DoctorId,
		Realname: payload.Realname,
		Mobile:   payload.Mobile,
		Email:    payload.Email,
		Username: payload.Username,
		Password: hashed,
		Level:    payload.Level,
		Status:   common.If(payload.Status == "", common.ENABLED, payload.Status).(string),
		Remark:   payload.Remark,
	}
	if err := GetDB(c).Create(&opr).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create operator", err.Error())
	}
	publishAudit(c, "create", "operator", opr.ID, map[string]string{"username": opr.Username, "level": opr.Level})
	return created(c, opr)
}

func UpdateOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).First(&opr, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	}

	var payload operatorUpdatePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	current := webserver.GetCurrentOperator(c)
	if (opr.Level == domain.LevelSuper || (payload.Level != nil && *payload.Level == domain.LevelSuper)) &&
		current.Level != domain.LevelSuper {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Only super operators can change super operators", nil)
	}

	updates := make(map[string]interface{})
	if payload.Password != nil && *payload.Password != "" {
		hashed, err := common.HashPassword(*payload.Password)
		if err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to hash password", err.Error())
		}
		updates["password"] = hashed
	}
	if payload.Realname != nil {
		updates["realname"] = *payload.Realname
	}
	if payload.Mobile != nil {
		updates["mobile"] = *payload.Mobile
	}
	if payload.Email != nil {
		updates["email"] = *payload.Email
	}
	if payload.Level != nil {
		updates["level"] = *payload.Level
	}
	if payload.Status != nil {
		updates["status"] = *payload.Status
	}
	if payload.DoctorId != nil {
		updates["doctor_id"] = *payload.DoctorId
	}
	if payload.Remark != nil {
		updates["remark"] = *payload.Remark
	}
	if len(updates) > 0 {
		if err := GetDB(c).Model(&opr).Updates(updates).Error; err != nil {
			return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update operator", err.Error())
		}
	}
	GetDB(c).First(&opr, id)
	delete(updates, "password")
	publishAudit(c, "update", "operator", opr.ID, updates)
	return ok(c, opr)
}

func DeleteOperator(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid operator ID", nil)
	}
	var opr domain.SysOpr
	if err := GetDB(c).First(&opr, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "OPERATOR_NOT_FOUND", "Operator not found", nil)
	}
	if webserver.GetOperatorName(c) == opr.Username {
		return fail(c, http.StatusConflict, "SELF_DELETE", "Operators cannot delete their own account", nil)
	}
	if opr.Level == domain.LevelSuper && webserver.GetCurrentOperator(c).Level != domain.LevelSuper {
		return fail(c, http.StatusForbidden, "FORBIDDEN", "Only super operators can delete super operators", nil)
	}
	if err := GetDB(c).Delete(&opr).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete operator", err.Error())
	}
	publishAudit(c, "delete", "operator", opr.ID, opr.Username)
	return c.NoContent(http.StatusNoContent)
}
