package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"go.uber.org/zap"
)

type loginPayload struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type passwordPayload struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=128"`
}

func registerAuthRoutes() {
	webserver.ApiPOST("/auth/login", Login)
	webserver.ApiGET("/auth/me", CurrentOperator)
	webserver.ApiPUT("/auth/password", ChangePassword)
}

// Login verifies operator credentials and issues a token
// @Summary operator login
// @Tags Auth
// @Param credentials body loginPayload true "Credentials"
// @Success 200 {object} Response
// @Router /api/v1/auth/login [post]
func Login(c echo.Context) error {
	var payload loginPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}

	var opr domain.SysOpr
	if err := GetDB(c).Where("username = ?", payload.Username).First(&opr).Error; err != nil {
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	if !common.CheckPassword(opr.Password, payload.Password) {
		zap.L().Warn("login failed", zap.String("namespace", "auth"), zap.String("username", payload.Username), zap.String("ip", c.RealIP()))
		return fail(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
	}
	if opr.Status == common.DISABLED {
		return fail(c, http.StatusForbidden, "ACCOUNT_DISABLED", "Operator account is disabled", nil)
	}

	cfg := GetAppContext(c).Config()
	token, expires, err := webserver.CreateToken(cfg.Web.Secret, opr, time.Duration(cfg.Web.TokenTTL)*time.Hour)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "TOKEN_ERROR", "Failed to issue token", err.Error())
	}

	opr.LastLogin = time.Now()
	GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("last_login", opr.LastLogin)

	GetAppContext(c).Publish(app.TopicAudit, app.AuditEvent{
		Operator: opr.Username,
		Ip:       c.RealIP(),
		Action:   "login",
		Entity:   "operator",
		EntityId: opr.ID,
	})
	return ok(c, map[string]interface{}{
		"token":      token,
		"expires_at": expires,
		"operator":   opr,
	})
}

// CurrentOperator returns the signed-in operator
// @Summary current operator
// @Tags Auth
// @Success 200 {object} domain.SysOpr
// @Router /api/v1/auth/me [get]
func CurrentOperator(c echo.Context) error {
	opr, err := loadCurrentOperator(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Operator not found", nil)
	}
	return ok(c, opr)
}

// ChangePassword updates the password of the signed-in operator
// @Summary change own password
// @Tags Auth
// @Param body body passwordPayload true "Passwords"
// @Success 200 {object} Response
// @Router /api/v1/auth/password [put]
func ChangePassword(c echo.Context) error {
	var payload passwordPayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	opr, err := loadCurrentOperator(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Operator not found", nil)
	}
	if !common.CheckPassword(opr.Password, payload.OldPassword) {
		return fail(c, http.StatusBadRequest, "INVALID_PASSWORD", "Current password is incorrect", nil)
	}
	hashed, err := common.HashPassword(payload.NewPassword)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to hash password", err.Error())
	}
	if err := GetDB(c).Model(&domain.SysOpr{}).Where("id = ?", opr.ID).Update("password", hashed).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update password", err.Error())
	}
	publishAudit(c, "change_password", "operator", opr.ID, nil)
	return ok(c, map[string]interface{}{"id": strconv.FormatInt(opr.ID, 10)})
}

func loadCurrentOperator(c echo.Context) (*domain.SysOpr, error) {
	opr := webserver.GetCurrentOperator(c)
	if opr == nil {
		return nil, echo.ErrUnauthorized
	}
	return opr, nil
}
