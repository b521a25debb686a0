package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/config"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t     *testing.T
	app   *app.Application
	echo  *echo.Echo
	token string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.System.Workdir = t.TempDir()
	cfg.System.Debug = false
	cfg.Logger.FileEnable = false
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	a := app.NewApplication(&cfg)
	a.Init(&cfg)
	t.Cleanup(a.Release)

	webserver.Init(a)
	Init()

	var opr domain.SysOpr
	require.NoError(t, a.DB().Where("username = ?", app.SuperUsername).First(&opr).Error)
	token, _, err := webserver.CreateToken(cfg.Web.Secret, opr, time.Hour)
	require.NoError(t, err)
	return &testEnv{t: t, app: a, echo: webserver.Echo(), token: token}
}

func (env *testEnv) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, webserver.ApiPrefix+path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if env.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+env.token)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

// decodeData unmarshals the data member of a response envelope into v
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	require.NoError(t, json.Unmarshal(envelope.Data, v), string(envelope.Data))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func (env *testEnv) createPatient(first, last string) domain.Patient {
	env.t.Helper()
	rec := env.request(http.MethodPost, "/patients", map[string]interface{}{
		"first_name":    first,
		"last_name":     last,
		"gender":        "FEMALE",
		"date_of_birth": "1990-04-12",
		"phone":         "555-0101",
	})
	require.Equal(env.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p domain.Patient
	decodeData(env.t, rec, &p)
	return p
}

func (env *testEnv) createDoctor(name string) domain.Doctor {
	env.t.Helper()
	rec := env.request(http.MethodPost, "/doctors", map[string]interface{}{
		"name":             name,
		"specialization":   "General Medicine",
		"consultation_fee": "500",
	})
	require.Equal(env.t, http.StatusCreated, rec.Code, rec.Body.String())
	var d domain.Doctor
	decodeData(env.t, rec, &d)
	return d
}

func TestLoginAndCurrentOperator(t *testing.T) {
	env := newTestEnv(t)
	env.token = ""

	rec := env.request(http.MethodPost, "/auth/login", map[string]string{"username": app.SuperUsername, "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", errorCode(t, rec))

	rec = env.request(http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.request(http.MethodPost, "/auth/login", map[string]string{"username": app.SuperUsername, "password": app.DefaultPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &login)
	require.NotEmpty(t, login.Token)

	env.token = login.Token
	rec = env.request(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var opr domain.SysOpr
	decodeData(t, rec, &opr)
	assert.Equal(t, app.SuperUsername, opr.Username)
}

// createOperator adds an operator through the API and returns a client
// signed in as that operator
func (env *testEnv) createOperator(username, level string) (domain.SysOpr, *testEnv) {
	env.t.Helper()
	rec := env.request(http.MethodPost, "/system/operators", map[string]string{
		"username": username,
		"password": "secret123",
		"realname": "Test " + username,
		"level":    level,
	})
	require.Equal(env.t, http.StatusCreated, rec.Code, rec.Body.String())
	var opr domain.SysOpr
	decodeData(env.t, rec, &opr)

	rec = env.request(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": "secret123"})
	require.Equal(env.t, http.StatusOK, rec.Code, rec.Body.String())
	var login struct {
		Token string `json:"token"`
	}
	decodeData(env.t, rec, &login)
	client := *env
	client.token = login.Token
	return opr, &client
}

func TestRevokedOperatorLosesAccess(t *testing.T) {
	env := newTestEnv(t)

	disabled, client := env.createOperator("ward1", domain.LevelAdmin)
	rec := client.request(http.MethodGet, "/system/operators", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.request(http.MethodPut, fmt.Sprintf("/system/operators/%d", disabled.ID), map[string]string{"status": common.DISABLED})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = client.request(http.MethodGet, "/system/operators", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = client.request(http.MethodGet, "/patients", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	deleted, client := env.createOperator("ward2", domain.LevelAdmin)
	rec = env.request(http.MethodDelete, fmt.Sprintf("/system/operators/%d", deleted.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = client.request(http.MethodPost, "/system/operators", map[string]string{
		"username": "ghost1",
		"password": "secret123",
		"realname": "Ghost",
		"level":    domain.LevelAdmin,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var count int64
	env.app.DB().Model(&domain.SysOpr{}).Where("username = ?", "ghost1").Count(&count)
	assert.Zero(t, count)

	demoted, client := env.createOperator("ward3", domain.LevelAdmin)
	rec = env.request(http.MethodPut, fmt.Sprintf("/system/operators/%d", demoted.ID), map[string]string{"level": domain.LevelReception})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = client.request(http.MethodGet, "/system/operators", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = client.request(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me domain.SysOpr
	decodeData(t, rec, &me)
	assert.Equal(t, domain.LevelReception, me.Level)
}

func TestPatientLifecycle(t *testing.T) {
	env := newTestEnv(t)

	p := env.createPatient("  jane ", "DOE")
	assert.Equal(t, "MRN-000001", p.Mrn)
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "Doe", p.LastName)
	assert.Equal(t, domain.PatientActive, p.Status)

	second := env.createPatient("john", "smith")
	assert.Equal(t, "MRN-000002", second.Mrn)

	rec := env.request(http.MethodGet, "/patients?q=smi", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, int64(1), list.Meta.Total)

	rec = env.request(http.MethodPut, fmt.Sprintf("/patients/%d", p.ID), map[string]string{"phone": "555-9999"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated domain.Patient
	decodeData(t, rec, &updated)
	assert.Equal(t, "555-9999", updated.Phone)

	rec = env.request(http.MethodDelete, fmt.Sprintf("/patients/%d", p.ID), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.request(http.MethodGet, fmt.Sprintf("/patients/%d", p.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var logs int64
	env.app.DB().Model(&domain.SysOprLog{}).Where("entity = ?", "patient").Count(&logs)
	assert.Equal(t, int64(4), logs)
}

func TestPatientValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(http.MethodPost, "/patients", map[string]string{"last_name": "Doe", "gender": "UNKNOWN"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Error)
	details, ok := resp.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, details, "FirstName")
	assert.Contains(t, details, "Gender")

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	rec = env.request(http.MethodPost, "/patients", map[string]string{"first_name": "Baby", "gender": "MALE", "date_of_birth": tomorrow})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuditLogFilter(t *testing.T) {
	env := newTestEnv(t)
	env.createPatient("Ann", "Lee")
	env.createDoctor("Dr. House")

	rec := env.request(http.MethodGet, "/audit-logs?entity=doctor&action=create", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rows []domain.SysOprLog
	decodeData(t, rec, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, app.SuperUsername, rows[0].OprName)

	rec = env.request(http.MethodGet, "/audit-logs?from=not-a-date", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
