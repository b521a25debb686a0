package adminapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/app"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Init registers every admin api route on the web server
func Init() {
	registerAuthRoutes()
	registerOperatorRoutes()
	registerSettingsRoutes()
	registerPatientRoutes()
	registerDoctorRoutes()
	registerServiceRoutes()
	registerAppointmentRoutes()
	registerQueueRoutes()
	registerInvoiceRoutes()
	registerWaitlistRoutes()
	registerShiftRoutes()
	registerEquipmentRoutes()
	registerFeedbackRoutes()
	registerReferralRoutes()
	registerSurgeryRoutes()
	registerFollowUpRoutes()
	registerDocumentRoutes()
	registerExpenseRoutes()
	registerNotificationRoutes()
	registerAuditRoutes()
	registerSchedulerRoutes()
	registerReportRoutes()
	registerExportRoutes()
	registerMetricsRoutes()
}

// Response envelopes, also referenced by the swagger annotations
type Response struct {
	Data interface{} `json:"data"`
}

type ListMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

type ListResponse struct {
	Data interface{} `json:"data"`
	Meta ListMeta    `json:"meta"`
}

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Data: data})
}

func created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, ListResponse{
		Data: data,
		Meta: ListMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, details interface{}) error {
	return c.JSON(status, ErrorResponse{Error: code, Message: message, Details: details})
}

// parsePagination reads page and pageSize (or perPage) query parameters
func parsePagination(c echo.Context) (int, int) {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.QueryParam("pageSize"))
	if size == 0 {
		size, _ = strconv.Atoi(c.QueryParam("perPage"))
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

// queryID returns the id in query parameter name, 0 when absent or malformed
func queryID(c echo.Context, name string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(c.QueryParam(name)), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func GetAppContext(c echo.Context) app.AppContext {
	return webserver.GetAppContext(c)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB()
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// searchScope adds a case-insensitive substring match of q over columns
func searchScope(db *gorm.DB, q string, columns ...string) *gorm.DB {
	q = strings.TrimSpace(q)
	if q == "" || len(columns) == 0 {
		return db
	}
	postgres := strings.EqualFold(db.Name(), "postgres")
	clauses := make([]string, 0, len(columns))
	args := make([]interface{}, 0, len(columns))
	for _, col := range columns {
		if postgres {
			clauses = append(clauses, col+" ILIKE ?")
			args = append(args, "%"+q+"%")
		} else {
			clauses = append(clauses, "LOWER("+col+") LIKE ?")
			args = append(args, "%"+strings.ToLower(q)+"%")
		}
	}
	return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

// sortScope orders by a whitelisted column, falling back to def
func sortScope(c echo.Context, db *gorm.DB, allowed []string, def string) *gorm.DB {
	field := c.QueryParam("sort")
	order := strings.ToUpper(c.QueryParam("order"))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	for _, f := range allowed {
		if f == field {
			return db.Order(field + " " + order)
		}
	}
	return db.Order(def)
}

// dateRangeScope filters column between the from and to query parameters
func dateRangeScope(c echo.Context, db *gorm.DB, column string) *gorm.DB {
	if from := strings.TrimSpace(c.QueryParam("from")); from != "" {
		db = db.Where(column+" >= ?", from)
	}
	if to := strings.TrimSpace(c.QueryParam("to")); to != "" {
		db = db.Where(column+" <= ?", to)
	}
	return db
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			field := fe.Field()
			switch fe.Tag() {
			case "required":
				details[field] = "is required"
			case "oneof":
				details[field] = "must be one of: " + fe.Param()
			case "date":
				details[field] = "must be a YYYY-MM-DD date"
			case "clock":
				details[field] = "must be a HH:MM time"
			default:
				details[field] = "failed " + fe.Tag() + " " + fe.Param()
			}
		}
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Request validation failed", details)
	}
	return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
}

// bindAndValidate decodes the request body into payload and validates it.
// It writes the error response itself and reports whether to continue.
func bindAndValidate(c echo.Context, payload interface{}) (bool, error) {
	if err := c.Bind(payload); err != nil {
		return false, fail(c, http.StatusBadRequest, "INVALID_REQUEST", "Unable to parse request parameters", err.Error())
	}
	if err := c.Validate(payload); err != nil {
		return false, handleValidationError(c, err)
	}
	return true, nil
}

// domainError maps business rule violations onto api errors
func domainError(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidTransition):
		return fail(c, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidStatus):
		return fail(c, http.StatusBadRequest, "INVALID_STATUS", err.Error(), nil)
	case errors.Is(err, domain.ErrPriorityBounds):
		return fail(c, http.StatusConflict, "PRIORITY_AT_LIMIT", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidPriority):
		return fail(c, http.StatusBadRequest, "INVALID_PRIORITY", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidDiscount),
		errors.Is(err, domain.ErrInvalidTaxRate),
		errors.Is(err, domain.ErrInvalidItem):
		return fail(c, http.StatusBadRequest, "INVALID_INVOICE", err.Error(), nil)
	case errors.Is(err, domain.ErrOverpayment):
		return fail(c, http.StatusBadRequest, "OVERPAYMENT", err.Error(), nil)
	case errors.Is(err, domain.ErrInvoiceClosed):
		return fail(c, http.StatusConflict, "INVOICE_CLOSED", err.Error(), nil)
	case errors.Is(err, domain.ErrSlotConflict):
		return fail(c, http.StatusConflict, "SLOT_CONFLICT", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidSchedule):
		return fail(c, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error(), nil)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Record not found", nil)
	}
	zap.L().Error(fallback, zap.String("path", c.Path()), zap.Error(err))
	return fail(c, http.StatusInternalServerError, fallback, err.Error(), nil)
}

// publishAudit records a mutating operation in the audit log
func publishAudit(c echo.Context, action, entity string, id int64, detail interface{}) {
	GetAppContext(c).Publish(app.TopicAudit, app.AuditEvent{
		Operator: webserver.GetOperatorName(c),
		Ip:       c.RealIP(),
		Action:   action,
		Entity:   entity,
		EntityId: id,
		Detail:   detail,
	})
}
