package adminapi

import (
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/shopspring/decimal"
)

type expensePayload struct {
	Date          string          `json:"date" validate:"required,max=32"`
	Category      string          `json:"category" validate:"required,max=50"`
	Amount        decimal.Decimal `json:"amount"`
	Vendor        string          `json:"vendor" validate:"omitempty,max=200"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=CASH CARD BANK_TRANSFER INSURANCE OTHER"`
	Description   string          `json:"description" validate:"omitempty,max=1000"`
}

type categoryTotal struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

func registerExpenseRoutes() {
	webserver.ApiGET("/expenses", ListExpenses)
	webserver.ApiGET("/expenses/summary", ExpenseSummary)
	webserver.ApiGET("/expenses/:id", GetExpense)
	webserver.ApiPOST("/expenses", CreateExpense, webserver.RequireLevel(domain.LevelSuper, domain.LevelAdmin, domain.LevelAccountant))
	webserver.ApiPUT("/expenses/:id", UpdateExpense, webserver.RequireLevel(domain.LevelSuper, domain.LevelAdmin, domain.LevelAccountant))
	webserver.ApiDELETE("/expenses/:id", DeleteExpense, webserver.RequireLevel(domain.LevelSuper, domain.LevelAdmin, domain.LevelAccountant))
}

func ListExpenses(c echo.Context) error {
	page, pageSize := parsePagination(c)
	query := GetDB(c).Model(&domain.Expense{})
	query = dateRangeScope(c, query, "date")
	if category := strings.TrimSpace(c.QueryParam("category")); category != "" {
		query = query.Where("category = ?", strings.ToUpper(category))
	}
	query = searchScope(query, c.QueryParam("q"), "vendor", "description")
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expenses", err.Error())
	}
	var rows []domain.Expense
	query = sortScope(c, query, []string{"date", "amount", "category", "created_at"}, "date DESC")
	if err := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expenses", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

func GetExpense(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid expense ID", nil)
	}
	var e domain.Expense
	if err := GetDB(c).First(&e, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "EXPENSE_NOT_FOUND", "Expense not found", nil)
	}
	return ok(c, e)
}

func CreateExpense(c echo.Context) error {
	var payload expensePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	e := domain.Expense{ID: common.UUIDint64(), CreatedBy: webserver.GetOperatorName(c)}
	if msg := applyExpensePayload(&e, payload); msg != "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
	}
	if err := GetDB(c).Create(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to create expense", err.Error())
	}
	publishAudit(c, "create", "expense", e.ID, map[string]string{"amount": e.Amount.StringFixed(2), "category": e.Category})
	return created(c, e)
}

func UpdateExpense(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid expense ID", nil)
	}
	var e domain.Expense
	if err := GetDB(c).First(&e, id).Error; err != nil {
		return fail(c, http.StatusNotFound, "EXPENSE_NOT_FOUND", "Expense not found", nil)
	}
	var payload expensePayload
	if okay, err := bindAndValidate(c, &payload); !okay {
		return err
	}
	if msg := applyExpensePayload(&e, payload); msg != "" {
		return fail(c, http.StatusBadRequest, "VALIDATION_ERROR", msg, nil)
	}
	if err := GetDB(c).Save(&e).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to update expense", err.Error())
	}
	publishAudit(c, "update", "expense", e.ID, map[string]string{"amount": e.Amount.StringFixed(2), "category": e.Category})
	return ok(c, e)
}

func DeleteExpense(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid expense ID", nil)
	}
	res := GetDB(c).Delete(&domain.Expense{}, id)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DELETE_FAILED", "Failed to delete expense", res.Error.Error())
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "EXPENSE_NOT_FOUND", "Expense not found", nil)
	}
	publishAudit(c, "delete", "expense", id, nil)
	return c.NoContent(http.StatusNoContent)
}

// ExpenseSummary totals expenses per category
// @Summary expense totals by category
// @Tags Expenses
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} Response
// @Router /api/v1/expenses/summary [get]
func ExpenseSummary(c echo.Context) error {
	var rows []domain.Expense
	if err := dateRangeScope(c, GetDB(c).Model(&domain.Expense{}), "date").Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query expenses", err.Error())
	}
	byCategory := make(map[string]*categoryTotal)
	grand := decimal.Zero
	for _, e := range rows {
		ct, exists := byCategory[e.Category]
		if !exists {
			ct = &categoryTotal{Category: e.Category, Total: decimal.Zero}
			byCategory[e.Category] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(e.Amount)
		grand = grand.Add(e.Amount)
	}
	categories := make([]categoryTotal, 0, len(byCategory))
	for _, ct := range byCategory {
		categories = append(categories, *ct)
	}
	sort.Slice(categories, func(i, j int) bool {
		if !categories[i].Total.Equal(categories[j].Total) {
			return categories[i].Total.GreaterThan(categories[j].Total)
		}
		return categories[i].Category < categories[j].Category
	})
	return ok(c, map[string]interface{}{
		"from":       c.QueryParam("from"),
		"to":         c.QueryParam("to"),
		"count":      len(rows),
		"total":      common.Round2(grand),
		"categories": categories,
	})
}

// applyExpensePayload copies payload into e, returning a validation message on bad input
func applyExpensePayload(e *domain.Expense, p expensePayload) string {
	date, err := common.NormalizeDate(p.Date)
	if err != nil {
		return "Invalid expense date"
	}
	if !p.Amount.IsPositive() {
		return "Amount must be greater than zero"
	}
	e.Date = date
	e.Category = strings.ToUpper(strings.TrimSpace(p.Category))
	e.Amount = common.Round2(p.Amount)
	e.Vendor = strings.TrimSpace(p.Vendor)
	e.PaymentMethod = common.If(p.PaymentMethod == "", domain.PayCash, p.PaymentMethod).(string)
	e.Description = p.Description
	return ""
}
