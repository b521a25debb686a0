package adminapi

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
)

const maxExportRows = 50000

type patientExport struct {
	Mrn         string `csv:"MRN"`
	FirstName   string `csv:"First Name"`
	LastName    string `csv:"Last Name"`
	DateOfBirth string `csv:"Date of Birth"`
	Gender      string `csv:"Gender"`
	Phone       string `csv:"Phone"`
	Email       string `csv:"Email"`
	BloodGroup  string `csv:"Blood Group"`
	Status      string `csv:"Status"`
	Registered  string `csv:"Registered"`
}

type appointmentExport struct {
	Date      string `csv:"Date"`
	StartTime string `csv:"Time"`
	Duration  int    `csv:"Minutes"`
	Mrn       string `csv:"MRN"`
	Patient   string `csv:"Patient"`
	Doctor    string `csv:"Doctor"`
	Type      string `csv:"Type"`
	Status    string `csv:"Status"`
	TokenNo   int    `csv:"Token"`
	Reason    string `csv:"Reason"`
}

type invoiceExport struct {
	Number    string `csv:"Invoice"`
	IssueDate string `csv:"Issue Date"`
	DueDate   string `csv:"Due Date"`
	Mrn       string `csv:"MRN"`
	Patient   string `csv:"Patient"`
	Subtotal  string `csv:"Subtotal"`
	Discount  string `csv:"Discount"`
	Tax       string `csv:"Tax"`
	Total     string `csv:"Total"`
	Paid      string `csv:"Paid"`
	Balance   string `csv:"Balance"`
	Status    string `csv:"Status"`
}

func registerExportRoutes() {
	webserver.ApiGET("/export/:entity", ExportEntity)
}

// ExportEntity downloads patients, appointments or invoices as csv or xlsx
// @Summary export records
// @Tags Reports
// @Param entity path string true "patients, appointments or invoices"
// @Param format query string false "csv (default) or xlsx"
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {file} file
// @Router /api/v1/export/{entity} [get]
func ExportEntity(c echo.Context) error {
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		return fail(c, http.StatusBadRequest, "INVALID_FORMAT", "Format must be csv or xlsx", format)
	}

	var (
		records interface{}
		err     error
	)
	entity := c.Param("entity")
	switch entity {
	case "patients":
		records, err = exportPatients(c)
	case "appointments":
		records, err = exportAppointments(c)
	case "invoices":
		records, err = exportInvoices(c)
	default:
		return fail(c, http.StatusNotFound, "UNKNOWN_ENTITY", "Unknown export entity", entity)
	}
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to load records", err.Error())
	}

	filename := fmt.Sprintf("%s-%s.%s", entity, time.Now().Format("20060102-150405"), format)
	publishAudit(c, "export", entity, 0, map[string]string{"format": format})
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	if format == "xlsx" {
		c.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Response().WriteHeader(http.StatusOK)
		return writeXlsx(c.Response(), entity, records)
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	c.Response().WriteHeader(http.StatusOK)
	return gocsv.Marshal(records, c.Response())
}

func exportPatients(c echo.Context) ([]patientExport, error) {
	query := dateRangeScope(c, GetDB(c).Model(&domain.Patient{}), "DATE(created_at)")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []domain.Patient
	if err := query.Order("mrn ASC").Limit(maxExportRows).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]patientExport, 0, len(rows))
	for _, p := range rows {
		out = append(out, patientExport{
			Mrn:         p.Mrn,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: p.DateOfBirth,
			Gender:      p.Gender,
			Phone:       p.Phone,
			Email:       p.Email,
			BloodGroup:  p.BloodGroup,
			Status:      p.Status,
			Registered:  p.CreatedAt.Format("2006-01-02"),
		})
	}
	return out, nil
}

func exportAppointments(c echo.Context) ([]appointmentExport, error) {
	query := dateRangeScope(c, GetDB(c).Model(&domain.Appointment{}), "date")
	if id := queryID(c, "doctor_id"); id > 0 {
		query = query.Where("doctor_id = ?", id)
	}
	var rows []domain.Appointment
	if err := query.Order("date ASC, start_time ASC").Limit(maxExportRows).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]appointmentExport, 0, len(rows))
	for _, e := range enrichAppointments(GetDB(c), rows) {
		out = append(out, appointmentExport{
			Date:      e.Date,
			StartTime: e.StartTime,
			Duration:  e.Duration,
			Mrn:       e.PatientMrn,
			Patient:   e.PatientName,
			Doctor:    e.DoctorName,
			Type:      e.Type,
			Status:    e.Status,
			TokenNo:   e.TokenNo,
			Reason:    e.Reason,
		})
	}
	return out, nil
}

func exportInvoices(c echo.Context) ([]invoiceExport, error) {
	query := dateRangeScope(c, GetDB(c).Model(&domain.Invoice{}), "issue_date")
	if status := strings.TrimSpace(c.QueryParam("status")); status != "" {
		query = query.Where("status = ?", status)
	}
	var rows []domain.Invoice
	if err := query.Order("issue_date ASC, number ASC").Limit(maxExportRows).Find(&rows).Error; err != nil {
		return nil, err
	}
	patientIds := make([]int64, 0, len(rows))
	for _, inv := range rows {
		patientIds = append(patientIds, inv.PatientId)
	}
	patients := make(map[int64]domain.Patient)
	if len(patientIds) > 0 {
		var ps []domain.Patient
		GetDB(c).Unscoped().Where("id IN ?", patientIds).Find(&ps)
		for _, p := range ps {
			patients[p.ID] = p
		}
	}
	out := make([]invoiceExport, 0, len(rows))
	for _, inv := range rows {
		p := patients[inv.PatientId]
		out = append(out, invoiceExport{
			Number:    inv.Number,
			IssueDate: inv.IssueDate,
			DueDate:   inv.DueDate,
			Mrn:       p.Mrn,
			Patient:   p.FullName(),
			Subtotal:  inv.Subtotal.StringFixed(2),
			Discount:  inv.DiscountAmount.StringFixed(2),
			Tax:       inv.TaxAmount.StringFixed(2),
			Total:     inv.TotalAmount.StringFixed(2),
			Paid:      inv.PaidAmount.StringFixed(2),
			Balance:   inv.Balance().StringFixed(2),
			Status:    inv.Status,
		})
	}
	return out, nil
}

// writeXlsx renders a slice of csv tagged structs as a single sheet workbook
func writeXlsx(w http.ResponseWriter, sheet string, records interface{}) error {
	xlsx := excelize.NewFile()
	xlsx.SetSheetName("Sheet1", sheet)

	headers, rows := tableOf(records)
	for col, h := range headers {
		xlsx.SetCellValue(sheet, cellName(col, 1), h)
	}
	for r, row := range rows {
		for col, v := range row {
			xlsx.SetCellValue(sheet, cellName(col, r+2), v)
		}
	}
	return xlsx.Write(w)
}

// tableOf flattens a slice of structs into csv tag headers and cell values
func tableOf(records interface{}) ([]string, [][]interface{}) {
	v := reflect.ValueOf(records)
	if v.Kind() != reflect.Slice {
		return nil, nil
	}
	t := v.Type().Elem()
	headers := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name := t.Field(i).Tag.Get("csv")
		if name == "" {
			name = t.Field(i).Name
		}
		headers = append(headers, name)
	}
	rows := make([][]interface{}, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		row := make([]interface{}, 0, item.NumField())
		for j := 0; j < item.NumField(); j++ {
			row = append(row, item.Field(j).Interface())
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// cellName converts a zero based column and a one based row into A1 notation
func cellName(col, row int) string {
	name := ""
	for col >= 0 {
		name = string(rune('A'+col%26)) + name
		col = col/26 - 1
	}
	return fmt.Sprintf("%s%d", name, row)
}
