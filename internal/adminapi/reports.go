package adminapi

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/internal/webserver"
	"github.com/medicore/hms/pkg/common"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Dashboard struct {
	Patients            int64            `json:"patients"`
	Doctors             int64            `json:"doctors"`
	TodayAppointments   map[string]int64 `json:"today_appointments"`
	QueueLength         int64            `json:"queue_length"`
	TodayRevenue        decimal.Decimal  `json:"today_revenue"`
	MonthRevenue        decimal.Decimal  `json:"month_revenue"`
	Outstanding         decimal.Decimal  `json:"outstanding"`
	UnreadNotifications int64            `json:"unread_notifications"`
}

type RevenueDay struct {
	Date     string          `json:"date"`
	Payments int             `json:"payments"`
	Total    decimal.Decimal `json:"total"`
}

type RevenueReport struct {
	From     string                     `json:"from"`
	To       string                     `json:"to"`
	Total    decimal.Decimal            `json:"total"`
	Days     []RevenueDay               `json:"days"`
	ByMethod map[string]decimal.Decimal `json:"by_method"`
}

type DoctorAppointmentStats struct {
	DoctorId       int64          `json:"doctor_id,string"`
	DoctorName     string         `json:"doctor_name"`
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	CompletionRate float64        `json:"completion_rate"`
	MeanWait       *float64       `json:"mean_wait_minutes"`
}

func registerReportRoutes() {
	webserver.ApiGET("/dashboard", GetDashboard)
	webserver.ApiGET("/reports/revenue", RevenueReportHandler, webserver.RequireLevel(domain.LevelSuper, domain.LevelAdmin, domain.LevelAccountant))
	webserver.ApiGET("/reports/appointments", AppointmentReportHandler)
}

// GetDashboard collects the headline numbers of the day
// @Summary dashboard
// @Tags Reports
// @Success 200 {object} Dashboard
// @Router /api/v1/dashboard [get]
func GetDashboard(c echo.Context) error {
	g, ctx := errgroup.WithContext(c.Request().Context())
	db := GetDB(c).WithContext(ctx)
	today := common.Today()
	now := time.Now()
	dayStart, dayEnd := common.DayRange(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local)

	var d Dashboard
	g.Go(func() error {
		return db.Model(&domain.Patient{}).Count(&d.Patients).Error
	})
	g.Go(func() error {
		return db.Model(&domain.Doctor{}).Where("status = ?", domain.DoctorActive).Count(&d.Doctors).Error
	})
	g.Go(func() error {
		var rows []struct {
			Status string
			Total  int64
		}
		if err := db.Model(&domain.Appointment{}).Select("status, count(*) as total").
			Where("date = ?", today).Group("status").Scan(&rows).Error; err != nil {
			return err
		}
		d.TodayAppointments = make(map[string]int64, len(rows))
		for _, r := range rows {
			d.TodayAppointments[r.Status] = r.Total
		}
		return nil
	})
	g.Go(func() error {
		return db.Model(&domain.Appointment{}).Where("date = ? AND status = ?", today, domain.ApptWaiting).Count(&d.QueueLength).Error
	})
	g.Go(func() error {
		var payments []domain.Payment
		if err := db.Select("amount", "paid_at").Where("paid_at >= ?", monthStart).Find(&payments).Error; err != nil {
			return err
		}
		d.TodayRevenue, d.MonthRevenue = decimal.Zero, decimal.Zero
		for _, p := range payments {
			d.MonthRevenue = d.MonthRevenue.Add(p.Amount)
			if !p.PaidAt.Before(dayStart) && p.PaidAt.Before(dayEnd) {
				d.TodayRevenue = d.TodayRevenue.Add(p.Amount)
			}
		}
		return nil
	})
	g.Go(func() error {
		var invoices []domain.Invoice
		if err := db.Select("total_amount", "paid_amount").
			Where("status IN ?", []string{domain.InvoicePending, domain.InvoicePartial}).Find(&invoices).Error; err != nil {
			return err
		}
		d.Outstanding = decimal.Zero
		for _, inv := range invoices {
			d.Outstanding = d.Outstanding.Add(inv.Balance())
		}
		return nil
	})
	g.Go(func() error {
		return db.Model(&domain.Notification{}).Where("is_read = ?", false).Count(&d.UnreadNotifications).Error
	})

	if err := g.Wait(); err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to build dashboard", err.Error())
	}
	return ok(c, d)
}

// reportWindow reads from/to, defaulting to the current month
func reportWindow(c echo.Context) (string, string, error) {
	now := time.Now()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).Format(common.DateLayout)
	to := now.Format(common.DateLayout)
	var err error
	if v := strings.TrimSpace(c.QueryParam("from")); v != "" {
		if from, err = common.NormalizeDate(v); err != nil {
			return "", "", err
		}
	}
	if v := strings.TrimSpace(c.QueryParam("to")); v != "" {
		if to, err = common.NormalizeDate(v); err != nil {
			return "", "", err
		}
	}
	return from, to, nil
}

// RevenueReportHandler sums payments per day and per method
// @Summary revenue report
// @Tags Reports
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} RevenueReport
// @Router /api/v1/reports/revenue [get]
func RevenueReportHandler(c echo.Context) error {
	from, to, err := reportWindow(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid report window", err.Error())
	}
	start, _ := common.ParseDate(from)
	end, _ := common.ParseDate(to)
	_, end = common.DayRange(end)

	var payments []domain.Payment
	if err := GetDB(c).Where("paid_at >= ? AND paid_at < ?", start, end).Order("paid_at ASC").Find(&payments).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query payments", err.Error())
	}

	report := RevenueReport{From: from, To: to, Total: decimal.Zero, Days: []RevenueDay{}, ByMethod: map[string]decimal.Decimal{}}
	days := make(map[string]*RevenueDay)
	for _, p := range payments {
		key := p.PaidAt.In(time.Local).Format(common.DateLayout)
		day, exists := days[key]
		if !exists {
			day = &RevenueDay{Date: key, Total: decimal.Zero}
			days[key] = day
		}
		day.Payments++
		day.Total = day.Total.Add(p.Amount)
		report.ByMethod[p.Method] = report.ByMethod[p.Method].Add(p.Amount)
		report.Total = report.Total.Add(p.Amount)
	}
	for _, day := range days {
		report.Days = append(report.Days, *day)
	}
	sort.Slice(report.Days, func(i, j int) bool { return report.Days[i].Date < report.Days[j].Date })
	return ok(c, report)
}

// AppointmentReportHandler summarises appointments per doctor
// @Summary appointment report
// @Tags Reports
// @Param from query string false "From date"
// @Param to query string false "To date"
// @Success 200 {object} Response
// @Router /api/v1/reports/appointments [get]
func AppointmentReportHandler(c echo.Context) error {
	from, to, err := reportWindow(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_DATE", "Invalid report window", err.Error())
	}
	var rows []domain.Appointment
	if err := GetDB(c).Where("date >= ? AND date <= ?", from, to).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query appointments", err.Error())
	}
	return ok(c, map[string]interface{}{
		"from":    from,
		"to":      to,
		"total":   len(rows),
		"doctors": appointmentStats(enrichAppointments(GetDB(c), rows)),
	})
}

func appointmentStats(entries []domain.QueueEntry) []DoctorAppointmentStats {
	byDoctor := make(map[int64]*DoctorAppointmentStats)
	waits := make(map[int64]stats.Float64Data)
	for _, e := range entries {
		s, exists := byDoctor[e.DoctorId]
		if !exists {
			s = &DoctorAppointmentStats{DoctorId: e.DoctorId, DoctorName: e.DoctorName, ByStatus: map[string]int{}}
			byDoctor[e.DoctorId] = s
		}
		s.Total++
		s.ByStatus[e.Status]++
		if w, has := e.WaitMinutes(); has {
			waits[e.DoctorId] = append(waits[e.DoctorId], w)
		}
	}
	result := make([]DoctorAppointmentStats, 0, len(byDoctor))
	for id, s := range byDoctor {
		// cancelled appointments never had a chance to complete
		if base := s.Total - s.ByStatus[domain.ApptCancelled]; base > 0 {
			rate, _ := stats.Round(float64(s.ByStatus[domain.ApptCompleted])/float64(base)*100, 2)
			s.CompletionRate = rate
		}
		if len(waits[id]) > 0 {
			mean, err := stats.Mean(waits[id])
			if err == nil {
				mean, _ = stats.Round(mean, 1)
				s.MeanWait = &mean
			}
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].DoctorName < result[j].DoctorName
	})
	return result
}
