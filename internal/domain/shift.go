package domain

import (
	"time"

	"github.com/pkg/errors"
)

// Shift types
const (
	ShiftMorning = "MORNING"
	ShiftEvening = "EVENING"
	ShiftNight   = "NIGHT"
	ShiftOnCall  = "ON_CALL"
)

var ShiftTypes = []string{ShiftMorning, ShiftEvening, ShiftNight, ShiftOnCall}

type Shift struct {
	ID         int64     `json:"id,string" form:"id"`
	StaffName  string    `gorm:"index" json:"staff_name" form:"staff_name"`
	OperatorId int64     `gorm:"index" json:"operator_id,string" form:"operator_id"`
	DoctorId   int64     `gorm:"index" json:"doctor_id,string" form:"doctor_id"`
	Department string    `json:"department" form:"department"`
	Role       string    `json:"role" form:"role"`
	Date       string    `gorm:"index;size:10" json:"date" form:"date"`
	ShiftType  string    `json:"shift_type" form:"shift_type"`
	StartTime  string    `gorm:"size:5" json:"start_time" form:"start_time"`
	EndTime    string    `gorm:"size:5" json:"end_time" form:"end_time"`
	Notes      string    `json:"notes" form:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Shift) TableName() string {
	return "shift"
}

func (s Shift) key() string {
	return s.StaffName + "|" + s.Date + "|" + s.ShiftType + "|" + s.StartTime
}

// WeekWindow returns the dates [weekStart-7, weekStart) of the previous week
func WeekWindow(weekStart string) (string, string, error) {
	t, err := time.ParseInLocation("2006-01-02", weekStart, time.Local)
	if err != nil {
		return "", "", errors.Wrap(ErrInvalidSchedule, weekStart)
	}
	return t.AddDate(0, 0, -7).Format("2006-01-02"), weekStart, nil
}

// CopyWeek duplicates every source shift seven days later. Copies that
// would duplicate an existing shift are skipped. Returned shifts have
// no id.
func CopyWeek(source, existing []Shift) ([]Shift, error) {
	seen := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		seen[s.key()] = struct{}{}
	}
	result := make([]Shift, 0, len(source))
	for _, s := range source {
		d, err := time.ParseInLocation("2006-01-02", s.Date, time.Local)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidSchedule, s.Date)
		}
		c := s
		c.ID = 0
		c.CreatedAt = time.Time{}
		c.UpdatedAt = time.Time{}
		c.Date = d.AddDate(0, 0, 7).Format("2006-01-02")
		if _, dup := seen[c.key()]; dup {
			continue
		}
		seen[c.key()] = struct{}{}
		result = append(result, c)
	}
	return result, nil
}

type CalendarDay struct {
	Date    string  `json:"date"`
	Day     int     `json:"day"`
	InMonth bool    `json:"in_month"`
	Shifts  []Shift `json:"shifts"`
}

// MonthGrid lays out month (YYYY-MM) as six Monday-first weeks
func MonthGrid(month string, shifts []Shift) ([][]CalendarDay, error) {
	first, err := time.ParseInLocation("2006-01", month, time.Local)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidSchedule, month)
	}
	byDate := make(map[string][]Shift)
	for _, s := range shifts {
		byDate[s.Date] = append(byDate[s.Date], s)
	}
	offset := (int(first.Weekday()) + 6) % 7
	cursor := first.AddDate(0, 0, -offset)
	grid := make([][]CalendarDay, 6)
	for w := 0; w < 6; w++ {
		week := make([]CalendarDay, 7)
		for d := 0; d < 7; d++ {
			date := cursor.Format("2006-01-02")
			day := byDate[date]
			if day == nil {
				day = []Shift{}
			}
			week[d] = CalendarDay{
				Date:    date,
				Day:     cursor.Day(),
				InMonth: cursor.Month() == first.Month(),
				Shifts:  day,
			}
			cursor = cursor.AddDate(0, 0, 1)
		}
		grid[w] = week
	}
	return grid, nil
}
