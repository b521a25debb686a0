package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekWindow(t *testing.T) {
	from, to, err := WeekWindow("2024-03-04")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-26", from)
	assert.Equal(t, "2024-03-04", to)

	_, _, err = WeekWindow("next monday")
	assert.Error(t, err)
}

func TestCopyWeek(t *testing.T) {
	source := []Shift{
		{ID: 11, StaffName: "Asha", Date: "2024-02-26", ShiftType: ShiftMorning, StartTime: "08:00", EndTime: "14:00"},
		{ID: 12, StaffName: "Asha", Date: "2024-02-29", ShiftType: ShiftNight, StartTime: "22:00", EndTime: "06:00"},
		{ID: 13, StaffName: "Ravi", Date: "2024-03-03", ShiftType: ShiftEvening, StartTime: "14:00", EndTime: "22:00"},
	}
	existing := []Shift{
		{ID: 20, StaffName: "Ravi", Date: "2024-03-10", ShiftType: ShiftEvening, StartTime: "14:00", EndTime: "22:00"},
	}

	copies, err := CopyWeek(source, existing)
	require.NoError(t, err)
	require.Len(t, copies, 2)
	assert.Equal(t, "2024-03-04", copies[0].Date)
	assert.Equal(t, "2024-03-07", copies[1].Date, "leap day week shifts by seven days")
	for _, c := range copies {
		assert.Zero(t, c.ID)
	}
	// source rows are untouched
	assert.Equal(t, "2024-02-26", source[0].Date)

	again, err := CopyWeek(source, append(existing, copies...))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMonthGrid(t *testing.T) {
	grid, err := MonthGrid("2024-02", []Shift{{StaffName: "Asha", Date: "2024-02-14"}})
	require.NoError(t, err)
	require.Len(t, grid, 6)
	for _, w := range grid {
		require.Len(t, w, 7)
	}
	// February 2024 starts on a Thursday
	assert.Equal(t, "2024-01-29", grid[0][0].Date)
	assert.False(t, grid[0][0].InMonth)
	assert.Equal(t, "2024-02-01", grid[0][3].Date)
	assert.True(t, grid[0][3].InMonth)

	var found bool
	for _, w := range grid {
		for _, d := range w {
			if d.Date == "2024-02-14" {
				found = true
				assert.Len(t, d.Shifts, 1)
			} else {
				assert.NotNil(t, d.Shifts)
			}
		}
	}
	assert.True(t, found)

	_, err = MonthGrid("Feb", nil)
	assert.Error(t, err)
}
