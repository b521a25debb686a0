package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppointmentTransitions(t *testing.T) {
	statuses := []string{ApptScheduled, ApptWaiting, ApptInProgress, ApptCompleted, ApptCancelled, ApptNoShow}
	allowed := map[string]bool{
		"SCHEDULED>WAITING":     true,
		"SCHEDULED>CANCELLED":   true,
		"SCHEDULED>NO_SHOW":     true,
		"WAITING>IN_PROGRESS":   true,
		"WAITING>CANCELLED":     true,
		"WAITING>NO_SHOW":       true,
		"IN_PROGRESS>COMPLETED": true,
		"IN_PROGRESS>CANCELLED": true,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			assert.Equal(t, allowed[from+">"+to], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestAppointmentTransitionStamps(t *testing.T) {
	now := time.Date(2024, 5, 2, 9, 15, 0, 0, time.Local)
	a := &Appointment{Status: ApptScheduled}

	require.NoError(t, a.Transition(ApptWaiting, now))
	require.NotNil(t, a.CheckedInAt)
	require.NoError(t, a.Transition(ApptInProgress, now.Add(12*time.Minute)))
	require.NotNil(t, a.StartedAt)

	wait, ok := a.WaitMinutes()
	assert.True(t, ok)
	assert.Equal(t, 12.0, wait)

	require.NoError(t, a.Transition(ApptCompleted, now.Add(30*time.Minute)))
	assert.Equal(t, ApptCompleted, a.Status)
	require.NotNil(t, a.CompletedAt)

	err := a.Transition(ApptWaiting, now)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, ApptCompleted, a.Status)

	err = a.Transition("ARRIVED", now)
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}

func TestFindConflict(t *testing.T) {
	existing := []Appointment{
		{ID: 1, Date: "2024-05-02", StartTime: "09:00", Duration: 30, Status: ApptScheduled},
		{ID: 2, Date: "2024-05-02", StartTime: "10:00", Duration: 30, Status: ApptCancelled},
		{ID: 3, Date: "2024-05-03", StartTime: "11:00", Duration: 30, Status: ApptScheduled},
	}

	c, err := FindConflict(Appointment{Date: "2024-05-02", StartTime: "09:15", Duration: 30}, existing)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(1), c.ID)

	c, err = FindConflict(Appointment{Date: "2024-05-02", StartTime: "09:30", Duration: 30}, existing)
	require.NoError(t, err)
	assert.Nil(t, c, "back to back bookings do not overlap")

	c, err = FindConflict(Appointment{Date: "2024-05-02", StartTime: "10:00", Duration: 30}, existing)
	require.NoError(t, err)
	assert.Nil(t, c, "cancelled bookings free their slot")

	c, err = FindConflict(Appointment{ID: 1, Date: "2024-05-02", StartTime: "09:00", Duration: 45}, existing)
	require.NoError(t, err)
	assert.Nil(t, c, "an appointment never conflicts with itself")

	_, err = FindConflict(Appointment{Date: "2024-05-02", StartTime: "9am"}, existing)
	assert.True(t, errors.Is(err, ErrInvalidSchedule))
}

func TestBuildSlots(t *testing.T) {
	booked := []Appointment{
		{Date: "2024-05-02", StartTime: "09:30", Duration: 30, Status: ApptWaiting},
		{Date: "2024-05-02", StartTime: "10:00", Duration: 30, Status: ApptNoShow},
	}
	slots := BuildSlots(9*60, 11*60, 30, booked)
	require.Len(t, slots, 4)
	assert.Equal(t, Slot{Start: "09:00", End: "09:30", Available: true}, slots[0])
	assert.Equal(t, Slot{Start: "09:30", End: "10:00", Available: false}, slots[1])
	assert.True(t, slots[2].Available)
	assert.Equal(t, "10:30", slots[3].Start)
}

func TestDoctorWorksOn(t *testing.T) {
	thursday := time.Date(2024, 5, 2, 0, 0, 0, 0, time.Local)
	assert.True(t, Doctor{}.WorksOn(thursday))
	assert.True(t, Doctor{WorkingDays: "MON, thu"}.WorksOn(thursday))
	assert.False(t, Doctor{WorkingDays: "MON,TUE"}.WorksOn(thursday))
}

func TestPatientAge(t *testing.T) {
	on := time.Date(2024, 5, 2, 0, 0, 0, 0, time.Local)
	assert.Equal(t, 33, Patient{DateOfBirth: "1990-05-03"}.Age(on))
	assert.Equal(t, 34, Patient{DateOfBirth: "1990-05-02"}.Age(on))
	assert.Equal(t, -1, Patient{}.Age(on))
}

func TestBuildQueue(t *testing.T) {
	t1 := time.Date(2024, 5, 2, 8, 0, 0, 0, time.Local)
	t2 := t1.Add(5 * time.Minute)
	entries := []QueueEntry{
		{Appointment: Appointment{ID: 1, StartTime: "09:00", Status: ApptScheduled}},
		{Appointment: Appointment{ID: 2, StartTime: "09:30", Status: ApptWaiting, CheckedInAt: &t2}},
		{Appointment: Appointment{ID: 3, StartTime: "10:00", Status: ApptWaiting, CheckedInAt: &t1}},
		{Appointment: Appointment{ID: 4, StartTime: "08:30", Status: ApptCompleted, CheckedInAt: &t1}},
		{Appointment: Appointment{ID: 5, StartTime: "11:00", Status: ApptInProgress, CheckedInAt: &t2}},
		{Appointment: Appointment{ID: 6, StartTime: "11:30", Status: ApptCancelled}},
	}

	q := BuildQueue(entries, false)
	ids := make([]int64, 0, len(q))
	for _, e := range q {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{5, 3, 2, 4}, ids)
	assert.Equal(t, 1, q[0].Position)
	assert.Equal(t, 4, q[3].Position)

	all := BuildQueue(entries, true)
	require.Len(t, all, 6)
	assert.Equal(t, int64(1), all[3].ID)
	assert.Equal(t, int64(6), all[5].ID)
}
