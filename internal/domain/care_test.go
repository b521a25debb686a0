package domain

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralTransition(t *testing.T) {
	r := &Referral{Status: ReferralPending}
	require.NoError(t, r.Transition(ReferralAccepted))
	require.NoError(t, r.Transition(ReferralCompleted))
	assert.True(t, errors.Is(r.Transition(ReferralPending), ErrInvalidTransition))

	r = &Referral{Status: ReferralPending}
	assert.True(t, errors.Is(r.Transition(ReferralCompleted), ErrInvalidTransition))
	assert.True(t, errors.Is(r.Transition("LOST"), ErrInvalidStatus))
}

func TestSurgeryConflict(t *testing.T) {
	booked := []Surgery{
		{ID: 1, SurgeonId: 7, OperatingRoom: "OR-1", Date: "2024-06-01", StartTime: "08:00", Duration: 120, Status: SurgeryScheduled},
		{ID: 2, SurgeonId: 8, OperatingRoom: "OR-2", Date: "2024-06-01", StartTime: "13:00", Duration: 60, Status: SurgeryCancelled},
	}

	c, err := SurgeryConflict(Surgery{SurgeonId: 9, OperatingRoom: "OR-1", Date: "2024-06-01", StartTime: "09:00", Duration: 60}, booked)
	require.NoError(t, err)
	require.NotNil(t, c, "same room")

	c, err = SurgeryConflict(Surgery{SurgeonId: 7, OperatingRoom: "OR-3", Date: "2024-06-01", StartTime: "09:30", Duration: 60}, booked)
	require.NoError(t, err)
	require.NotNil(t, c, "same surgeon")

	c, err = SurgeryConflict(Surgery{SurgeonId: 9, OperatingRoom: "OR-3", Date: "2024-06-01", StartTime: "09:00", Duration: 60}, booked)
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = SurgeryConflict(Surgery{SurgeonId: 8, OperatingRoom: "OR-2", Date: "2024-06-01", StartTime: "13:00", Duration: 60}, booked)
	require.NoError(t, err)
	assert.Nil(t, c, "cancelled surgery frees the room")
}

func TestSurgeryTransition(t *testing.T) {
	s := &Surgery{Status: SurgeryScheduled}
	require.NoError(t, s.Transition(SurgeryPostponed))
	require.NoError(t, s.Transition(SurgeryScheduled))
	require.NoError(t, s.Transition(SurgeryInProgress))
	assert.True(t, errors.Is(s.Transition(SurgeryCancelled), ErrInvalidTransition))
	require.NoError(t, s.Transition(SurgeryCompleted))
}

func TestEquipmentMaintenance(t *testing.T) {
	e := &Equipment{Status: EquipmentMaintenance, MaintenanceInterval: 90}
	require.NoError(t, e.RecordMaintenance(MaintenanceRecord{Date: "2024-01-15", Cost: decimal.NewFromInt(120)}))
	assert.Equal(t, "2024-01-15", e.LastMaintenance)
	assert.Equal(t, "2024-04-14", e.NextMaintenance)
	assert.Equal(t, EquipmentOperational, e.Status)

	retired := &Equipment{Status: EquipmentRetired}
	assert.Error(t, retired.RecordMaintenance(MaintenanceRecord{Date: "2024-01-15"}))

	noInterval := &Equipment{}
	require.NoError(t, noInterval.ScheduleNext("2024-01-15"))
	assert.Empty(t, noInterval.NextMaintenance)
}
