package domain

import (
	"time"

	"github.com/google/btree"
)

var queueRank = map[string]int{
	ApptInProgress: 0,
	ApptWaiting:    1,
	ApptScheduled:  2,
	ApptCompleted:  3,
	ApptNoShow:     4,
	ApptCancelled:  5,
}

// QueueEntry is one line of the day's patient queue
type QueueEntry struct {
	Appointment
	PatientName string `json:"patient_name"`
	PatientMrn  string `json:"patient_mrn"`
	DoctorName  string `json:"doctor_name"`
	Position    int    `json:"position,omitempty"`
}

// IsCheckedIn reports whether the patient has arrived for the appointment
func IsCheckedIn(status string) bool {
	return status == ApptWaiting || status == ApptInProgress || status == ApptCompleted
}

func queueLess(a, b QueueEntry) bool {
	ra, rb := queueRank[a.Status], queueRank[b.Status]
	if ra != rb {
		return ra < rb
	}
	ta, tb := checkInOrZero(a.CheckedInAt), checkInOrZero(b.CheckedInAt)
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	if a.StartTime != b.StartTime {
		return a.StartTime < b.StartTime
	}
	return a.ID < b.ID
}

func checkInOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// BuildQueue orders entries by status rank, then check-in time, then booked
// start time. Unless all is set only checked-in patients are kept.
func BuildQueue(entries []QueueEntry, all bool) []QueueEntry {
	tree := btree.NewG[QueueEntry](8, queueLess)
	for _, e := range entries {
		if !all && !IsCheckedIn(e.Status) {
			continue
		}
		tree.ReplaceOrInsert(e)
	}
	result := make([]QueueEntry, 0, tree.Len())
	tree.Ascend(func(e QueueEntry) bool {
		e.Position = len(result) + 1
		result = append(result, e)
		return true
	})
	return result
}
