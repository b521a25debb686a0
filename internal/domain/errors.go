package domain

import "github.com/pkg/errors"

var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidStatus     = errors.New("unknown status")
	ErrPriorityBounds    = errors.New("priority already at the limit")
	ErrInvalidPriority   = errors.New("unknown priority")
	ErrInvalidDiscount   = errors.New("invalid discount")
	ErrInvalidTaxRate    = errors.New("tax rate must be between 0 and 100")
	ErrInvalidItem       = errors.New("invoice item needs quantity > 0 and unit price >= 0")
	ErrOverpayment       = errors.New("payment exceeds outstanding balance")
	ErrInvoiceClosed     = errors.New("invoice is cancelled or fully paid")
	ErrSlotConflict      = errors.New("time slot overlaps an existing booking")
	ErrInvalidSchedule   = errors.New("invalid date or time")
)

// transitionTable maps a status to the statuses it may move to
type transitionTable map[string][]string

func (t transitionTable) allows(from, to string) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (t transitionTable) known(status string) bool {
	_, ok := t[status]
	return ok
}

func (t transitionTable) next(from string) []string {
	return append([]string{}, t[from]...)
}
