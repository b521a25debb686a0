package app

import (
	"fmt"
	"time"

	"github.com/medicore/hms/internal/domain"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

const (
	CounterMRN     = "mrn"
	CounterInvoice = "invoice"
)

var defaultCounters = []domain.SysCounter{
	{Name: CounterMRN, Prefix: "MRN-", Width: 6},
	{Name: CounterInvoice, Prefix: "INV-", Width: 6},
}

// QueueCounter names the daily token sequence of a date
func QueueCounter(date string) string {
	return "queue:" + date
}

// NextSequence increments the named counter and returns its new value.
// Unknown counters start at 1. Call it inside the transaction that uses
// the value so a rollback releases the number.
func NextSequence(tx *gorm.DB, name string) (int64, error) {
	res := tx.Model(&domain.SysCounter{}).
		Where("name = ?", name).
		Updates(map[string]interface{}{
			"value":      gorm.Expr("value + ?", 1),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "increment counter %s", name)
	}
	if res.RowsAffected == 0 {
		c := domain.SysCounter{Name: name, Value: 1, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := tx.Create(&c).Error; err != nil {
			return 0, errors.Wrapf(err, "create counter %s", name)
		}
		return 1, nil
	}
	var c domain.SysCounter
	if err := tx.Where("name = ?", name).First(&c).Error; err != nil {
		return 0, errors.Wrapf(err, "read counter %s", name)
	}
	return c.Value, nil
}

// NextCode returns the next formatted code of a counter, e.g. MRN-000042
func NextCode(tx *gorm.DB, name string) (string, error) {
	v, err := NextSequence(tx, name)
	if err != nil {
		return "", err
	}
	var c domain.SysCounter
	if err := tx.Where("name = ?", name).First(&c).Error; err != nil {
		return "", errors.Wrapf(err, "read counter %s", name)
	}
	return FormatCode(c.Prefix, c.Width, v), nil
}

func FormatCode(prefix string, width int, value int64) string {
	if width <= 0 {
		return fmt.Sprintf("%s%d", prefix, value)
	}
	return fmt.Sprintf("%s%0*d", prefix, width, value)
}
