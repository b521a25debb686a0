package app

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/medicore/hms/internal/domain"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed config_schemas.json
var configSchemasData []byte

// ConfigSchema describes one setting key
type ConfigSchema struct {
	Key         string `json:"key"`
	Type        string `json:"type"` // string, int, bool, decimal, time
	Default     string `json:"default"`
	Description string `json:"description"`
}

type ConfigSchemasJSON struct {
	Schemas []ConfigSchema `json:"schemas"`
}

var ErrUnknownSetting = errors.New("unknown setting")

// AppointmentSettings typed view of the appointment category
type AppointmentSettings struct {
	SlotMinutes   int    `mapstructure:"slot_minutes"`
	WorkStart     string `mapstructure:"work_start"`
	WorkEnd       string `mapstructure:"work_end"`
	ReminderHours int    `mapstructure:"reminder_hours"`
}

// BillingSettings typed view of the billing category
type BillingSettings struct {
	TaxRate        string `mapstructure:"tax_rate"`
	InvoiceDueDays int    `mapstructure:"invoice_due_days"`
}

// ConfigManager caches sys_config values in memory
type ConfigManager struct {
	app     DBProvider
	mu      sync.RWMutex
	values  map[string]string
	schemas map[string]ConfigSchema
	order   []string
}

func NewConfigManager(app DBProvider) *ConfigManager {
	cm := &ConfigManager{
		app:     app,
		values:  make(map[string]string),
		schemas: make(map[string]ConfigSchema),
	}
	var data ConfigSchemasJSON
	if err := json.Unmarshal(configSchemasData, &data); err != nil {
		zap.L().Error("failed to load config schemas", zap.Error(err))
	}
	for _, s := range data.Schemas {
		cm.schemas[s.Key] = s
		cm.order = append(cm.order, s.Key)
	}
	cm.Reload()
	return cm
}

// Reload refreshes the cache from the database
func (cm *ConfigManager) Reload() {
	var rows []domain.SysConfig
	if err := cm.app.DB().Find(&rows).Error; err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		return
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Type+"."+r.Name] = r.Value
	}
	cm.mu.Lock()
	cm.values = values
	cm.mu.Unlock()
}

func (cm *ConfigManager) Schemas() []ConfigSchema {
	result := make([]ConfigSchema, 0, len(cm.order))
	for _, k := range cm.order {
		result = append(result, cm.schemas[k])
	}
	return result
}

func (cm *ConfigManager) GetString(category, name string) string {
	key := category + "." + name
	cm.mu.RLock()
	v, ok := cm.values[key]
	cm.mu.RUnlock()
	if ok {
		return v
	}
	return cm.schemas[key].Default
}

func (cm *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(cm.GetString(category, name))
}

func (cm *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(cm.GetString(category, name))
}

func (cm *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(cm.GetString(category, name))
}

func (cm *ConfigManager) GetDecimal(category, name string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(cm.GetString(category, name)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Category returns all values of a category keyed by name
func (cm *ConfigManager) Category(category string) map[string]interface{} {
	result := make(map[string]interface{})
	prefix := category + "."
	for _, k := range cm.order {
		if strings.HasPrefix(k, prefix) {
			name := strings.TrimPrefix(k, prefix)
			result[name] = cm.GetString(category, name)
		}
	}
	return result
}

func (cm *ConfigManager) Appointment() AppointmentSettings {
	var s AppointmentSettings
	if err := mapstructure.WeakDecode(cm.Category("appointment"), &s); err != nil {
		zap.L().Error("decode appointment settings", zap.Error(err))
	}
	if s.SlotMinutes <= 0 {
		s.SlotMinutes = 30
	}
	return s
}

func (cm *ConfigManager) Billing() BillingSettings {
	var s BillingSettings
	if err := mapstructure.WeakDecode(cm.Category("billing"), &s); err != nil {
		zap.L().Error("decode billing settings", zap.Error(err))
	}
	return s
}

// Validate checks a value against the schema type of key
func (cm *ConfigManager) Validate(key, value string) error {
	schema, ok := cm.schemas[key]
	if !ok {
		return errors.Wrap(ErrUnknownSetting, key)
	}
	var err error
	switch schema.Type {
	case "int":
		_, err = cast.ToIntE(value)
	case "bool":
		_, err = cast.ToBoolE(value)
	case "decimal":
		_, err = decimal.NewFromString(value)
	case "time":
		_, err = time.Parse("15:04", value)
	}
	if err != nil {
		return fmt.Errorf("%s: invalid %s value %q", key, schema.Type, value)
	}
	return nil
}

// Save persists the given key/value pairs and refreshes the cache
func (cm *ConfigManager) Save(settings map[string]string) error {
	for k, v := range settings {
		if err := cm.Validate(k, v); err != nil {
			return err
		}
	}
	err := cm.app.DB().Transaction(func(tx *gorm.DB) error {
		for k, v := range settings {
			parts := strings.SplitN(k, ".", 2)
			res := tx.Model(&domain.SysConfig{}).
				Where("type = ? and name = ?", parts[0], parts[1]).
				Updates(map[string]interface{}{"value": v, "updated_at": time.Now()})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				if err := tx.Create(&domain.SysConfig{
					Type:   parts[0],
					Name:   parts[1],
					Value:  v,
					Remark: cm.schemas[k].Description,
				}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "save settings")
	}
	cm.Reload()
	return nil
}
