package app

import (
	"strings"
	"time"

	"github.com/guonaihong/gout"
	"github.com/medicore/hms/config"
	"github.com/medicore/hms/internal/domain"
	"github.com/medicore/hms/pkg/common"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

// Notifier stores notifications and fans them out to e-mail and webhook
// channels on a worker pool.
type Notifier struct {
	db       *gorm.DB
	cfg      config.NotifyConfig
	settings *ConfigManager
	pool     *ants.Pool
}

func NewNotifier(db *gorm.DB, cfg config.NotifyConfig, settings *ConfigManager) (*Notifier, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(false))
	if err != nil {
		return nil, errors.Wrap(err, "create notify pool")
	}
	return &Notifier{db: db, cfg: cfg, settings: settings, pool: pool}, nil
}

// Send stores an in-app notification and schedules external deliveries.
// Channel lists every channel the notification was dispatched to.
func (n *Notifier) Send(note domain.Notification) error {
	if note.ID == 0 {
		note.ID = common.UUIDint64()
	}
	mail := n.emailEnabled() && strings.Contains(note.Recipient, "@")
	hook := n.webhookEnabled()
	channels := []string{domain.ChannelInApp}
	if mail {
		channels = append(channels, domain.ChannelEmail)
	}
	if hook {
		channels = append(channels, domain.ChannelWebhook)
	}
	note.Channel = strings.Join(channels, ",")
	note.DeliveredVia = ""
	note.CreatedAt = time.Now()
	if err := n.db.Create(&note).Error; err != nil {
		return errors.Wrap(err, "save notification")
	}

	if mail {
		n.submit(func() { n.sendMail(note) })
	}
	if hook {
		n.submit(func() { n.postWebhook(note) })
	}
	return nil
}

// markDelivered appends channel to delivered_via once an external
// delivery succeeded
func (n *Notifier) markDelivered(id int64, channel string) {
	err := n.db.Model(&domain.Notification{}).Where("id = ?", id).
		Update("delivered_via", gorm.Expr("CASE WHEN delivered_via = '' OR delivered_via IS NULL THEN ? ELSE delivered_via || ',' || ? END", channel, channel)).Error
	if err != nil {
		zap.L().Warn("mark notification delivered failed", zap.Int64("notification_id", id), zap.Error(err))
	}
}

// SendOnce skips the notification when one of the same type for the same
// entity was already created since the start of today.
func (n *Notifier) SendOnce(note domain.Notification) (bool, error) {
	start, _ := common.DayRange(time.Now())
	var count int64
	n.db.Model(&domain.Notification{}).
		Where("type = ? and entity = ? and entity_id = ? and created_at >= ?", note.Type, note.Entity, note.EntityId, start).
		Count(&count)
	if count > 0 {
		return false, nil
	}
	return true, n.Send(note)
}

func (n *Notifier) emailEnabled() bool {
	return n.cfg.SmtpHost != "" && n.settings != nil && n.settings.GetBool("notification", "email_enabled")
}

func (n *Notifier) webhookEnabled() bool {
	return n.cfg.WebhookURL != "" && n.settings != nil && n.settings.GetBool("notification", "webhook_enabled")
}

func (n *Notifier) submit(task func()) {
	if err := n.pool.Submit(task); err != nil {
		zap.L().Warn("notification delivery dropped", zap.Error(err))
	}
}

func (n *Notifier) sendMail(note domain.Notification) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	m := gomail.NewMessage()
	from := n.cfg.SmtpFrom
	if from == "" {
		from = n.cfg.SmtpUser
	}
	m.SetHeader("From", from)
	m.SetHeader("To", note.Recipient)
	m.SetHeader("Subject", note.Title)
	m.SetBody("text/plain", note.Message)

	d := gomail.NewDialer(n.cfg.SmtpHost, n.cfg.SmtpPort, n.cfg.SmtpUser, n.cfg.SmtpPasswd)
	if err := d.DialAndSend(m); err != nil {
		zap.L().Error("send notification mail failed",
			zap.String("namespace", "notify"),
			zap.String("to", note.Recipient),
			zap.Error(err))
		return
	}
	n.markDelivered(note.ID, domain.ChannelEmail)
}

func (n *Notifier) postWebhook(note domain.Notification) {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()
	var code int
	err := gout.POST(n.cfg.WebhookURL).
		SetJSON(gout.H{
			"id":        note.ID,
			"type":      note.Type,
			"title":     note.Title,
			"message":   note.Message,
			"entity":    note.Entity,
			"entity_id": note.EntityId,
			"time":      note.CreatedAt.Format(time.RFC3339),
		}).
		SetTimeout(10 * time.Second).
		Code(&code).
		Do()
	if err != nil || code >= 300 {
		zap.L().Error("post notification webhook failed",
			zap.String("namespace", "notify"),
			zap.Int("status", code),
			zap.Error(err))
		return
	}
	n.markDelivered(note.ID, domain.ChannelWebhook)
}

func (n *Notifier) Release() {
	n.pool.Release()
}
