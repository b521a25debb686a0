package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Document metadata, the bytes live in the blob store under BlobKey
type Document struct {
	ID         int64     `json:"id,string" form:"id"`
	PatientId  int64     `gorm:"index" json:"patient_id,string" form:"patient_id"`
	Title      string    `json:"title" form:"title"`
	Category   string    `gorm:"index" json:"category" form:"category"`
	FileName   string    `json:"file_name"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	BlobKey    string    `gorm:"size:64" json:"-"`
	UploadedBy string    `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName Specify table name
func (Document) TableName() string {
	return "document"
}

type Expense struct {
	ID            int64           `json:"id,string" form:"id"`
	Date          string          `gorm:"index;size:10" json:"date" form:"date"`
	Category      string          `gorm:"index" json:"category" form:"category"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	Vendor        string          `json:"vendor" form:"vendor"`
	PaymentMethod string          `json:"payment_method" form:"payment_method"`
	Description   string          `json:"description" form:"description"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Expense) TableName() string {
	return "expense"
}

// Notification channels
const (
	ChannelInApp   = "IN_APP"
	ChannelEmail   = "EMAIL"
	ChannelWebhook = "WEBHOOK"
)

type Notification struct {
	ID           int64      `json:"id,string"`
	Type         string     `gorm:"index" json:"type"` // appointment_reminder, appointment_cancelled ...
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	Entity       string     `json:"entity"`
	EntityId     int64      `json:"entity_id,string"`
	Channel      string     `json:"channel"`       // channels dispatched, e.g. IN_APP,EMAIL
	DeliveredVia string     `json:"delivered_via"` // external channels that confirmed delivery
	Recipient    string     `json:"recipient"`
	IsRead       bool       `gorm:"index" json:"is_read"`
	ReadAt       *time.Time `json:"read_at"`
	CreatedAt    time.Time  `gorm:"index" json:"created_at"`
}

// TableName Specify table name
func (Notification) TableName() string {
	return "notification"
}
