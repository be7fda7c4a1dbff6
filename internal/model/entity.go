package model

import (
	"fmt"
	"time"
)

type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "Open"
	TicketStatusClosed TicketStatus = "Closed"
)

type ErrorType string

const (
	ErrorTypePaymentFailed  ErrorType = "payment_failed"
	ErrorTypeWrongDeduction ErrorType = "wrong_deduction"
	ErrorTypeNotCredited    ErrorType = "not_credited"
	ErrorTypeBankOneLoading ErrorType = "bank_one_loading"
	ErrorTypeOther          ErrorType = "other"
)

// ErrorTypeChoices lists the selectable error types with their display labels, in form order.
var ErrorTypeChoices = []struct {
	Value ErrorType `json:"value"`
	Label string    `json:"label"`
}{
	{ErrorTypePaymentFailed, "Payment Failed"},
	{ErrorTypeWrongDeduction, "Wrong Deduction"},
	{ErrorTypeNotCredited, "Not Credited"},
	{ErrorTypeBankOneLoading, "BankOne Issue"},
	{ErrorTypeOther, "Other"},
}

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAdmin SenderType = "admin"
)

func (s SenderType) Valid() bool { return s == SenderUser || s == SenderAdmin }

type Ticket struct {
	TicketID      string       `gorm:"primaryKey;column:ticket_id;type:varchar(32)" json:"ticket_id"`
	Fullname      string       `gorm:"type:varchar(255);not null" json:"fullname"`
	AccountNumber int64        `gorm:"not null" json:"account_number"`
	Email         string       `gorm:"type:varchar(255);index;not null" json:"email"`
	Reference     string       `gorm:"type:varchar(255)" json:"reference,omitempty"`
	ErrorType     ErrorType    `gorm:"type:varchar(32);not null" json:"error_type"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	FilePath      *string      `gorm:"type:text" json:"file_path"`
	Status        TicketStatus `gorm:"type:varchar(16);index;not null;default:Open" json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

func (Ticket) TableName() string { return "tickets" }

// Account returns the account number as the 10-digit string it was submitted as.
func (t *Ticket) Account() string { return fmt.Sprintf("%010d", t.AccountNumber) }

func (t *Ticket) IsOpen() bool { return t.Status == TicketStatusOpen }

type Message struct {
	ID         uint64     `gorm:"primaryKey" json:"id"`
	TicketID   string     `gorm:"type:varchar(32);index:idx_messages_ticket_created,priority:1;not null" json:"ticket_id"`
	SenderType SenderType `gorm:"type:varchar(16);not null" json:"sender_type"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time  `gorm:"index:idx_messages_ticket_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

// OTP is the single live passcode for an email address.
type OTP struct {
	Email     string    `gorm:"primaryKey;type:varchar(255)"`
	Code      string    `gorm:"type:varchar(6);not null"`
	ExpiresAt time.Time `gorm:"not null"`
}

func (OTP) TableName() string { return "otps" }

// Actor identifies who is asking for an operation: the admin role and/or a verified email.
type Actor struct {
	Admin bool
	Email string
}

func (a Actor) Owns(t *Ticket) bool {
	return a.Email != "" && t != nil && a.Email == t.Email
}

// CanView reports whether the actor may read the ticket and its thread.
func (a Actor) CanView(t *Ticket) bool { return a.Admin || a.Owns(t) }
