package models

import (
	"time"
)

// MembershipType represents the billing tier of a member
type MembershipType string

const (
	MembershipTypeBasic    MembershipType = "basic"
	MembershipTypeStandard MembershipType = "standard"
	MembershipTypePremium  MembershipType = "premium"
)

// Member represents gym members enrolled through a fingerprint device.
// 主键就是设备分配的指纹ID（不自增），保证硬件登记表和会员表一一对应。
type Member struct {
	ID             int            `gorm:"primaryKey;autoIncrement:false" json:"fingerprint_id"`
	MemberNo       string         `gorm:"type:varchar(20);unique;not null" json:"member_no"` // 人工可读的会员号，独立于指纹ID
	Name           string         `gorm:"type:varchar(50);not null" json:"name"`
	Phone          string         `gorm:"type:varchar(20)" json:"phone"`
	Email          string         `gorm:"type:varchar(100)" json:"email"`
	Age            int            `json:"age"`
	MembershipType MembershipType `gorm:"type:varchar(20);default:'basic'" json:"membership_type"`
	GymID          string         `gorm:"type:varchar(50);index" json:"gym_id"`
	EnrolledAt     time.Time      `json:"enrolled_at"`
	EnrolledBy     string         `gorm:"type:varchar(50)" json:"enrolled_by"` // 完成登记的设备ID
	PaymentDueDate *time.Time     `json:"payment_due_date,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Relations
	AttendanceRecords []AttendanceRecord `gorm:"foreignKey:MemberID" json:"attendance_records,omitempty"`
}
