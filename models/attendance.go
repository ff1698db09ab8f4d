package models

import (
	"time"
)

// AttendanceSource indicates how an attendance record was captured
type AttendanceSource string

const (
	AttendanceSourceFingerprint AttendanceSource = "fingerprint"
	AttendanceSourceManual      AttendanceSource = "manual"
)

// AttendanceRecord represents member check-in/check-out records
type AttendanceRecord struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	MemberID     int              `gorm:"index;not null" json:"member_id"` // 指纹ID
	DeviceID     string           `gorm:"type:varchar(50);index" json:"device_id"`
	GymID        string           `gorm:"type:varchar(50);index" json:"gym_id"`
	CheckInTime  time.Time        `json:"check_in_time"`
	CheckOutTime *time.Time       `json:"check_out_time,omitempty"` // 未签退时为空
	Source       AttendanceSource `gorm:"type:varchar(20);default:'fingerprint'" json:"source"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	// Relations
	Member *Member `gorm:"foreignKey:MemberID" json:"member,omitempty"`
}
