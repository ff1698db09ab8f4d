package models

import (
	"time"
)

// EnrollmentRecord represents the audit trail of fingerprint enrollment attempts.
// 每次尝试到达终态时写入一行，成功与否都会留痕；会员表只在成功时写。
type EnrollmentRecord struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	CorrelationID string       `gorm:"type:varchar(100);index" json:"correlation_id"`
	DeviceID      string       `gorm:"type:varchar(50);index" json:"device_id"`
	GymID         string       `gorm:"type:varchar(50)" json:"gym_id"`
	SubjectName   string       `gorm:"type:varchar(50)" json:"subject_name"`
	Outcome       AttemptState `gorm:"type:varchar(30)" json:"outcome"`
	Message       string       `gorm:"type:varchar(255)" json:"message"`
	FingerprintID *int         `json:"fingerprint_id,omitempty"` // 仅成功时非空
	StartedAt     time.Time    `json:"started_at"`
	Duration      int          `json:"duration"` // 秒
	CreatedAt     time.Time    `json:"created_at"`
}
