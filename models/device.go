package models

import (
	"time"
)

// DeviceStatus represents the registry status of a fingerprint scanner
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
	DeviceStatusBusy    DeviceStatus = "busy"
	DeviceStatusFault   DeviceStatus = "fault"
)

// Device represents registered fingerprint scanner devices.
// 实时在线状态以presence文档为准，这里的Status只是注册表里的最后已知值。
type Device struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	Name            string       `gorm:"type:varchar(50);not null" json:"name"`
	SerialNumber    string       `gorm:"type:varchar(50);unique;not null" json:"serial_number"` // 同时作为presence/信箱文档的deviceId
	GymID           string       `gorm:"type:varchar(50);index" json:"gym_id"`
	Location        string       `gorm:"type:varchar(100)" json:"location"`
	Status          DeviceStatus `gorm:"type:varchar(20);default:'offline'" json:"status"`
	FirmwareVersion string       `gorm:"type:varchar(50)" json:"firmware_version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// Relations
	AttendanceRecords []AttendanceRecord `gorm:"foreignKey:DeviceID;references:SerialNumber" json:"attendance_records,omitempty"`
	EnrollmentRecords []EnrollmentRecord `gorm:"foreignKey:DeviceID;references:SerialNumber" json:"enrollment_records,omitempty"`
}
