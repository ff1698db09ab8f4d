package services

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

var (
	// ErrAlreadyCheckedIn 会员已签到且未签退
	ErrAlreadyCheckedIn = errors.New("该会员已签到且未签退")
	// ErrNotCheckedIn 会员今日尚未签到
	ErrNotCheckedIn = errors.New("该会员今日尚未签到")
)

// InterfaceAttendanceService defines the attendance service interface
type InterfaceAttendanceService interface {
	CheckIn(memberID int, deviceID, gymID string, source models.AttendanceSource) (*models.AttendanceRecord, error)
	CheckOut(memberID int, gymID string) (*models.AttendanceRecord, error)
	GetTodayRecords(gymID string) ([]models.AttendanceRecord, error)
	GetMemberRecords(memberID int, query *models.PaginationQuery) ([]models.AttendanceRecord, models.PaginationResult, error)
}

// AttendanceService 提供考勤相关的服务。
// 指纹打卡事件由MQTT网关喂入，前台也可以手工补录。
type AttendanceService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewAttendanceService 创建一个新的考勤服务
func NewAttendanceService(db *gorm.DB, cfg *config.Config) InterfaceAttendanceService {
	return &AttendanceService{
		DB:     db,
		Config: cfg,
	}
}

// CheckIn 会员签到。已有未签退的记录时报错，避免重复打卡刷记录。
func (s *AttendanceService) CheckIn(memberID int, deviceID, gymID string, source models.AttendanceSource) (*models.AttendanceRecord, error) {
	// 会员必须存在（只有登记成功的指纹ID才有会员行）
	var member models.Member
	if err := s.DB.First(&member, memberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("会员不存在")
		}
		return nil, err
	}

	var open int64
	if err := s.DB.Model(&models.AttendanceRecord{}).
		Where("member_id = ? AND check_out_time IS NULL", memberID).
		Count(&open).Error; err != nil {
		return nil, err
	}
	if open > 0 {
		return nil, ErrAlreadyCheckedIn
	}

	record := models.AttendanceRecord{
		MemberID:    memberID,
		DeviceID:    deviceID,
		GymID:       gymID,
		CheckInTime: time.Now(),
		Source:      source,
	}

	if err := s.DB.Create(&record).Error; err != nil {
		return nil, err
	}

	log.Printf("[考勤] 会员签到: memberID=%d, 设备=%s, 来源=%s", memberID, deviceID, source)

	return &record, nil
}

// CheckOut 会员签退，关闭最近一条未签退的记录
func (s *AttendanceService) CheckOut(memberID int, gymID string) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := s.DB.Where("member_id = ? AND check_out_time IS NULL", memberID).
		Order("check_in_time DESC").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotCheckedIn
		}
		return nil, err
	}

	now := time.Now()
	record.CheckOutTime = &now
	if err := s.DB.Save(&record).Error; err != nil {
		return nil, err
	}

	log.Printf("[考勤] 会员签退: memberID=%d, 时长=%v", memberID, now.Sub(record.CheckInTime))

	return &record, nil
}

// GetTodayRecords 获取今日考勤记录
func (s *AttendanceService) GetTodayRecords(gymID string) ([]models.AttendanceRecord, error) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var records []models.AttendanceRecord
	db := s.DB.Preload("Member").Where("check_in_time >= ?", dayStart)
	if gymID != "" {
		db = db.Where("gym_id = ?", gymID)
	}
	if err := db.Order("check_in_time DESC").Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

// GetMemberRecords 分页获取单个会员的考勤历史
func (s *AttendanceService) GetMemberRecords(memberID int, query *models.PaginationQuery) ([]models.AttendanceRecord, models.PaginationResult, error) {
	query.Normalize()

	db := s.DB.Model(&models.AttendanceRecord{}).Where("member_id = ?", memberID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	var records []models.AttendanceRecord
	if err := db.Order("check_in_time DESC").
		Offset((query.PageNum - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&records).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	return records, models.NewPaginationResult(int(total), query.PageNum, query.PageSize), nil
}
