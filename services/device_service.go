package services

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

// InterfaceDeviceService defines the device service interface
type InterfaceDeviceService interface {
	GetAllDevices(gymID string) ([]models.Device, error)
	GetDeviceByID(id uint) (*models.Device, error)
	GetDeviceBySerial(serialNumber string) (*models.Device, error)
	CreateDevice(device *models.Device) error
	UpdateDevice(id uint, updates map[string]interface{}) (*models.Device, error)
	DeleteDevice(id uint) error
	GetDeviceLiveStatus(ctx context.Context, scopeID, serialNumber string) (*AvailabilityResult, error)
}

// DeviceService 提供指纹设备注册表相关的服务。
// 注册表存设备的静态信息；实时在线状态由presence服务从心跳推导。
type DeviceService struct {
	DB       *gorm.DB
	Config   *config.Config
	Cache    InterfaceCacheService
	Presence InterfacePresenceService
}

// NewDeviceService 创建一个新的设备服务
func NewDeviceService(db *gorm.DB, cfg *config.Config, cache InterfaceCacheService, presence InterfacePresenceService) InterfaceDeviceService {
	return &DeviceService{
		DB:       db,
		Config:   cfg,
		Cache:    cache,
		Presence: presence,
	}
}

// 1 GetAllDevices 获取设备列表
func (s *DeviceService) GetAllDevices(gymID string) ([]models.Device, error) {
	var devices []models.Device
	db := s.DB
	if gymID != "" {
		db = db.Where("gym_id = ?", gymID)
	}
	if err := db.Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

// 2 GetDeviceByID 根据ID获取设备
func (s *DeviceService) GetDeviceByID(id uint) (*models.Device, error) {
	var device models.Device
	if err := s.DB.First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("设备不存在")
		}
		return nil, err
	}

	return &device, nil
}

// 3 GetDeviceBySerial 根据序列号获取设备，带缓存
func (s *DeviceService) GetDeviceBySerial(serialNumber string) (*models.Device, error) {
	if s.Cache != nil {
		var cached models.Device
		if found, err := s.Cache.GetDeviceInfo(serialNumber, &cached); err == nil && found {
			return &cached, nil
		}
	}

	var device models.Device
	if err := s.DB.Where("serial_number = ?", serialNumber).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("设备不存在")
		}
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.CacheDeviceInfo(serialNumber, &device); err != nil {
			log.Printf("[设备] 缓存设备信息失败: %s, err=%v", serialNumber, err)
		}
	}

	return &device, nil
}

// 4 CreateDevice 创建新设备
func (s *DeviceService) CreateDevice(device *models.Device) error {
	// 验证序列号唯一性
	var count int64
	if err := s.DB.Model(&models.Device{}).Where("serial_number = ?", device.SerialNumber).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return errors.New("设备序列号已存在")
	}

	// 设置默认状态
	if device.Status == "" {
		device.Status = models.DeviceStatusOffline
	}

	return s.DB.Create(device).Error
}

// 5 UpdateDevice 更新设备信息
func (s *DeviceService) UpdateDevice(id uint, updates map[string]interface{}) (*models.Device, error) {
	device, err := s.GetDeviceByID(id)
	if err != nil {
		return nil, err
	}

	// 如果更新序列号，需要检查唯一性
	if serialNumber, ok := updates["serial_number"].(string); ok && serialNumber != device.SerialNumber {
		var count int64
		if err := s.DB.Model(&models.Device{}).Where("serial_number = ? AND id != ?", serialNumber, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("设备序列号已存在")
		}
	}

	if err := s.DB.Model(device).Updates(updates).Error; err != nil {
		return nil, err
	}

	// 注册信息变了，主动失效缓存
	if s.Cache != nil {
		if err := s.Cache.InvalidateDevice(device.SerialNumber); err != nil {
			log.Printf("[设备] 失效设备缓存失败: %s, err=%v", device.SerialNumber, err)
		}
	}

	return s.GetDeviceByID(id)
}

// 6 DeleteDevice 删除设备
func (s *DeviceService) DeleteDevice(id uint) error {
	device, err := s.GetDeviceByID(id)
	if err != nil {
		return err
	}

	if s.Cache != nil {
		if err := s.Cache.InvalidateDevice(device.SerialNumber); err != nil {
			log.Printf("[设备] 失效设备缓存失败: %s, err=%v", device.SerialNumber, err)
		}
	}

	return s.DB.Delete(device).Error
}

// 7 GetDeviceLiveStatus 获取设备实时可用性，以presence文档为准
func (s *DeviceService) GetDeviceLiveStatus(ctx context.Context, scopeID, serialNumber string) (*AvailabilityResult, error) {
	return s.Presence.CheckAvailability(ctx, scopeID, serialNumber)
}
