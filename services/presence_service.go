package services

import (
	"context"
	"fmt"
	"time"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

// 设备不可用的结构化原因，调用方和前端据此区分处理方式
const (
	AvailabilityReasonOK             = "ok"
	AvailabilityReasonNotFound       = "not_found"       // 从未上报过心跳
	AvailabilityReasonHeartbeatStale = "heartbeat_stale" // 心跳超出可达窗口
	AvailabilityReasonNotOnline      = "not_online"      // 自报状态不是online（如busy）
)

// AvailabilityResult 设备可用性判定结果
type AvailabilityResult struct {
	Available bool                   `json:"available"`
	Reason    string                 `json:"reason"`
	Detail    string                 `json:"detail,omitempty"`
	Info      *models.DevicePresence `json:"info,omitempty"`
}

// InterfacePresenceService 定义设备在线状态服务接口
type InterfacePresenceService interface {
	ListDevices(ctx context.Context, scopeID string) ([]models.DevicePresence, error)
	CheckAvailability(ctx context.Context, scopeID, deviceID string) (*AvailabilityResult, error)
}

// PresenceService 从presence文档推导设备的在线/离线/忙判定。
// 纯读操作，不写任何文档；presence只由设备侧（经MQTT网关）维护。
type PresenceService struct {
	Store              InterfaceDocumentStore
	ReachabilityWindow time.Duration // 心跳可达窗口
}

// NewPresenceService 创建一个新的设备在线状态服务
func NewPresenceService(store InterfaceDocumentStore, cfg *config.Config) InterfacePresenceService {
	return &PresenceService{
		Store:              store,
		ReachabilityWindow: time.Duration(cfg.DeviceReachabilitySeconds) * time.Second,
	}
}

// ListDevices 列出场馆内所有上报过心跳的设备
func (s *PresenceService) ListDevices(ctx context.Context, scopeID string) ([]models.DevicePresence, error) {
	deviceIDs, err := s.Store.ListIndex(ctx, PresenceIndexKey(scopeID))
	if err != nil {
		return nil, fmt.Errorf("读取设备索引失败: %v", err)
	}

	devices := make([]models.DevicePresence, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		var presence models.DevicePresence
		found, err := s.Store.GetDocument(ctx, PresenceKey(scopeID, deviceID), &presence)
		if err != nil {
			return nil, err
		}
		if !found {
			// 索引里有但文档缺失，跳过
			continue
		}
		devices = append(devices, presence)
	}

	return devices, nil
}

// CheckAvailability 判定设备能否接收新的登记命令。
// 每次调用独立评估，staleness只看时间窗口，不看心跳序号。
func (s *PresenceService) CheckAvailability(ctx context.Context, scopeID, deviceID string) (*AvailabilityResult, error) {
	var presence models.DevicePresence
	found, err := s.Store.GetDocument(ctx, PresenceKey(scopeID, deviceID), &presence)
	if err != nil {
		return nil, err
	}

	if !found {
		return &AvailabilityResult{
			Available: false,
			Reason:    AvailabilityReasonNotFound,
			Detail:    fmt.Sprintf("设备 %s 从未上报过心跳", deviceID),
		}, nil
	}

	if !presence.IsReachable(time.Now(), s.ReachabilityWindow) {
		return &AvailabilityResult{
			Available: false,
			Reason:    AvailabilityReasonHeartbeatStale,
			Detail: fmt.Sprintf("设备 %s 心跳超过 %v 未更新", deviceID,
				s.ReachabilityWindow),
			Info: &presence,
		}, nil
	}

	if presence.ReportedState != models.DeviceStateOnline {
		return &AvailabilityResult{
			Available: false,
			Reason:    AvailabilityReasonNotOnline,
			Detail:    fmt.Sprintf("设备 %s 当前自报状态为 %s", deviceID, presence.ReportedState),
			Info:      &presence,
		}, nil
	}

	return &AvailabilityResult{
		Available: true,
		Reason:    AvailabilityReasonOK,
		Info:      &presence,
	}, nil
}
