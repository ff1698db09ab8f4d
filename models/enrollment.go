package models

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// EnrollmentStatus 指纹设备在命令信箱中上报的状态，封闭枚举
type EnrollmentStatus string

const (
	EnrollmentStatusPending    EnrollmentStatus = "pending"
	EnrollmentStatusInProgress EnrollmentStatus = "in_progress"
	EnrollmentStatusCompleted  EnrollmentStatus = "completed"
	EnrollmentStatusFailed     EnrollmentStatus = "failed"
	EnrollmentStatusCancelled  EnrollmentStatus = "cancelled"
)

// ParseEnrollmentStatus 解析设备上报的状态字符串。
// 未知取值返回 ok=false，由调用方按协议违规处理，而不是静默放过。
func ParseEnrollmentStatus(s string) (EnrollmentStatus, bool) {
	switch EnrollmentStatus(s) {
	case EnrollmentStatusPending, EnrollmentStatusInProgress, EnrollmentStatusCompleted,
		EnrollmentStatusFailed, EnrollmentStatusCancelled:
		return EnrollmentStatus(s), true
	default:
		return "", false
	}
}

// IsTerminal 判断状态是否为终态
func (s EnrollmentStatus) IsTerminal() bool {
	switch s {
	case EnrollmentStatusCompleted, EnrollmentStatusFailed, EnrollmentStatusCancelled:
		return true
	default:
		return false
	}
}

// EnrollmentCommand 设备命令信箱文档。每台设备只有一个槽位，
// 新的登记尝试直接覆盖旧文档，靠correlation_id区分归属。
type EnrollmentCommand struct {
	CorrelationID string           `json:"correlation_id"`
	Status        EnrollmentStatus `json:"status"`
	SubjectName   string           `json:"subject_name"`
	FingerprintID *int             `json:"fingerprint_id,omitempty"`
	Message       string           `json:"message,omitempty"`
	IssuedAt      int64            `json:"issued_at"` // Unix毫秒时间戳
	IssuedBy      string           `json:"issued_by,omitempty"`
}

// DevicePresence 设备在线状态文档，只由设备侧（经MQTT网关）写入
type DevicePresence struct {
	DeviceID        string          `json:"device_id"`
	LastHeartbeat   int64           `json:"last_heartbeat"` // Unix毫秒时间戳
	ReportedState   string          `json:"reported_state"` // online/busy，未知取值原样透传
	Capabilities    map[string]bool `json:"capabilities,omitempty"`
	Location        string          `json:"location,omitempty"`
	FirmwareVersion string          `json:"firmware_version,omitempty"`
	UptimeSeconds   int64           `json:"uptime_seconds,omitempty"`
}

// 设备自报状态取值
const (
	DeviceStateOnline = "online"
	DeviceStateBusy   = "busy"
)

// 设备能力标志
const (
	CapabilityEnrollment = "enrollment"
	CapabilityAttendance = "attendance"
	CapabilityAudio      = "audio"
)

// IsReachable 按心跳时间判断设备是否可达
func (p *DevicePresence) IsReachable(now time.Time, window time.Duration) bool {
	heartbeat := time.UnixMilli(p.LastHeartbeat)
	return now.Sub(heartbeat) < window
}

// MemberDocument 会员文档，仅在硬件确认登记成功后写入，
// 以设备分配的指纹ID作为文档键
type MemberDocument struct {
	FingerprintID       int    `json:"fingerprint_id"`
	Name                string `json:"name"`
	Phone               string `json:"phone,omitempty"`
	Age                 int    `json:"age,omitempty"`
	Email               string `json:"email,omitempty"`
	MembershipType      string `json:"membership_type,omitempty"`
	MemberNo            string `json:"member_no"`
	EnrollmentTimestamp int64  `json:"enrollment_timestamp"`
	EnrolledByDevice    string `json:"enrolled_by_device"`
}

// AttemptState 单次登记尝试在协调器内的状态
type AttemptState string

const (
	AttemptStateRequesting      AttemptState = "requesting"
	AttemptStateWaiting         AttemptState = "waiting"
	AttemptStateProcessing      AttemptState = "processing"
	AttemptStateSuccess         AttemptState = "success"
	AttemptStateFailed          AttemptState = "failed"
	AttemptStateCancelled       AttemptState = "cancelled"
	AttemptStateTimedOut        AttemptState = "timed_out"
	AttemptStateProtocolError   AttemptState = "protocol_error"
	AttemptStateConnectionError AttemptState = "connection_error"
)

// IsTerminal 判断尝试状态是否为终态
func (s AttemptState) IsTerminal() bool {
	switch s {
	case AttemptStateSuccess, AttemptStateFailed, AttemptStateCancelled,
		AttemptStateTimedOut, AttemptStateProtocolError, AttemptStateConnectionError:
		return true
	default:
		return false
	}
}

// EnrollmentSession 表示一次进行中的登记尝试
type EnrollmentSession struct {
	CorrelationID string       // 本次尝试的关联ID
	DeviceID      string       // 目标设备ID
	SubjectName   string       // 被登记人姓名
	StartTime     time.Time    // 开始时间
	State         AttemptState // 当前状态
	Message       string       // 设备上报的最新提示信息
	LastActivity  time.Time    // 最后活动时间
	mu            sync.Mutex   // 互斥锁，保护会话状态修改
}

// Snapshot 返回会话状态的只读副本
func (s *EnrollmentSession) Snapshot() (AttemptState, string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, s.Message, s.LastActivity
}

// EnrollmentSessionManager 管理各设备上进行中的登记尝试。
// 每台设备同一时刻最多一个活跃会话，对应信箱文档的单槽语义。
type EnrollmentSessionManager struct {
	sessions map[string]*EnrollmentSession // 以deviceID为键
	mu       sync.RWMutex                  // 读写锁保护会话映射
}

// NewEnrollmentSessionManager 创建一个新的登记会话管理器
func NewEnrollmentSessionManager() *EnrollmentSessionManager {
	return &EnrollmentSessionManager{
		sessions: make(map[string]*EnrollmentSession),
	}
}

// CreateSession 为设备创建一个新的登记会话
func (m *EnrollmentSessionManager) CreateSession(deviceID, correlationID, subjectName string) (*EnrollmentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 同一设备上已有活跃会话则拒绝
	if existing, exists := m.sessions[deviceID]; exists {
		return nil, fmt.Errorf("设备 %s 上已有进行中的登记: %s", deviceID, existing.CorrelationID)
	}

	session := &EnrollmentSession{
		CorrelationID: correlationID,
		DeviceID:      deviceID,
		SubjectName:   subjectName,
		StartTime:     time.Now(),
		State:         AttemptStateRequesting,
		LastActivity:  time.Now(),
	}

	m.sessions[deviceID] = session

	log.Printf("创建登记会话: 设备=%s, correlationID=%s, 姓名=%s", deviceID, correlationID, subjectName)

	return session, nil
}

// GetSession 获取设备上进行中的登记会话
func (m *EnrollmentSessionManager) GetSession(deviceID string) (*EnrollmentSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[deviceID]
	return session, exists
}

// UpdateSessionState 更新会话状态，只有correlationID匹配的更新才会生效
func (m *EnrollmentSessionManager) UpdateSessionState(deviceID, correlationID string, state AttemptState, message string) error {
	m.mu.RLock()
	session, exists := m.sessions[deviceID]
	m.mu.RUnlock()

	if !exists {
		return fmt.Errorf("设备 %s 上没有进行中的登记会话", deviceID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.CorrelationID != correlationID {
		return errors.New("correlationID不匹配，忽略状态更新")
	}

	session.State = state
	session.Message = message
	session.LastActivity = time.Now()

	return nil
}

// EndSession 结束登记会话并从映射中移除
func (m *EnrollmentSessionManager) EndSession(deviceID, correlationID string, state AttemptState) (*EnrollmentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[deviceID]
	if !exists {
		return nil, fmt.Errorf("设备 %s 上没有进行中的登记会话", deviceID)
	}

	// 只允许结束自己的会话，防止并发尝试互相清理
	if session.CorrelationID != correlationID {
		return nil, errors.New("correlationID不匹配，拒绝结束会话")
	}

	session.mu.Lock()
	session.State = state
	session.LastActivity = time.Now()
	session.mu.Unlock()

	duration := time.Since(session.StartTime)
	log.Printf("结束登记会话: 设备=%s, correlationID=%s, 结果=%s, 持续时间=%v",
		deviceID, correlationID, state, duration)

	delete(m.sessions, deviceID)

	return session, nil
}

// GetAllActiveSessions 获取所有活动会话
func (m *EnrollmentSessionManager) GetAllActiveSessions() []*EnrollmentSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	active := make([]*EnrollmentSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		active = append(active, session)
	}

	return active
}

// CleanupStaleSessions 清理长时间无活动的会话，返回清理数量。
// 正常情况下协调器自身的超时会先触发，这里是兜底。
func (m *EnrollmentSessionManager) CleanupStaleSessions(maxIdle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cleaned int
	now := time.Now()

	for deviceID, session := range m.sessions {
		session.mu.Lock()
		lastActivity := session.LastActivity
		state := session.State
		session.mu.Unlock()

		if now.Sub(lastActivity) > maxIdle {
			log.Printf("清理滞留登记会话: 设备=%s, 状态=%s, 最后活动=%v", deviceID, state, lastActivity)
			delete(m.sessions, deviceID)
			cleaned++
		}
	}

	return cleaned
}
