package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

// ErrNoActiveEnrollment 设备上没有可取消的登记
var ErrNoActiveEnrollment = errors.New("设备上没有进行中的登记")

// 设备锁的过期时间在登记超时之上留的余量，
// 保证锁一定在协调器自身超时之后才自然过期
const lockTTLSlack = 30 * time.Second

// 电话号码的宽松字符集
var phonePattern = regexp.MustCompile(`^[0-9+\-() ]{4,20}$`)

// EnrolleeAttributes 被登记人的信息
type EnrolleeAttributes struct {
	Name           string `json:"name"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
	Age            int    `json:"age,omitempty"`
	MembershipType string `json:"membership_type,omitempty"`
	Operator       string `json:"operator,omitempty"` // 发起登记的操作员，写入信箱的issued_by
}

// EnrollmentResult 登记成功的结果
type EnrollmentResult struct {
	FingerprintID int    `json:"fingerprint_id"`
	MemberKey     string `json:"member_key"` // 会员文档键，以指纹ID定位
	MemberNo      string `json:"member_no"`
}

// EnrollmentUpdate 信箱文档每次变更推给观察者的内容
type EnrollmentUpdate struct {
	Status        models.EnrollmentStatus `json:"status"`
	FingerprintID *int                    `json:"fingerprint_id,omitempty"`
	Message       string                  `json:"message,omitempty"`
}

// InterfaceEnrollmentService 定义指纹登记协调器接口
type InterfaceEnrollmentService interface {
	BeginEnrollment(ctx context.Context, scopeID, deviceID string, attrs EnrolleeAttributes) (*EnrollmentResult, error)
	CancelEnrollment(ctx context.Context, scopeID, deviceID, reason string) error
	ObserveEnrollment(ctx context.Context, scopeID, deviceID string, callback func(EnrollmentUpdate)) (func(), error)
	GetSession(deviceID string) (*models.EnrollmentSession, bool)
}

// EnrollmentService 指纹登记协调器。
// 和设备之间没有任何直连，全部通信走状态存储的命令信箱文档：
// 协调器写入命令，设备代理写回状态变更，协调器的订阅收到推送后推进状态机。
type EnrollmentService struct {
	DB       *gorm.DB
	Config   *config.Config
	Store    InterfaceDocumentStore
	Presence InterfacePresenceService
	Members  InterfaceMemberService
	Sessions *models.EnrollmentSessionManager

	// 单次登记的超时时间，设备失联时的最终兜底
	EnrollmentTimeout time.Duration
}

// NewEnrollmentService 创建一个新的登记协调器
func NewEnrollmentService(db *gorm.DB, cfg *config.Config, store InterfaceDocumentStore,
	presence InterfacePresenceService, members InterfaceMemberService) InterfaceEnrollmentService {
	service := &EnrollmentService{
		DB:                db,
		Config:            cfg,
		Store:             store,
		Presence:          presence,
		Members:           members,
		Sessions:          models.NewEnrollmentSessionManager(),
		EnrollmentTimeout: time.Duration(cfg.EnrollmentTimeoutSeconds) * time.Second,
	}

	// 启动滞留会话清理定时任务
	go service.startSessionCleanupTask()

	return service
}

// BeginEnrollment 发起一次指纹登记，阻塞直到观察到终态、超时或订阅故障。
// 校验和可用性检查失败在本地立即返回，不写任何文档；
// 命令写入之后的所有失败路径都不会留下会员记录。
func (s *EnrollmentService) BeginEnrollment(ctx context.Context, scopeID, deviceID string, attrs EnrolleeAttributes) (*EnrollmentResult, error) {
	// 1. 本地校验
	if err := validateEnrolleeAttributes(attrs); err != nil {
		return nil, err
	}

	// 2. 可用性门槛：设备必须在线且心跳可达
	avail, err := s.Presence.CheckAvailability(ctx, scopeID, deviceID)
	if err != nil {
		return nil, &ConnectionError{Cause: err}
	}
	if !avail.Available {
		return nil, &DeviceUnavailableError{DeviceID: deviceID, Reason: avail.Detail}
	}

	// 3. 生成关联ID：随机token加时间分量，跨客户端并发也不会撞
	correlationID := newCorrelationID()

	// 4. 设备级登记锁，收窄"检查-写入"窗口内两个操作员抢同一台设备的竞态。
	// 锁丢失（TTL过期）也不会串号，关联ID过滤仍然独立兜底。
	lockKey := EnrollLockKey(scopeID, deviceID)
	locked, err := s.Store.AcquireLock(ctx, lockKey, correlationID, s.EnrollmentTimeout+lockTTLSlack)
	if err != nil {
		return nil, &ConnectionError{Cause: err}
	}
	if !locked {
		return nil, &DeviceUnavailableError{DeviceID: deviceID, Reason: "设备上已有进行中的登记"}
	}
	defer func() {
		// 无论哪条路径结束都释放锁；用独立context保证调用方取消后也能释放
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.ReleaseLock(releaseCtx, lockKey, correlationID); err != nil {
			log.Printf("[登记] 释放设备锁失败: device=%s, err=%v", deviceID, err)
		}
	}()

	// 进程内会话登记，供前端轮询状态
	session, err := s.Sessions.CreateSession(deviceID, correlationID, attrs.Name)
	if err != nil {
		return nil, &DeviceUnavailableError{DeviceID: deviceID, Reason: "设备上已有进行中的登记"}
	}
	startedAt := session.StartTime

	// 5. 先订阅再写命令，避免设备响应太快时漏掉终态推送；
	// 新订阅上出现的旧文档推送会被关联ID过滤掉
	mailboxKey := MailboxKey(scopeID, deviceID)
	sub, err := s.Store.Subscribe(ctx, mailboxKey)
	if err != nil {
		s.Sessions.EndSession(deviceID, correlationID, models.AttemptStateConnectionError)
		return nil, &ConnectionError{Cause: err}
	}
	defer sub.Close()

	// 6. 覆盖写入命令信箱。单槽语义：上一次被遗弃的命令直接被顶掉
	command := models.EnrollmentCommand{
		CorrelationID: correlationID,
		Status:        models.EnrollmentStatusPending,
		SubjectName:   attrs.Name,
		IssuedAt:      time.Now().UnixMilli(),
		IssuedBy:      attrs.Operator,
	}
	if err := s.Store.PutDocument(ctx, mailboxKey, command); err != nil {
		s.Sessions.EndSession(deviceID, correlationID, models.AttemptStateConnectionError)
		return nil, &ConnectionError{Cause: err}
	}

	s.Sessions.UpdateSessionState(deviceID, correlationID, models.AttemptStateWaiting, "")

	log.Printf("[登记] 已下发登记命令: device=%s, correlationID=%s, 姓名=%s",
		deviceID, correlationID, attrs.Name)

	// 7. 等待终态。唯一的阻塞点：信箱推送 / 超时 / 订阅故障 / 调用方取消
	timer := time.NewTimer(s.EnrollmentTimeout)
	defer timer.Stop()

	for {
		select {
		case update, ok := <-sub.Updates:
			if !ok {
				return nil, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
					models.AttemptStateConnectionError, nil, "订阅通道意外关闭",
					&ConnectionError{Cause: errors.New("订阅通道意外关闭")})
			}

			var doc models.EnrollmentCommand
			if err := json.Unmarshal(update.Payload, &doc); err != nil {
				log.Printf("[登记] 信箱推送解析失败: device=%s, err=%v", deviceID, err)
				continue
			}

			// 关联ID不匹配的推送属于别的（并发或陈旧的）尝试，直接忽略。
			// 这是单槽信箱在竞态下不串号的关键。
			if doc.CorrelationID != correlationID {
				continue
			}

			result, settled, err := s.handleMatchedUpdate(ctx, scopeID, deviceID, correlationID, attrs, startedAt, &doc)
			if settled {
				return result, err
			}

		case <-timer.C:
			// 信箱文档保持原样：下一次尝试的关联ID检查自然会忽略它
			return nil, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
				models.AttemptStateTimedOut, nil, "等待设备响应超时",
				&EnrollmentTimeoutError{DeviceID: deviceID, CorrelationID: correlationID})

		case err := <-sub.Errs:
			return nil, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
				models.AttemptStateConnectionError, nil, err.Error(),
				&ConnectionError{Cause: err})

		case <-ctx.Done():
			return nil, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
				models.AttemptStateConnectionError, nil, ctx.Err().Error(),
				&ConnectionError{Cause: ctx.Err()})
		}
	}
}

// handleMatchedUpdate 处理关联ID匹配的信箱推送。
// settled为true时本次尝试已到终态，result/err即最终结果。
func (s *EnrollmentService) handleMatchedUpdate(ctx context.Context, scopeID, deviceID, correlationID string,
	attrs EnrolleeAttributes, startedAt time.Time, doc *models.EnrollmentCommand) (*EnrollmentResult, bool, error) {

	status, known := models.ParseEnrollmentStatus(string(doc.Status))
	if !known {
		// 未知状态值按协议违规终止，而不是静默跳过
		detail := fmt.Sprintf("未知状态值 %q", string(doc.Status))
		return nil, true, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
			models.AttemptStateProtocolError, nil, detail,
			&DeviceProtocolError{DeviceID: deviceID, Detail: detail})
	}

	switch status {
	case models.EnrollmentStatusPending:
		// 自己写入的命令被推送回来，继续等
		return nil, false, nil

	case models.EnrollmentStatusInProgress:
		// 设备已接手，进入硬件采集阶段；不结束，只更新进度
		s.Sessions.UpdateSessionState(deviceID, correlationID, models.AttemptStateProcessing, doc.Message)
		log.Printf("[登记] 设备开始采集: device=%s, correlationID=%s", deviceID, correlationID)
		return nil, false, nil

	case models.EnrollmentStatusCompleted:
		if doc.FingerprintID == nil {
			detail := "上报completed但没有指纹ID"
			return nil, true, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
				models.AttemptStateProtocolError, nil, detail,
				&DeviceProtocolError{DeviceID: deviceID, Detail: detail})
		}

		// 唯一的成功路径：硬件确认后才落地会员记录
		member, err := s.Members.FinalizeEnrollment(ctx, scopeID, attrs, *doc.FingerprintID, deviceID)
		if err != nil {
			return nil, true, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
				models.AttemptStateConnectionError, doc.FingerprintID, err.Error(),
				&ConnectionError{Cause: err})
		}

		s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
			models.AttemptStateSuccess, doc.FingerprintID, doc.Message, nil)
		return &EnrollmentResult{
			FingerprintID: *doc.FingerprintID,
			MemberKey:     MemberKey(scopeID, *doc.FingerprintID),
			MemberNo:      member.MemberNo,
		}, true, nil

	case models.EnrollmentStatusFailed:
		return nil, true, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
			models.AttemptStateFailed, nil, doc.Message,
			&HardwareEnrollmentError{DeviceID: deviceID, Message: doc.Message})

	case models.EnrollmentStatusCancelled:
		return nil, true, s.settle(scopeID, deviceID, correlationID, attrs, startedAt,
			models.AttemptStateCancelled, nil, doc.Message,
			&UserCancelledError{DeviceID: deviceID})
	}

	return nil, false, nil
}

// settle 统一的终态收口：结束会话、写审计记录，原样返回传入的错误。
// 每次尝试只会走到这里一次（select循环在终态后立即return）。
func (s *EnrollmentService) settle(scopeID, deviceID, correlationID string, attrs EnrolleeAttributes,
	startedAt time.Time, outcome models.AttemptState, fingerprintID *int, message string, cause error) error {

	s.Sessions.EndSession(deviceID, correlationID, outcome)
	s.recordAttempt(scopeID, deviceID, correlationID, attrs.Name, startedAt, outcome, fingerprintID, message)

	if cause != nil {
		log.Printf("[登记] 尝试结束: device=%s, correlationID=%s, 结果=%s, 原因=%v",
			deviceID, correlationID, outcome, cause)
	} else {
		log.Printf("[登记] 尝试结束: device=%s, correlationID=%s, 结果=%s",
			deviceID, correlationID, outcome)
	}

	return cause
}

// recordAttempt 写登记审计记录，尽力而为，失败不影响登记结果
func (s *EnrollmentService) recordAttempt(scopeID, deviceID, correlationID, subjectName string,
	startedAt time.Time, outcome models.AttemptState, fingerprintID *int, message string) {
	if s.DB == nil {
		return
	}

	record := models.EnrollmentRecord{
		CorrelationID: correlationID,
		DeviceID:      deviceID,
		GymID:         scopeID,
		SubjectName:   subjectName,
		Outcome:       outcome,
		Message:       message,
		FingerprintID: fingerprintID,
		StartedAt:     startedAt,
		Duration:      int(time.Since(startedAt).Seconds()),
	}

	if err := s.DB.Create(&record).Error; err != nil {
		log.Printf("[登记] 写审计记录失败: correlationID=%s, err=%v", correlationID, err)
	}
}

// CancelEnrollment 取消设备上进行中的登记。
// 往信箱写入cancelled既让协调器自己的订阅收口，也是通知设备中止采集的信号；
// 协作式取消，设备离线收不到时由协调器的超时兜底。
// 尝试已到终态后再取消是无害的空操作。
func (s *EnrollmentService) CancelEnrollment(ctx context.Context, scopeID, deviceID, reason string) error {
	mailboxKey := MailboxKey(scopeID, deviceID)

	var doc models.EnrollmentCommand
	found, err := s.Store.GetDocument(ctx, mailboxKey, &doc)
	if err != nil {
		return &ConnectionError{Cause: err}
	}
	if !found {
		return ErrNoActiveEnrollment
	}

	// 已到终态的槽位不再覆盖，取消只对活跃命令有意义
	if doc.Status.IsTerminal() {
		return nil
	}

	doc.Status = models.EnrollmentStatusCancelled
	if reason != "" {
		doc.Message = reason
	} else {
		doc.Message = "操作员取消"
	}

	if err := s.Store.PutDocument(ctx, mailboxKey, doc); err != nil {
		return &ConnectionError{Cause: err}
	}

	log.Printf("[登记] 已写入取消命令: device=%s, correlationID=%s, 原因=%s",
		deviceID, doc.CorrelationID, doc.Message)

	return nil
}

// ObserveEnrollment 被动观察设备信箱的每次变更，与是否有进行中的登记无关，
// 供前端状态面板使用。返回的函数用于退订。
func (s *EnrollmentService) ObserveEnrollment(ctx context.Context, scopeID, deviceID string, callback func(EnrollmentUpdate)) (func(), error) {
	sub, err := s.Store.Subscribe(ctx, MailboxKey(scopeID, deviceID))
	if err != nil {
		return nil, &ConnectionError{Cause: err}
	}

	go func() {
		for update := range sub.Updates {
			var doc models.EnrollmentCommand
			if err := json.Unmarshal(update.Payload, &doc); err != nil {
				continue
			}
			callback(EnrollmentUpdate{
				Status:        doc.Status,
				FingerprintID: doc.FingerprintID,
				Message:       doc.Message,
			})
		}
	}()

	return sub.Close, nil
}

// GetSession 获取设备上进行中的登记会话
func (s *EnrollmentService) GetSession(deviceID string) (*models.EnrollmentSession, bool) {
	return s.Sessions.GetSession(deviceID)
}

// startSessionCleanupTask 启动滞留会话清理定时任务
func (s *EnrollmentService) startSessionCleanupTask() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cleaned := s.Sessions.CleanupStaleSessions(s.EnrollmentTimeout + 2*time.Minute)
		if cleaned > 0 {
			log.Printf("[登记] 清理滞留会话: %d 个", cleaned)
		}
	}
}

// newCorrelationID 生成本次尝试的关联ID：随机token加时间分量
func newCorrelationID() string {
	return fmt.Sprintf("%s-%d", uuid.New().String(), time.Now().UnixNano())
}

// validateEnrolleeAttributes 校验被登记人信息，不合法时本地失败，不触达存储
func validateEnrolleeAttributes(attrs EnrolleeAttributes) error {
	name := strings.TrimSpace(attrs.Name)
	nameLen := len([]rune(name))
	if nameLen < 2 || nameLen > 50 {
		return &ValidationError{Field: "name", Reason: "长度须在2到50个字符之间"}
	}

	if attrs.Phone != "" && !phonePattern.MatchString(attrs.Phone) {
		return &ValidationError{Field: "phone", Reason: "包含非法字符或长度不符"}
	}

	if attrs.Age != 0 && (attrs.Age < 1 || attrs.Age > 120) {
		return &ValidationError{Field: "age", Reason: "须在1到120之间"}
	}

	return nil
}
