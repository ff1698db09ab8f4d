package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
)

// InterfaceMQTTBridgeService 定义MQTT设备网关接口
type InterfaceMQTTBridgeService interface {
	Connect() error
	Disconnect()
	SubscribeToTopics() error
	StartMailboxRelay(ctx context.Context) error
	PublishSystemMessage(messageType string, message map[string]interface{}) error
}

// MQTTBridgeService 是指纹设备和共享状态存储之间的网关。
// 设备侧只会说MQTT：心跳、打卡事件、登记状态都从MQTT进来，
// 网关把它们落到存储的presence文档、考勤表和命令信箱文档里；
// 反方向把协调器写进信箱的新命令转发到设备的命令主题。
type MQTTBridgeService struct {
	Config         *config.Config
	Store          InterfaceDocumentStore
	Attendance     InterfaceAttendanceService
	Client         mqtt.Client
	IsConnected    bool
	connectedMutex sync.RWMutex // 保护IsConnected字段的读写
	TopicHandlers  map[string]mqtt.MessageHandler
	ProcessedMsgs  *sync.Map  // 用于记录已处理的消息，防止重复处理
	PublishMutex   sync.Mutex // 用于保护MQTT消息发布
	relaySub       *DocumentSubscription
}

// 主题常量。设备序列号占据主题的第三段。
const (
	// 设备心跳主题
	TopicDeviceHeartbeat = "fitness/device/+/heartbeat"

	// 指纹打卡事件主题
	TopicDeviceAttendance = "fitness/device/+/attendance"

	// 设备上报的登记状态主题
	TopicDeviceEnrollStatus = "fitness/device/+/enroll/status"

	// 下发给设备的登记命令主题（网关发布）
	TopicDeviceEnrollCommandFmt = "fitness/device/%s/enroll/command"

	// 系统消息主题
	TopicSystemMessage = "fitness/system"
)

// 消息结构体定义
type (
	// HeartbeatMessage 设备心跳消息
	HeartbeatMessage struct {
		State           string          `json:"state"` // online/busy
		Capabilities    map[string]bool `json:"capabilities"`
		Location        string          `json:"location,omitempty"`
		FirmwareVersion string          `json:"firmware_version,omitempty"`
		UptimeSeconds   int64           `json:"uptime_seconds,omitempty"`
		Timestamp       int64           `json:"timestamp"`
	}

	// AttendanceEventMessage 指纹打卡事件消息
	AttendanceEventMessage struct {
		FingerprintID int    `json:"fingerprint_id"`
		Event         string `json:"event"` // check_in/check_out
		Timestamp     int64  `json:"timestamp"`
	}

	// EnrollStatusMessage 设备上报的登记进度消息
	EnrollStatusMessage struct {
		CorrelationID string `json:"correlation_id"`
		Status        string `json:"status"`
		FingerprintID *int   `json:"fingerprint_id,omitempty"`
		Message       string `json:"message,omitempty"`
		Timestamp     int64  `json:"timestamp"`
	}

	// SystemMessage 系统消息
	SystemMessage struct {
		Type      string      `json:"type"`
		Level     string      `json:"level"` // info/warning/error
		Message   string      `json:"message"`
		Data      interface{} `json:"data,omitempty"`
		Timestamp int64       `json:"timestamp"`
	}
)

// NewMQTTBridgeService 创建一个新的MQTT网关服务
func NewMQTTBridgeService(cfg *config.Config, store InterfaceDocumentStore, attendance InterfaceAttendanceService) InterfaceMQTTBridgeService {
	service := &MQTTBridgeService{
		Config:        cfg,
		Store:         store,
		Attendance:    attendance,
		TopicHandlers: make(map[string]mqtt.MessageHandler),
		IsConnected:   false,
		ProcessedMsgs: &sync.Map{},
	}

	// 设置MQTT客户端
	service.setupMQTTClient()

	// 设置主题处理程序
	service.setupTopicHandlers()

	// 启动消息去重清理任务
	go service.startMsgCleanupTask()

	return service
}

// setupMQTTClient 设置MQTT客户端
func (s *MQTTBridgeService) setupMQTTClient() {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Config.MQTTBrokerURL)
	// 使用唯一的客户端ID，避免同一服务多实例冲突
	opts.SetClientID(fmt.Sprintf("%s-%s-%d", s.Config.MQTTClientID, uuid.New().String()[:8], time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Second * 30)
	opts.SetKeepAlive(time.Second * 60)
	opts.SetPingTimeout(time.Second * 10)
	opts.SetCleanSession(true)
	opts.SetOrderMatters(true)

	opts.SetDefaultPublishHandler(func(client mqtt.Client, msg mqtt.Message) {
		log.Printf("[MQTT] 收到未处理的消息: topic=%s", msg.Topic())
	})

	// 添加用户名和密码
	if s.Config.MQTTUsername != "" {
		opts.SetUsername(s.Config.MQTTUsername)
		opts.SetPassword(s.Config.MQTTPassword)
	}

	// 添加TLS配置，支持SSL连接
	if strings.HasPrefix(s.Config.MQTTBrokerURL, "ssl://") || strings.HasPrefix(s.Config.MQTTBrokerURL, "tls://") || s.Config.MQTTSSLEnabled {
		log.Println("[MQTT] 使用TLS连接")
		tlsConfig := &tls.Config{
			InsecureSkipVerify: true, // 默认跳过验证，如有CA证书则使用
		}

		if s.Config.MQTTCACertPath != "" {
			log.Printf("[MQTT] 使用CA证书: %s", s.Config.MQTTCACertPath)
		}

		opts.SetTLSConfig(tlsConfig)
	}

	// 设置连接丢失回调
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("[MQTT] 连接丢失: %v", err)
		s.connectedMutex.Lock()
		s.IsConnected = false
		s.connectedMutex.Unlock()
	})

	// 设置连接建立回调
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("[MQTT] 成功连接到", s.Config.MQTTBrokerURL)
		s.connectedMutex.Lock()
		s.IsConnected = true
		s.connectedMutex.Unlock()

		// 订阅主题
		if err := s.SubscribeToTopics(); err != nil {
			log.Printf("[MQTT] 订阅主题失败: %v", err)
		}
	})

	// 设置重连回调
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("[MQTT] 正在尝试重连...")
	})

	// 创建客户端
	s.Client = mqtt.NewClient(opts)
}

// setupTopicHandlers 设置主题处理程序
func (s *MQTTBridgeService) setupTopicHandlers() {
	s.TopicHandlers[TopicDeviceHeartbeat] = s.handleHeartbeatMessage
	s.TopicHandlers[TopicDeviceAttendance] = s.handleAttendanceMessage
	s.TopicHandlers[TopicDeviceEnrollStatus] = s.handleEnrollStatusMessage
}

// Connect 连接到MQTT代理，带重试
func (s *MQTTBridgeService) Connect() error {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		token := s.Client.Connect()
		if token.WaitTimeout(10*time.Second) && token.Error() == nil {
			return nil
		}
		lastErr = token.Error()
		if lastErr == nil {
			lastErr = fmt.Errorf("连接超时")
		}
		log.Printf("[MQTT] 第%d次连接失败: %v", attempt, lastErr)
		time.Sleep(time.Duration(attempt) * 2 * time.Second)
	}
	return fmt.Errorf("连接MQTT代理失败: %v", lastErr)
}

// Disconnect 断开MQTT连接并停止信箱中继
func (s *MQTTBridgeService) Disconnect() {
	if s.relaySub != nil {
		s.relaySub.Close()
	}
	if s.Client != nil && s.Client.IsConnected() {
		s.Client.Disconnect(250)
	}
	s.connectedMutex.Lock()
	s.IsConnected = false
	s.connectedMutex.Unlock()
}

// SubscribeToTopics 订阅设备侧主题
func (s *MQTTBridgeService) SubscribeToTopics() error {
	for topic, handler := range s.TopicHandlers {
		token := s.Client.Subscribe(topic, 1, handler)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			return fmt.Errorf("订阅主题失败 [%s]: %v", topic, token.Error())
		}
		log.Printf("[MQTT] 已订阅主题: %s", topic)
	}
	return nil
}

// StartMailboxRelay 启动信箱到设备的命令中继。
// 订阅本场馆全部信箱文档的变更，把协调器写入的新命令（pending）
// 和取消（cancelled）转发到对应设备的命令主题；
// 设备自己上报导致的信箱变更不回传，避免回环。
func (s *MQTTBridgeService) StartMailboxRelay(ctx context.Context) error {
	sub, err := s.Store.SubscribePattern(ctx, MailboxKeyPattern(s.Config.GymScopeID))
	if err != nil {
		return err
	}
	s.relaySub = sub

	go func() {
		for update := range sub.Updates {
			var cmd models.EnrollmentCommand
			if err := json.Unmarshal(update.Payload, &cmd); err != nil {
				log.Printf("[MQTT] 解析信箱文档失败 [%s]: %v", update.Key, err)
				continue
			}

			// 只转发协调器侧的状态
			if cmd.Status != models.EnrollmentStatusPending && cmd.Status != models.EnrollmentStatusCancelled {
				continue
			}

			// 键格式 enroll:cmd:{scope}:{device}
			parts := strings.Split(update.Key, ":")
			if len(parts) != 4 {
				log.Printf("[MQTT] 信箱文档键格式异常: %s", update.Key)
				continue
			}
			deviceID := parts[3]

			topic := fmt.Sprintf(TopicDeviceEnrollCommandFmt, deviceID)
			if err := s.publish(topic, update.Payload); err != nil {
				log.Printf("[MQTT] 下发登记命令失败: 设备=%s, correlationID=%s, err=%v",
					deviceID, cmd.CorrelationID, err)
				continue
			}
			log.Printf("[MQTT] 已下发登记命令: 设备=%s, correlationID=%s, 状态=%s",
				deviceID, cmd.CorrelationID, cmd.Status)
		}
	}()

	log.Printf("[MQTT] 信箱中继已启动: scope=%s", s.Config.GymScopeID)
	return nil
}

// handleHeartbeatMessage 处理设备心跳，刷新presence文档
func (s *MQTTBridgeService) handleHeartbeatMessage(client mqtt.Client, msg mqtt.Message) {
	deviceID, ok := s.deviceIDFromTopic(msg.Topic())
	if !ok {
		return
	}

	var hb HeartbeatMessage
	if err := json.Unmarshal(msg.Payload(), &hb); err != nil {
		log.Printf("[MQTT] 解析心跳消息失败: 设备=%s, err=%v", deviceID, err)
		return
	}

	// 心跳时间以服务端时钟为准，设备时钟不可信
	presence := models.DevicePresence{
		DeviceID:        deviceID,
		LastHeartbeat:   time.Now().UnixMilli(),
		ReportedState:   hb.State,
		Capabilities:    hb.Capabilities,
		Location:        hb.Location,
		FirmwareVersion: hb.FirmwareVersion,
		UptimeSeconds:   hb.UptimeSeconds,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	scopeID := s.Config.GymScopeID
	if err := s.Store.PutDocument(ctx, PresenceKey(scopeID, deviceID), presence); err != nil {
		log.Printf("[MQTT] 写入presence文档失败: 设备=%s, err=%v", deviceID, err)
		return
	}
	if err := s.Store.AddToIndex(ctx, PresenceIndexKey(scopeID), deviceID); err != nil {
		log.Printf("[MQTT] 更新presence索引失败: 设备=%s, err=%v", deviceID, err)
	}
}

// handleAttendanceMessage 处理指纹打卡事件，落考勤记录
func (s *MQTTBridgeService) handleAttendanceMessage(client mqtt.Client, msg mqtt.Message) {
	deviceID, ok := s.deviceIDFromTopic(msg.Topic())
	if !ok {
		return
	}

	var event AttendanceEventMessage
	if err := json.Unmarshal(msg.Payload(), &event); err != nil {
		log.Printf("[MQTT] 解析打卡事件失败: 设备=%s, err=%v", deviceID, err)
		return
	}

	// 去重：同一设备同一指纹同一时间戳的事件只处理一次
	msgKey := fmt.Sprintf("att:%s:%d:%d", deviceID, event.FingerprintID, event.Timestamp)
	if _, loaded := s.ProcessedMsgs.LoadOrStore(msgKey, time.Now()); loaded {
		return
	}

	scopeID := s.Config.GymScopeID
	switch event.Event {
	case "check_in":
		if _, err := s.Attendance.CheckIn(event.FingerprintID, deviceID, scopeID, models.AttendanceSourceFingerprint); err != nil {
			log.Printf("[MQTT] 指纹签到失败: fingerprintID=%d, 设备=%s, err=%v", event.FingerprintID, deviceID, err)
		}
	case "check_out":
		if _, err := s.Attendance.CheckOut(event.FingerprintID, scopeID); err != nil {
			log.Printf("[MQTT] 指纹签退失败: fingerprintID=%d, 设备=%s, err=%v", event.FingerprintID, deviceID, err)
		}
	default:
		log.Printf("[MQTT] 未知打卡事件类型: %s, 设备=%s", event.Event, deviceID)
	}
}

// handleEnrollStatusMessage 处理设备上报的登记进度，写回信箱文档。
// 只有correlation_id与信箱当前命令一致的上报才会落地，迟到的旧上报直接丢弃。
func (s *MQTTBridgeService) handleEnrollStatusMessage(client mqtt.Client, msg mqtt.Message) {
	deviceID, ok := s.deviceIDFromTopic(msg.Topic())
	if !ok {
		return
	}

	var status EnrollStatusMessage
	if err := json.Unmarshal(msg.Payload(), &status); err != nil {
		log.Printf("[MQTT] 解析登记状态失败: 设备=%s, err=%v", deviceID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := MailboxKey(s.Config.GymScopeID, deviceID)
	var cmd models.EnrollmentCommand
	found, err := s.Store.GetDocument(ctx, key, &cmd)
	if err != nil {
		log.Printf("[MQTT] 读取信箱文档失败: 设备=%s, err=%v", deviceID, err)
		return
	}
	if !found {
		log.Printf("[MQTT] 设备上报了登记状态但信箱为空: 设备=%s, correlationID=%s", deviceID, status.CorrelationID)
		return
	}
	if cmd.CorrelationID != status.CorrelationID {
		// 上一次尝试的迟到消息
		log.Printf("[MQTT] 丢弃过期的登记状态: 设备=%s, 上报=%s, 当前=%s",
			deviceID, status.CorrelationID, cmd.CorrelationID)
		return
	}

	parsed, ok := models.ParseEnrollmentStatus(status.Status)
	if ok {
		cmd.Status = parsed
	} else {
		// 未知状态原样落地，由协调器判定为协议错误
		cmd.Status = models.EnrollmentStatus(status.Status)
	}
	if status.FingerprintID != nil {
		cmd.FingerprintID = status.FingerprintID
	}
	cmd.Message = status.Message

	if err := s.Store.PutDocument(ctx, key, cmd); err != nil {
		log.Printf("[MQTT] 写回信箱文档失败: 设备=%s, err=%v", deviceID, err)
		return
	}
	log.Printf("[MQTT] 登记状态已落地: 设备=%s, correlationID=%s, 状态=%s",
		deviceID, status.CorrelationID, status.Status)
}

// PublishSystemMessage 发布系统消息
func (s *MQTTBridgeService) PublishSystemMessage(messageType string, message map[string]interface{}) error {
	sysMsg := SystemMessage{
		Type:      messageType,
		Level:     "info",
		Message:   fmt.Sprintf("%v", message["message"]),
		Data:      message,
		Timestamp: time.Now().UnixMilli(),
	}

	payload, err := json.Marshal(sysMsg)
	if err != nil {
		return err
	}
	return s.publish(TopicSystemMessage, payload)
}

// publish 发布消息，QoS 1
func (s *MQTTBridgeService) publish(topic string, payload []byte) error {
	s.PublishMutex.Lock()
	defer s.PublishMutex.Unlock()

	token := s.Client.Publish(topic, 1, false, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// deviceIDFromTopic 从主题中取出设备序列号，格式 fitness/device/{id}/...
func (s *MQTTBridgeService) deviceIDFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[2] == "" {
		log.Printf("[MQTT] 主题格式异常: %s", topic)
		return "", false
	}
	return parts[2], true
}

// startMsgCleanupTask 定期清理消息去重记录
func (s *MQTTBridgeService) startMsgCleanupTask() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-30 * time.Minute)
		s.ProcessedMsgs.Range(func(key, value interface{}) bool {
			if t, ok := value.(time.Time); ok && t.Before(cutoff) {
				s.ProcessedMsgs.Delete(key)
			}
			return true
		})
	}
}
