package container

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config
	redis  *redis.Client

	// 基础服务
	jwtService   *services.JWTService
	cacheService services.InterfaceCacheService

	// 共享状态存储
	documentStore services.InterfaceDocumentStore

	// MQTT设备网关
	mqttBridgeService services.InterfaceMQTTBridgeService

	// 业务服务
	presenceService   services.InterfacePresenceService
	memberService     services.InterfaceMemberService
	enrollmentService services.InterfaceEnrollmentService
	attendanceService services.InterfaceAttendanceService
	deviceService     services.InterfaceDeviceService
	adminService      *services.AdminService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	if redisClient == nil {
		panic("Redis连接为空，状态存储不可用")
	}

	// 测试Redis连接。状态存储是登记协议的根基，连不上直接失败
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Redis连接测试失败: %v", err)
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
		redis:  redisClient,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化基础服务
	c.jwtService = services.NewJWTService(c.config)
	c.cacheService = services.NewCacheService(c.redis)

	// 初始化共享状态存储
	c.documentStore = services.NewRedisDocumentStore(c.redis)

	// 初始化业务服务
	c.presenceService = services.NewPresenceService(c.documentStore, c.config)
	c.memberService = services.NewMemberService(c.db, c.documentStore, c.config)
	c.attendanceService = services.NewAttendanceService(c.db, c.config)
	c.deviceService = services.NewDeviceService(c.db, c.config, c.cacheService, c.presenceService)
	c.adminService = services.NewAdminService(c.db, c.config)

	// 初始化登记协调器
	c.enrollmentService = services.NewEnrollmentService(c.db, c.config, c.documentStore,
		c.presenceService, c.memberService)

	// 初始化MQTT设备网关并连接
	c.mqttBridgeService = services.NewMQTTBridgeService(c.config, c.documentStore, c.attendanceService)
	if err := c.mqttBridgeService.Connect(); err != nil {
		log.Printf("MQTT网关连接失败: %v", err)
	}

	// 启动信箱到设备的命令中继
	if err := c.mqttBridgeService.StartMailboxRelay(context.Background()); err != nil {
		log.Printf("信箱中继启动失败: %v", err)
	}
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "cache":
		return c.cacheService
	case "document_store":
		return c.documentStore
	case "mqtt_bridge":
		return c.mqttBridgeService
	case "presence":
		return c.presenceService
	case "member":
		return c.memberService
	case "enrollment":
		return c.enrollmentService
	case "attendance":
		return c.attendanceService
	case "device":
		return c.deviceService
	case "admin":
		return c.adminService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
