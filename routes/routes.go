package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/controllers"
	_ "github.com/IsiraAdithya/fitnessTrackingSystem/docs"
	"github.com/IsiraAdithya/fitnessTrackingSystem/middleware"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services/container"
)

// SetupRouter 初始化并返回配置好的路由
func SetupRouter(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *gin.Engine {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Accept", "Cache-Control", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 创建服务容器
	serviceContainer := container.NewServiceContainer(db, cfg, redisClient)
	// 初始化中间件
	middleware.InitAuthMiddleware(cfg)
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册需要认证的路由
	registerAuthenticatedRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	healthController := controllers.NewHealthCheckController()
	api.GET("/ping", healthController.Ping)

	// 认证路由，登录接口限流防止暴力破解
	api.POST("/auth/login", middleware.IPRateLimiter(1, 5), controllers.HandleJWTFunc(container, "login"))
}

// registerAuthenticatedRoutes 注册需要认证的路由
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 添加认证中间件
	auth := api.Group("/")
	auth.Use(middleware.AuthenticateSystemAdmin())

	// 指纹登记路由
	auth.Group("/enrollment").POST("/start", controllers.HandleEnrollmentFunc(container, "startEnrollment"))
	auth.Group("/enrollment").POST("/cancel", controllers.HandleEnrollmentFunc(container, "cancelEnrollment"))
	auth.Group("/enrollment").GET("/session", controllers.HandleEnrollmentFunc(container, "getEnrollmentSession"))
	auth.Group("/enrollment").GET("/stream", controllers.HandleEnrollmentFunc(container, "streamEnrollment"))

	// 设备路由
	auth.Group("/devices").GET("", controllers.HandleDeviceFunc(container, "getDevices"))
	auth.Group("/devices").GET("/presence", controllers.HandleDeviceFunc(container, "getDevicePresence"))
	auth.Group("/devices").GET("/presence/:serial", controllers.HandleDeviceFunc(container, "getDeviceAvailability"))
	auth.Group("/devices").GET("/:id", controllers.HandleDeviceFunc(container, "getDevice"))
	auth.Group("/devices").POST("", controllers.HandleDeviceFunc(container, "createDevice"))
	auth.Group("/devices").PUT("/:id", controllers.HandleDeviceFunc(container, "updateDevice"))
	auth.Group("/devices").DELETE("/:id", controllers.HandleDeviceFunc(container, "deleteDevice"))

	// 会员路由（会员只能经登记流程创建，没有POST）
	auth.Group("/members").GET("", controllers.HandleMemberFunc(container, "getMembers"))
	auth.Group("/members").GET("/:fingerprint_id", controllers.HandleMemberFunc(container, "getMember"))
	auth.Group("/members").PUT("/:fingerprint_id", controllers.HandleMemberFunc(container, "updateMember"))
	auth.Group("/members").DELETE("/:fingerprint_id", controllers.HandleMemberFunc(container, "deleteMember"))

	// 考勤路由
	auth.Group("/attendance").POST("/check-in", controllers.HandleAttendanceFunc(container, "checkIn"))
	auth.Group("/attendance").POST("/check-out", controllers.HandleAttendanceFunc(container, "checkOut"))
	auth.Group("/attendance").GET("/today", controllers.HandleAttendanceFunc(container, "getTodayRecords"))
	auth.Group("/attendance").GET("/member/:member_id", controllers.HandleAttendanceFunc(container, "getMemberRecords"))

	// 管理员路由
	auth.Group("/admin").GET("", controllers.HandleAdminFunc(container, "getAdmins"))
	auth.Group("/admin").GET("/:id", controllers.HandleAdminFunc(container, "getAdmin"))
	auth.Group("/admin").POST("", controllers.HandleAdminFunc(container, "createAdmin"))
	auth.Group("/admin").PUT("/:id", controllers.HandleAdminFunc(container, "updateAdmin"))
	auth.Group("/admin").DELETE("/:id", controllers.HandleAdminFunc(container, "deleteAdmin"))
}
