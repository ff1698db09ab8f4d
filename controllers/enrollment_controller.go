package controllers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/internal/error/code"
	"github.com/IsiraAdithya/fitnessTrackingSystem/internal/error/response"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services/container"
)

// InterfaceEnrollmentController 定义指纹登记控制器接口
type InterfaceEnrollmentController interface {
	StartEnrollment()
	CancelEnrollment()
	GetEnrollmentSession()
	StreamEnrollment()
}

// EnrollmentController 处理指纹登记相关的请求
type EnrollmentController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewEnrollmentController 创建一个新的登记控制器
func NewEnrollmentController(ctx *gin.Context, container *container.ServiceContainer) *EnrollmentController {
	return &EnrollmentController{
		Ctx:       ctx,
		Container: container,
	}
}

// StartEnrollmentRequest 发起登记请求
type StartEnrollmentRequest struct {
	DeviceID       string `json:"device_id" binding:"required" example:"FP2024060001"`
	Name           string `json:"name" binding:"required" example:"张三"`
	Phone          string `json:"phone" example:"13800138000"`
	Email          string `json:"email" example:"zhangsan@example.com"`
	Age            int    `json:"age" example:"28"`
	MembershipType string `json:"membership_type" example:"basic"` // basic, standard, premium
}

// CancelEnrollmentRequest 取消登记请求
type CancelEnrollmentRequest struct {
	DeviceID string `json:"device_id" binding:"required" example:"FP2024060001"`
	Reason   string `json:"reason" example:"会员改主意了"`
}

// HandleEnrollmentFunc 返回一个处理登记请求的Gin处理函数
func HandleEnrollmentFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewEnrollmentController(ctx, container)

		switch method {
		case "startEnrollment":
			controller.StartEnrollment()
		case "cancelEnrollment":
			controller.CancelEnrollment()
		case "getEnrollmentSession":
			controller.GetEnrollmentSession()
		case "streamEnrollment":
			controller.StreamEnrollment()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. StartEnrollment 发起一次指纹登记
// @Summary 发起指纹登记
// @Description 在指定设备上发起指纹登记，阻塞直到登记完成、失败或超时
// @Tags enrollment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StartEnrollmentRequest true "登记请求"
// @Success 200 {object} services.EnrollmentResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /enrollment/start [post]
func (c *EnrollmentController) StartEnrollment() {
	var req StartEnrollmentRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "请求参数错误: "+err.Error())
		return
	}

	enrollmentService := c.Container.GetService("enrollment").(services.InterfaceEnrollmentService)
	cfg := c.Container.GetService("config").(*config.Config)

	attrs := services.EnrolleeAttributes{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		Age:            req.Age,
		MembershipType: req.MembershipType,
		Operator:       c.operatorID(),
	}

	// 阻塞调用：请求会一直挂到登记走到终态
	result, err := enrollmentService.BeginEnrollment(c.Ctx.Request.Context(), cfg.GymScopeID, req.DeviceID, attrs)
	if err != nil {
		c.failEnrollment(err)
		return
	}

	response.Success(c.Ctx, result)
}

// 2. CancelEnrollment 取消设备上进行中的登记
// @Summary 取消指纹登记
// @Description 取消指定设备上进行中的登记；登记已结束时为无害的空操作
// @Tags enrollment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CancelEnrollmentRequest true "取消请求"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Router /enrollment/cancel [post]
func (c *EnrollmentController) CancelEnrollment() {
	var req CancelEnrollmentRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "请求参数错误: "+err.Error())
		return
	}

	enrollmentService := c.Container.GetService("enrollment").(services.InterfaceEnrollmentService)
	cfg := c.Container.GetService("config").(*config.Config)

	err := enrollmentService.CancelEnrollment(c.Ctx.Request.Context(), cfg.GymScopeID, req.DeviceID, req.Reason)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveEnrollment) {
			response.Fail(c.Ctx, code.ErrEnrollSessionNotFound, nil)
			return
		}
		c.failEnrollment(err)
		return
	}

	response.Success(c.Ctx, nil)
}

// 3. GetEnrollmentSession 查询设备上进行中的登记会话
// @Summary 查询登记会话
// @Description 查询指定设备上进行中的登记会话状态
// @Tags enrollment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param device_id query string true "设备序列号"
// @Success 200 {object} models.EnrollmentSession
// @Failure 404 {object} ErrorResponse
// @Router /enrollment/session [get]
func (c *EnrollmentController) GetEnrollmentSession() {
	deviceID := c.Ctx.Query("device_id")
	if deviceID == "" {
		response.ParamError(c.Ctx, "缺少device_id参数")
		return
	}

	enrollmentService := c.Container.GetService("enrollment").(services.InterfaceEnrollmentService)

	session, found := enrollmentService.GetSession(deviceID)
	if !found {
		response.Fail(c.Ctx, code.ErrEnrollSessionNotFound, nil)
		return
	}

	response.Success(c.Ctx, session)
}

// 4. StreamEnrollment 以SSE推送设备信箱的每次变更
// @Summary 订阅登记进度
// @Description 以Server-Sent Events持续推送指定设备信箱文档的每次变更
// @Tags enrollment
// @Produce text/event-stream
// @Security BearerAuth
// @Param device_id query string true "设备序列号"
// @Success 200 {string} string "SSE流"
// @Failure 400 {object} ErrorResponse
// @Router /enrollment/stream [get]
func (c *EnrollmentController) StreamEnrollment() {
	deviceID := c.Ctx.Query("device_id")
	if deviceID == "" {
		response.ParamError(c.Ctx, "缺少device_id参数")
		return
	}

	enrollmentService := c.Container.GetService("enrollment").(services.InterfaceEnrollmentService)
	cfg := c.Container.GetService("config").(*config.Config)

	updates := make(chan services.EnrollmentUpdate, 8)
	unsubscribe, err := enrollmentService.ObserveEnrollment(c.Ctx.Request.Context(), cfg.GymScopeID, deviceID,
		func(update services.EnrollmentUpdate) {
			select {
			case updates <- update:
			default:
				// 客户端消费太慢，丢弃中间状态，终态会再推
			}
		})
	if err != nil {
		c.failEnrollment(err)
		return
	}
	defer unsubscribe()

	c.Ctx.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Ctx.Writer.Header().Set("Cache-Control", "no-cache")
	c.Ctx.Writer.Header().Set("Connection", "keep-alive")

	c.Ctx.Stream(func(w io.Writer) bool {
		select {
		case update := <-updates:
			c.Ctx.SSEvent("enrollment", update)
			return true
		case <-c.Ctx.Request.Context().Done():
			return false
		}
	})
}

// failEnrollment 把协调器的类型化错误翻译成错误码响应
func (c *EnrollmentController) failEnrollment(err error) {
	var validationErr *services.ValidationError
	var unavailableErr *services.DeviceUnavailableError
	var timeoutErr *services.EnrollmentTimeoutError
	var hardwareErr *services.HardwareEnrollmentError
	var cancelledErr *services.UserCancelledError
	var protocolErr *services.DeviceProtocolError
	var connectionErr *services.ConnectionError

	switch {
	case errors.As(err, &validationErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollValidation, err.Error(), nil)
	case errors.As(err, &unavailableErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollDeviceUnavailable, err.Error(), nil)
	case errors.As(err, &timeoutErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollTimeout, err.Error(), nil)
	case errors.As(err, &hardwareErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollHardwareFailed, err.Error(), nil)
	case errors.As(err, &cancelledErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollCancelled, err.Error(), nil)
	case errors.As(err, &protocolErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollProtocol, err.Error(), nil)
	case errors.As(err, &connectionErr):
		response.FailWithMessage(c.Ctx, code.ErrEnrollConnection, err.Error(), nil)
	default:
		response.FailWithMessage(c.Ctx, code.ErrUnknown, err.Error(), nil)
	}
}

// operatorID 从认证上下文里取发起操作的管理员标识
func (c *EnrollmentController) operatorID() string {
	if userID, exists := c.Ctx.Get("userID"); exists {
		return fmt.Sprintf("admin:%v", userID)
	}
	return ""
}
