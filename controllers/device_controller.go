package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services/container"
)

// InterfaceDeviceController 定义设备控制器接口
type InterfaceDeviceController interface {
	GetDevices()
	GetDevice()
	CreateDevice()
	UpdateDevice()
	DeleteDevice()
	GetDevicePresence()
	GetDeviceAvailability()
}

// DeviceController 处理设备相关的请求
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController 创建一个新的设备控制器
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// DeviceRequest 表示设备注册请求结构
type DeviceRequest struct {
	Name            string `json:"name" binding:"required" example:"前台指纹机"`
	SerialNumber    string `json:"serial_number" binding:"required" example:"FP2024060001"`
	Location        string `json:"location" example:"前台接待处"`
	FirmwareVersion string `json:"firmware_version" example:"1.2.0"`
}

// HandleDeviceFunc 返回一个处理设备请求的Gin处理函数
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "getDevices":
			controller.GetDevices()
		case "getDevice":
			controller.GetDevice()
		case "createDevice":
			controller.CreateDevice()
		case "updateDevice":
			controller.UpdateDevice()
		case "deleteDevice":
			controller.DeleteDevice()
		case "getDevicePresence":
			controller.GetDevicePresence()
		case "getDeviceAvailability":
			controller.GetDeviceAvailability()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. GetDevices 获取所有设备列表
// @Summary 获取所有设备
// @Description 获取注册表中所有指纹设备的列表
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Device
// @Failure 500 {object} ErrorResponse
// @Router /devices [get]
func (c *DeviceController) GetDevices() {
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	cfg := c.Container.GetService("config").(*config.Config)

	devices, err := deviceService.GetAllDevices(cfg.GymScopeID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "获取设备列表失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    devices,
	})
}

// 2. GetDevice 获取单个设备详情
// @Summary 获取单个设备
// @Description 根据ID获取设备注册信息
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "设备ID"
// @Success 200 {object} models.Device
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /devices/{id} [get]
func (c *DeviceController) GetDevice() {
	id := c.Ctx.Param("id")
	deviceID, err := strconv.Atoi(id)
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.GetDeviceByID(uint(deviceID))
	if err != nil {
		c.Ctx.JSON(http.StatusNotFound, gin.H{
			"code":    404,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    device,
	})
}

// 3. CreateDevice 创建新设备
// @Summary 创建新设备
// @Description 注册一台新的指纹设备，序列号必须与设备上报心跳时使用的序列号一致
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DeviceRequest true "设备信息"
// @Success 200 {object} models.Device
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /devices [post]
func (c *DeviceController) CreateDevice() {
	var req DeviceRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "请求参数错误: " + err.Error(),
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	cfg := c.Container.GetService("config").(*config.Config)

	device := models.Device{
		Name:            req.Name,
		SerialNumber:    req.SerialNumber,
		GymID:           cfg.GymScopeID,
		Location:        req.Location,
		FirmwareVersion: req.FirmwareVersion,
	}

	if err := deviceService.CreateDevice(&device); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    device,
	})
}

// 4. UpdateDevice 更新设备信息
// @Summary 更新设备
// @Description 更新设备的注册信息
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "设备ID"
// @Param request body map[string]interface{} true "更新字段"
// @Success 200 {object} models.Device
// @Failure 400 {object} ErrorResponse
// @Router /devices/{id} [put]
func (c *DeviceController) UpdateDevice() {
	id := c.Ctx.Param("id")
	deviceID, err := strconv.Atoi(id)
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	var updates map[string]interface{}
	if err := c.Ctx.ShouldBindJSON(&updates); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "请求参数错误: " + err.Error(),
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.UpdateDevice(uint(deviceID), updates)
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    device,
	})
}

// 5. DeleteDevice 删除设备
// @Summary 删除设备
// @Description 从注册表中删除设备
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "设备ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} ErrorResponse
// @Router /devices/{id} [delete]
func (c *DeviceController) DeleteDevice() {
	id := c.Ctx.Param("id")
	deviceID, err := strconv.Atoi(id)
	if err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的设备ID",
			"data":    nil,
		})
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	if err := deviceService.DeleteDevice(uint(deviceID)); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    nil,
	})
}

// 6. GetDevicePresence 获取场馆内所有设备的实时在线状态
// @Summary 获取设备在线状态列表
// @Description 列出场馆内所有上报过心跳的设备及其在线状态
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.DevicePresence
// @Failure 500 {object} ErrorResponse
// @Router /devices/presence [get]
func (c *DeviceController) GetDevicePresence() {
	presenceService := c.Container.GetService("presence").(services.InterfacePresenceService)
	cfg := c.Container.GetService("config").(*config.Config)

	devices, err := presenceService.ListDevices(c.Ctx.Request.Context(), cfg.GymScopeID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "获取设备在线状态失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    devices,
	})
}

// 7. GetDeviceAvailability 查询单台设备能否发起登记
// @Summary 查询设备可用性
// @Description 按心跳可达窗口和自报状态判定设备当前能否接收登记命令
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param serial path string true "设备序列号"
// @Success 200 {object} services.AvailabilityResult
// @Failure 500 {object} ErrorResponse
// @Router /devices/{serial}/availability [get]
func (c *DeviceController) GetDeviceAvailability() {
	serial := c.Ctx.Param("serial")

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	cfg := c.Container.GetService("config").(*config.Config)

	result, err := deviceService.GetDeviceLiveStatus(c.Ctx.Request.Context(), cfg.GymScopeID, serial)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询设备可用性失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "成功",
		"data":    result,
	})
}
