package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/internal/error/code"
	"github.com/IsiraAdithya/fitnessTrackingSystem/internal/error/response"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services"
	"github.com/IsiraAdithya/fitnessTrackingSystem/services/container"
)

// InterfaceAttendanceController 定义考勤控制器接口
type InterfaceAttendanceController interface {
	CheckIn()
	CheckOut()
	GetTodayRecords()
	GetMemberRecords()
}

// AttendanceController 处理考勤相关的请求。
// 指纹打卡走MQTT网关自动入库，这里是前台手工补录和查询的入口。
type AttendanceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewAttendanceController 创建一个新的考勤控制器
func NewAttendanceController(ctx *gin.Context, container *container.ServiceContainer) *AttendanceController {
	return &AttendanceController{
		Ctx:       ctx,
		Container: container,
	}
}

// CheckInRequest 手工签到请求
type CheckInRequest struct {
	MemberID int `json:"member_id" binding:"required" example:"42"`
}

// CheckOutRequest 手工签退请求
type CheckOutRequest struct {
	MemberID int `json:"member_id" binding:"required" example:"42"`
}

// HandleAttendanceFunc 返回一个处理考勤请求的Gin处理函数
func HandleAttendanceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewAttendanceController(ctx, container)

		switch method {
		case "checkIn":
			controller.CheckIn()
		case "checkOut":
			controller.CheckOut()
		case "getTodayRecords":
			controller.GetTodayRecords()
		case "getMemberRecords":
			controller.GetMemberRecords()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. CheckIn 手工签到
// @Summary 手工签到
// @Description 前台为会员手工补录签到
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckInRequest true "签到请求"
// @Success 200 {object} models.AttendanceRecord
// @Failure 400 {object} ErrorResponse
// @Router /attendance/check-in [post]
func (c *AttendanceController) CheckIn() {
	var req CheckInRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "请求参数错误: "+err.Error())
		return
	}

	attendanceService := c.Container.GetService("attendance").(services.InterfaceAttendanceService)
	cfg := c.Container.GetService("config").(*config.Config)

	record, err := attendanceService.CheckIn(req.MemberID, "", cfg.GymScopeID, models.AttendanceSourceManual)
	if err != nil {
		if errors.Is(err, services.ErrAlreadyCheckedIn) {
			response.Fail(c.Ctx, code.ErrAlreadyCheckedIn, nil)
			return
		}
		response.FailWithMessage(c.Ctx, code.ErrDatabase, err.Error(), nil)
		return
	}

	response.Success(c.Ctx, record)
}

// 2. CheckOut 手工签退
// @Summary 手工签退
// @Description 前台为会员手工补录签退
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckOutRequest true "签退请求"
// @Success 200 {object} models.AttendanceRecord
// @Failure 400 {object} ErrorResponse
// @Router /attendance/check-out [post]
func (c *AttendanceController) CheckOut() {
	var req CheckOutRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "请求参数错误: "+err.Error())
		return
	}

	attendanceService := c.Container.GetService("attendance").(services.InterfaceAttendanceService)
	cfg := c.Container.GetService("config").(*config.Config)

	record, err := attendanceService.CheckOut(req.MemberID, cfg.GymScopeID)
	if err != nil {
		if errors.Is(err, services.ErrNotCheckedIn) {
			response.Fail(c.Ctx, code.ErrNotCheckedIn, nil)
			return
		}
		response.FailWithMessage(c.Ctx, code.ErrDatabase, err.Error(), nil)
		return
	}

	response.Success(c.Ctx, record)
}

// 3. GetTodayRecords 获取今日考勤记录
// @Summary 获取今日考勤
// @Description 获取本场馆今天的全部考勤记录
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AttendanceRecord
// @Failure 500 {object} ErrorResponse
// @Router /attendance/today [get]
func (c *AttendanceController) GetTodayRecords() {
	attendanceService := c.Container.GetService("attendance").(services.InterfaceAttendanceService)
	cfg := c.Container.GetService("config").(*config.Config)

	records, err := attendanceService.GetTodayRecords(cfg.GymScopeID)
	if err != nil {
		response.FailWithMessage(c.Ctx, code.ErrDatabase, "获取考勤记录失败: "+err.Error(), nil)
		return
	}

	response.Success(c.Ctx, records)
}

// 4. GetMemberRecords 分页获取单个会员的考勤历史
// @Summary 获取会员考勤历史
// @Description 分页获取指定会员的考勤记录
// @Tags attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param member_id path int true "会员指纹ID"
// @Param pageNum query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {array} models.AttendanceRecord
// @Failure 400 {object} ErrorResponse
// @Router /attendance/member/{member_id} [get]
func (c *AttendanceController) GetMemberRecords() {
	memberID, err := strconv.Atoi(c.Ctx.Param("member_id"))
	if err != nil {
		response.ParamError(c.Ctx, "无效的会员ID")
		return
	}

	var query models.PaginationQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ParamError(c.Ctx, "分页参数错误: "+err.Error())
		return
	}

	attendanceService := c.Container.GetService("attendance").(services.InterfaceAttendanceService)

	records, pagination, err := attendanceService.GetMemberRecords(memberID, &query)
	if err != nil {
		response.FailWithMessage(c.Ctx, code.ErrDatabase, "获取考勤记录失败: "+err.Error(), nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"records":    records,
		"pagination": pagination,
	})
}
