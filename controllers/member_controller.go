package controllers

import (
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

// InterfaceMemberController 定义会员控制器接口。
// 会员记录只能经指纹登记流程创建，控制器不提供Create。
type InterfaceMemberController interface {
	GetMembers()
	GetMember()
	UpdateMember()
	DeleteMember()
}

// MemberController 处理会员相关的请求
type MemberController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewMemberController 创建一个新的会员控制器
func NewMemberController(ctx *gin.Context, container *container.ServiceContainer) *MemberController {
	return &MemberController{
		Ctx:       ctx,
		Container: container,
	}
}

// HandleMemberFunc 返回一个处理会员请求的Gin处理函数
func HandleMemberFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewMemberController(ctx, container)

		switch method {
		case "getMembers":
			controller.GetMembers()
		case "getMember":
			controller.GetMember()
		case "updateMember":
			controller.UpdateMember()
		case "deleteMember":
			controller.DeleteMember()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. GetMembers 分页获取会员列表
// @Summary 获取会员列表
// @Description 分页获取本场馆的会员列表
// @Tags member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {array} models.Member
// @Failure 500 {object} ErrorResponse
// @Router /members [get]
func (c *MemberController) GetMembers() {
	var query models.PaginationQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ParamError(c.Ctx, "分页参数错误: "+err.Error())
		return
	}

	memberService := c.Container.GetService("member").(services.InterfaceMemberService)
	cfg := c.Container.GetService("config").(*config.Config)

	members, pagination, err := memberService.GetMembers(cfg.GymScopeID, &query)
	if err != nil {
		response.FailWithMessage(c.Ctx, code.ErrDatabase, "获取会员列表失败: "+err.Error(), nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"members":    members,
		"pagination": pagination,
	})
}

// 2. GetMember 根据指纹ID获取会员详情
// @Summary 获取单个会员
// @Description 根据指纹ID获取会员信息
// @Tags member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param fingerprint_id path int true "指纹ID"
// @Success 200 {object} models.Member
// @Failure 404 {object} ErrorResponse
// @Router /members/{fingerprint_id} [get]
func (c *MemberController) GetMember() {
	fingerprintID, err := strconv.Atoi(c.Ctx.Param("fingerprint_id"))
	if err != nil {
		response.ParamError(c.Ctx, "无效的指纹ID")
		return
	}

	memberService := c.Container.GetService("member").(services.InterfaceMemberService)

	member, err := memberService.GetMemberByFingerprint(fingerprintID)
	if err != nil {
		response.Fail(c.Ctx, code.ErrMemberNotFound, nil)
		return
	}

	response.Success(c.Ctx, member)
}

// 3. UpdateMember 更新会员信息
// @Summary 更新会员
// @Description 更新会员信息；指纹ID和会员号不可修改
// @Tags member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param fingerprint_id path int true "指纹ID"
// @Param request body map[string]interface{} true "更新字段"
// @Success 200 {object} models.Member
// @Failure 400 {object} ErrorResponse
// @Router /members/{fingerprint_id} [put]
func (c *MemberController) UpdateMember() {
	fingerprintID, err := strconv.Atoi(c.Ctx.Param("fingerprint_id"))
	if err != nil {
		response.ParamError(c.Ctx, "无效的指纹ID")
		return
	}

	var updates map[string]interface{}
	if err := c.Ctx.ShouldBindJSON(&updates); err != nil {
		response.ParamError(c.Ctx, "请求参数错误: "+err.Error())
		return
	}

	memberService := c.Container.GetService("member").(services.InterfaceMemberService)

	member, err := memberService.UpdateMember(fingerprintID, updates)
	if err != nil {
		response.FailWithMessage(c.Ctx, code.ErrDatabase, err.Error(), nil)
		return
	}

	response.Success(c.Ctx, member)
}

// 4. DeleteMember 删除会员
// @Summary 删除会员
// @Description 删除会员记录，同时清理状态存储里的会员文档
// @Tags member
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param fingerprint_id path int true "指纹ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} ErrorResponse
// @Router /members/{fingerprint_id} [delete]
func (c *MemberController) DeleteMember() {
	fingerprintID, err := strconv.Atoi(c.Ctx.Param("fingerprint_id"))
	if err != nil {
		response.ParamError(c.Ctx, "无效的指纹ID")
		return
	}

	memberService := c.Container.GetService("member").(services.InterfaceMemberService)
	cfg := c.Container.GetService("config").(*config.Config)

	if err := memberService.DeleteMember(c.Ctx.Request.Context(), cfg.GymScopeID, fingerprintID); err != nil {
		response.Fail(c.Ctx, code.ErrMemberNotFound, nil)
		return
	}

	response.Success(c.Ctx, nil)
}
