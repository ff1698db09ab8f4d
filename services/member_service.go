package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/IsiraAdithya/fitnessTrackingSystem/config"
	"github.com/IsiraAdithya/fitnessTrackingSystem/models"
	"github.com/IsiraAdithya/fitnessTrackingSystem/utils"
)

// InterfaceMemberService defines the member service interface
type InterfaceMemberService interface {
	FinalizeEnrollment(ctx context.Context, scopeID string, attrs EnrolleeAttributes, fingerprintID int, deviceID string) (*models.Member, error)
	GetMemberByFingerprint(fingerprintID int) (*models.Member, error)
	GetMembers(gymID string, query *models.PaginationQuery) ([]models.Member, models.PaginationResult, error)
	UpdateMember(fingerprintID int, updates map[string]interface{}) (*models.Member, error)
	DeleteMember(ctx context.Context, scopeID string, fingerprintID int) error
}

// MemberService 提供会员相关的服务。
// 会员记录只能经登记协调器的成功路径创建，这里不提供独立的Create。
type MemberService struct {
	DB     *gorm.DB
	Store  InterfaceDocumentStore
	Config *config.Config
}

// NewMemberService 创建一个新的会员服务
func NewMemberService(db *gorm.DB, store InterfaceDocumentStore, cfg *config.Config) InterfaceMemberService {
	return &MemberService{
		DB:     db,
		Store:  store,
		Config: cfg,
	}
}

// FinalizeEnrollment 在硬件确认登记成功后落地会员记录。
// 以设备分配的指纹ID作为主键，保证硬件登记表和会员表一一对应；
// 同时写入状态存储的会员文档和数据库行。
func (s *MemberService) FinalizeEnrollment(ctx context.Context, scopeID string, attrs EnrolleeAttributes, fingerprintID int, deviceID string) (*models.Member, error) {
	// 指纹ID冲突说明硬件登记表和会员表已经脱节，直接报错
	var count int64
	if err := s.DB.Model(&models.Member{}).Where("id = ?", fingerprintID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("指纹ID %d 已被占用，硬件登记表与会员表不一致", fingerprintID)
	}

	memberNo, err := s.generateMemberNo()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	membershipType := models.MembershipType(attrs.MembershipType)
	if membershipType == "" {
		membershipType = models.MembershipTypeBasic
	}

	member := models.Member{
		ID:             fingerprintID,
		MemberNo:       memberNo,
		Name:           attrs.Name,
		Phone:          attrs.Phone,
		Email:          attrs.Email,
		Age:            attrs.Age,
		MembershipType: membershipType,
		GymID:          scopeID,
		EnrolledAt:     now,
		EnrolledBy:     deviceID,
	}

	// 先写状态存储的会员文档，再写数据库行
	doc := models.MemberDocument{
		FingerprintID:       fingerprintID,
		Name:                attrs.Name,
		Phone:               attrs.Phone,
		Age:                 attrs.Age,
		Email:               attrs.Email,
		MembershipType:      string(membershipType),
		MemberNo:            memberNo,
		EnrollmentTimestamp: now.UnixMilli(),
		EnrolledByDevice:    deviceID,
	}
	if err := s.Store.PutDocument(ctx, MemberKey(scopeID, fingerprintID), doc); err != nil {
		return nil, err
	}

	if err := s.DB.Create(&member).Error; err != nil {
		log.Printf("[会员] 会员文档已写入但数据库行创建失败: fingerprintID=%d, err=%v", fingerprintID, err)
		return nil, err
	}

	log.Printf("[会员] 登记完成: fingerprintID=%d, 会员号=%s, 姓名=%s, 设备=%s",
		fingerprintID, memberNo, attrs.Name, deviceID)

	return &member, nil
}

// GetMemberByFingerprint 根据指纹ID获取会员
func (s *MemberService) GetMemberByFingerprint(fingerprintID int) (*models.Member, error) {
	var member models.Member
	if err := s.DB.First(&member, fingerprintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("会员不存在")
		}
		return nil, err
	}
	return &member, nil
}

// GetMembers 分页获取会员列表
func (s *MemberService) GetMembers(gymID string, query *models.PaginationQuery) ([]models.Member, models.PaginationResult, error) {
	query.Normalize()

	db := s.DB.Model(&models.Member{})
	if gymID != "" {
		db = db.Where("gym_id = ?", gymID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	order := "created_at"
	if query.Desc {
		order = "created_at DESC"
	}

	var members []models.Member
	if err := db.Order(order).
		Offset((query.PageNum - 1) * query.PageSize).
		Limit(query.PageSize).
		Find(&members).Error; err != nil {
		return nil, models.PaginationResult{}, err
	}

	return members, models.NewPaginationResult(int(total), query.PageNum, query.PageSize), nil
}

// UpdateMember 更新会员信息
func (s *MemberService) UpdateMember(fingerprintID int, updates map[string]interface{}) (*models.Member, error) {
	member, err := s.GetMemberByFingerprint(fingerprintID)
	if err != nil {
		return nil, err
	}

	// 指纹ID和会员号都不允许改
	delete(updates, "id")
	delete(updates, "fingerprint_id")
	delete(updates, "member_no")

	if err := s.DB.Model(member).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.GetMemberByFingerprint(fingerprintID)
}

// DeleteMember 删除会员，同时清理状态存储里的会员文档
func (s *MemberService) DeleteMember(ctx context.Context, scopeID string, fingerprintID int) error {
	member, err := s.GetMemberByFingerprint(fingerprintID)
	if err != nil {
		return err
	}

	if err := s.Store.DeleteDocument(ctx, MemberKey(scopeID, fingerprintID)); err != nil {
		log.Printf("[会员] 删除会员文档失败: fingerprintID=%d, err=%v", fingerprintID, err)
	}

	return s.DB.Delete(member).Error
}

// generateMemberNo 生成不重复的会员号
func (s *MemberService) generateMemberNo() (string, error) {
	for i := 0; i < 5; i++ {
		memberNo := utils.GenerateMemberNo()
		var count int64
		if err := s.DB.Model(&models.Member{}).Where("member_no = ?", memberNo).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return memberNo, nil
		}
	}
	return "", errors.New("生成会员号失败，多次撞号")
}
