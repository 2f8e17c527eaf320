package repository

import (
	"context"
	"errors"

	"family-news-service/internal/model"

	"gorm.io/gorm"
)

const RoleLeader = "leader"

// GroupRepository is the narrow slice of family-group data the billing core
// needs: who leads a group, and who belongs to it.
type GroupRepository interface {
	FindByID(ctx context.Context, groupID string) (*model.FamilyGroup, error)
	MembershipByUser(ctx context.Context, userID string) (*model.FamilyMember, error)
	IsMember(ctx context.Context, userID, groupID string) (bool, error)
	IsLeader(ctx context.Context, userID, groupID string) (bool, error)
}

type groupRepoImpl struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepoImpl{db: db}
}

func (r *groupRepoImpl) FindByID(ctx context.Context, groupID string) (*model.FamilyGroup, error) {
	var group model.FamilyGroup
	err := r.db.WithContext(ctx).
		Where("id = ?", groupID).
		First(&group).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepoImpl) MembershipByUser(ctx context.Context, userID string) (*model.FamilyMember, error) {
	var member model.FamilyMember
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *groupRepoImpl) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FamilyMember{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Count(&count).Error
	return count > 0, err
}

func (r *groupRepoImpl) IsLeader(ctx context.Context, userID, groupID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.FamilyMember{}).
		Where("user_id = ? AND group_id = ? AND role = ?", userID, groupID, RoleLeader).
		Count(&count).Error
	return count > 0, err
}
