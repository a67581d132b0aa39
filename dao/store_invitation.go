package dao

import (
	"context"
	"time"

	"github.com/loomworks/loomspace/dao/model"
)

// invitation.Store implementation, plus the cronjob sweep.

func (s *Store) FindInvitationByCode(ctx context.Context, code string) (*model.Invitation, error) {
	var inv model.Invitation
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&inv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (s *Store) MarkInvitationUsed(ctx context.Context, invitationID, acceptorID uint) error {
	now := time.Now()
	return translate(s.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("id = ?", invitationID).
		Updates(map[string]any{
			"used":        true,
			"accepted_by": acceptorID,
			"accepted_at": now,
		}).Error)
}

func (s *Store) CreateInvitation(ctx context.Context, inv *model.Invitation) error {
	return translate(s.db.WithContext(ctx).Create(inv).Error)
}

func (s *Store) FindUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *Store) UpdateUserDisplayName(ctx context.Context, id uint, displayName string) error {
	return translate(s.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("nickname", displayName).Error)
}

func (s *Store) FindOnboarding(ctx context.Context, userID uint) (*model.OnboardingState, error) {
	var state model.OnboardingState
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		return nil, translate(err)
	}
	return &state, nil
}

func (s *Store) FindWorkspace(ctx context.Context, id uint) (*model.Workspace, error) {
	var ws model.Workspace
	err := s.db.WithContext(ctx).First(&ws, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &ws, nil
}

func (s *Store) FindProject(ctx context.Context, id uint) (*model.Project, error) {
	var project model.Project
	err := s.db.WithContext(ctx).First(&project, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &project, nil
}

func (s *Store) CreateWorkspace(ctx context.Context, ws *model.Workspace) error {
	return translate(s.db.WithContext(ctx).Create(ws).Error)
}

func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) FindMembership(ctx context.Context, projectID, userID uint) (*model.ProjectMembership, error) {
	var m model.ProjectMembership
	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&m).Error
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *Store) CreateMembership(ctx context.Context, m *model.ProjectMembership) error {
	return translate(s.db.WithContext(ctx).Create(m).Error)
}

// DeleteExpiredInvitations removes unused invitations whose expiry passed
// before the cutoff.
func (s *Store) DeleteExpiredInvitations(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("used = ? AND expires_at < ?", false, before).
		Delete(&model.Invitation{})
	return res.RowsAffected, translate(res.Error)
}
