// Package invitation implements the invitation lifecycle: creation with a
// mailed single-use code, and acceptance, which for first-time users drives
// full workspace/project provisioning.
package invitation

import (
	"context"

	"github.com/loomworks/loomspace/dao/model"
)

// Store is the persistence surface of the workflow. Lookups return
// apperr.ErrNotFound when no row matches; creates return apperr.ErrConflict
// on a unique-key violation.
type Store interface {
	FindInvitationByCode(ctx context.Context, code string) (*model.Invitation, error)
	MarkInvitationUsed(ctx context.Context, invitationID, acceptorID uint) error
	CreateInvitation(ctx context.Context, inv *model.Invitation) error

	FindUser(ctx context.Context, id uint) (*model.User, error)
	UpdateUserDisplayName(ctx context.Context, id uint, displayName string) error
	FindOnboarding(ctx context.Context, userID uint) (*model.OnboardingState, error)

	FindWorkspace(ctx context.Context, id uint) (*model.Workspace, error)
	FindProject(ctx context.Context, id uint) (*model.Project, error)
	CreateWorkspace(ctx context.Context, ws *model.Workspace) error
	CreateProject(ctx context.Context, p *model.Project) error

	FindMembership(ctx context.Context, projectID, userID uint) (*model.ProjectMembership, error)
	CreateMembership(ctx context.Context, m *model.ProjectMembership) error
}

// Mailer sends the invitation code. Mail failure never fails the operation
// that triggered it.
type Mailer interface {
	SendInvitation(email, inviterName, projectName, code string) error
}

type (
	CreateRequest struct {
		ProjectID    uint
		InviterID    uint
		InviteeEmail string
		Role         model.Role
		TTLHours     int
	}

	AcceptRequest struct {
		Code        string
		CallerID    uint
		DisplayName string
	}

	UserType string
)

const (
	UserTypeNew      UserType = "new"
	UserTypeExisting UserType = "existing"
)

type AcceptResult struct {
	Workspace           *model.Workspace         `json:"workspace"`
	Project             *model.Project           `json:"project"`
	Membership          *model.ProjectMembership `json:"membership"`
	OnboardingCompleted bool                     `json:"onboarding_completed"`
	UserType            UserType                 `json:"user_type"`
}
