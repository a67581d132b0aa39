package invitation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/apperr"
	"github.com/loomworks/loomspace/pkg/logutils"
	"github.com/loomworks/loomspace/pkg/metrics"
	"github.com/loomworks/loomspace/pkg/provision"
)

const (
	// Code alphabet omits 0/O/1/I, codes are typed by hand.
	codeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	codeLength   = 8

	defaultTTLHours = 7 * 24

	// Names for the resources provisioned for a first-time user.
	newWorkspaceSuffix = "'s Workspace"
	newProjectName     = "Getting Started"
)

type Workflow struct {
	store        Store
	orchestrator *provision.Orchestrator
	mailer       Mailer
}

func NewWorkflow(store Store, orchestrator *provision.Orchestrator, mailer Mailer) *Workflow {
	return &Workflow{
		store:        store,
		orchestrator: orchestrator,
		mailer:       mailer,
	}
}

// NormalizeCode uppercases and trims an invitation code; codes are stored
// normalized and matched case-insensitively.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func newCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Errorf("invitation: read random: %w", err))
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// Create persists a new invitation for a project and mails the code to the
// invitee. The mail is best-effort.
func (w *Workflow) Create(ctx context.Context, req *CreateRequest) (*model.Invitation, error) {
	if req.InviteeEmail == "" {
		return nil, fmt.Errorf("%w: invitee email is required", apperr.ErrValidation)
	}
	project, err := w.store.FindProject(ctx, req.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("invited project: %w", err)
	}
	inviter, err := w.store.FindUser(ctx, req.InviterID)
	if err != nil {
		return nil, fmt.Errorf("inviter: %w", err)
	}

	ttl := req.TTLHours
	if ttl <= 0 {
		ttl = defaultTTLHours
	}
	role := req.Role
	if role == 0 {
		role = model.RoleUser
	}
	inv := &model.Invitation{
		Code:         newCode(),
		WorkspaceID:  project.WorkspaceID,
		ProjectID:    project.ID,
		InvitedBy:    req.InviterID,
		InviteeEmail: lo.ToPtr(strings.ToLower(req.InviteeEmail)),
		Role:         role,
		ExpiresAt:    time.Now().Add(time.Duration(ttl) * time.Hour),
	}
	if err := w.store.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	if w.mailer != nil {
		inviterName := inviter.Name
		if inviter.Nickname != nil {
			inviterName = *inviter.Nickname
		}
		if err := w.mailer.SendInvitation(req.InviteeEmail, inviterName, project.Name, inv.Code); err != nil {
			logutils.Log.Warnf("invitation: mail to %s failed: %v", req.InviteeEmail, err)
		}
	}
	return inv, nil
}

// Accept consumes an invitation code. First-time users get a workspace and a
// starter project provisioned before joining the invited project; users who
// already completed onboarding just gain the membership.
func (w *Workflow) Accept(ctx context.Context, req *AcceptRequest) (*AcceptResult, error) {
	result, err := w.accept(ctx, req)
	if err != nil {
		metrics.InvitationAcceptTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.InvitationAcceptTotal.WithLabelValues("accepted_" + string(result.UserType)).Inc()
	return result, nil
}

func (w *Workflow) accept(ctx context.Context, req *AcceptRequest) (*AcceptResult, error) {
	inv, err := w.store.FindInvitationByCode(ctx, NormalizeCode(req.Code))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: invitation code", apperr.ErrNotFound)
		}
		return nil, err
	}

	// Eligibility gates, each a distinct terminal rejection.
	if inv.InvitedBy == req.CallerID {
		return nil, fmt.Errorf("%w: cannot accept your own invitation", apperr.ErrForbidden)
	}
	if time.Now().After(inv.ExpiresAt) {
		return nil, fmt.Errorf("%w: invitation expired", apperr.ErrExpired)
	}
	if inv.Used {
		return nil, fmt.Errorf("%w: invitation already used", apperr.ErrConflict)
	}

	caller, err := w.store.FindUser(ctx, req.CallerID)
	if err != nil {
		return nil, fmt.Errorf("caller profile: %w", err)
	}
	if inv.InviteeEmail != nil && !strings.EqualFold(*inv.InviteeEmail, caller.Email) {
		return nil, fmt.Errorf("%w: invitation was issued to a different email", apperr.ErrForbidden)
	}

	needsOnboarding, err := w.needsOnboarding(ctx, req.CallerID)
	if err != nil {
		return nil, err
	}

	result := &AcceptResult{}
	if needsOnboarding {
		result.UserType = UserTypeNew
		if err := w.onboardAndProvision(ctx, req, result); err != nil {
			return nil, err
		}
	} else {
		result.UserType = UserTypeExisting
		result.OnboardingCompleted = true
		ws, err := w.store.FindWorkspace(ctx, inv.WorkspaceID)
		if err != nil {
			return nil, fmt.Errorf("invited workspace: %w", err)
		}
		result.Workspace = ws
	}

	membership, err := w.join(ctx, inv, req.CallerID, needsOnboarding)
	if err != nil {
		return nil, err
	}
	result.Membership = membership

	project, err := w.store.FindProject(ctx, inv.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("invited project: %w", err)
	}
	result.Project = project

	// The membership is authoritative; failing to flip the used flag is
	// logged, never propagated.
	if err := w.store.MarkInvitationUsed(ctx, inv.ID, req.CallerID); err != nil {
		logutils.Log.Warnf("invitation: mark %d used by %d failed: %v", inv.ID, req.CallerID, err)
	}

	return result, nil
}

func (w *Workflow) needsOnboarding(ctx context.Context, userID uint) (bool, error) {
	state, err := w.store.FindOnboarding(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("onboarding state: %w", err)
	}
	return !state.Completed || state.Stage < model.OnboardingFinalStage, nil
}

// onboardAndProvision runs the first-time-user branch in strict order:
// profile update, new workspace, new project, full provisioning. No step is
// compensated on failure; re-accepting after a fix replays idempotently.
func (w *Workflow) onboardAndProvision(ctx context.Context, req *AcceptRequest, result *AcceptResult) error {
	if strings.TrimSpace(req.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required for first-time users", apperr.ErrValidation)
	}
	displayName := strings.TrimSpace(req.DisplayName)

	if err := w.store.UpdateUserDisplayName(ctx, req.CallerID, displayName); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	ws := &model.Workspace{
		Name:    displayName + newWorkspaceSuffix,
		OwnerID: req.CallerID,
	}
	if err := w.store.CreateWorkspace(ctx, ws); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	project := &model.Project{
		WorkspaceID: ws.ID,
		OwnerID:     req.CallerID,
		Name:        newProjectName,
		Status:      model.ProjectPlanning,
	}
	if err := w.store.CreateProject(ctx, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}

	provisioned, err := w.orchestrator.Provision(ctx, &provision.Request{
		WorkspaceID: ws.ID,
		ProjectID:   project.ID,
		UserID:      req.CallerID,
		ProjectName: project.Name,
	})
	if err != nil {
		return err
	}

	result.Workspace = ws
	// The terminal onboarding step is non-fatal; its outcome decides what the
	// caller is told, not whether the accept succeeds.
	result.OnboardingCompleted = onboardingMarked(provisioned)
	return nil
}

func onboardingMarked(result *provision.Result) bool {
	for _, step := range result.Steps {
		if step.Step == provision.StepMarkOnboarding {
			return step.Outcome != provision.OutcomeFailed
		}
	}
	return false
}

// join adds the caller to the invited project. The starter project created
// for a first-time user records no membership; ownership there is carried by
// the workspace and project OwnerID columns.
func (w *Workflow) join(ctx context.Context, inv *model.Invitation, callerID uint, firstTime bool) (*model.ProjectMembership, error) {
	if !firstTime {
		_, err := w.store.FindMembership(ctx, inv.ProjectID, callerID)
		if err == nil {
			return nil, fmt.Errorf("%w: already a member of this project", apperr.ErrConflict)
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("membership lookup: %w", err)
		}
	}

	membership := &model.ProjectMembership{
		ProjectID:  inv.ProjectID,
		UserID:     callerID,
		Role:       inv.Role,
		AccessType: model.AccessInvitation,
	}
	if err := w.store.CreateMembership(ctx, membership); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: already a member of this project", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("create membership: %w", err)
	}
	return membership, nil
}
