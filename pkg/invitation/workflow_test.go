package invitation

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomworks/loomspace/dao/model"
	"github.com/loomworks/loomspace/pkg/apperr"
	"github.com/loomworks/loomspace/pkg/provision"
)

// memStore implements both this package's Store and provision.Store so one
// fake can back the workflow and the orchestrator it drives.
type memStore struct {
	nextID uint

	invitations map[string]*model.Invitation
	users       map[uint]*model.User
	onboarding  map[uint]*model.OnboardingState
	workspaces  map[uint]*model.Workspace
	projects    map[uint]*model.Project
	memberships []*model.ProjectMembership

	buckets        map[string]*model.Bucket
	stageTemplates []*model.StageTemplate
	stages         map[uint][]*model.ProjectStage
	agentTemplates []*model.AgentTemplate
	agents         map[uint]*model.ProjectAgent
	threads        map[uint][]*model.Thread

	failMarkUsed       bool
	failMarkOnboarding bool
}

func newMemStore() *memStore {
	s := &memStore{
		invitations: make(map[string]*model.Invitation),
		users:       make(map[uint]*model.User),
		onboarding:  make(map[uint]*model.OnboardingState),
		workspaces:  make(map[uint]*model.Workspace),
		projects:    make(map[uint]*model.Project),
		buckets:     make(map[string]*model.Bucket),
		stages:      make(map[uint][]*model.ProjectStage),
		agents:      make(map[uint]*model.ProjectAgent),
		threads:     make(map[uint][]*model.Thread),
	}
	s.stageTemplates = []*model.StageTemplate{{Name: "Design", Position: 1}}
	s.stageTemplates[0].ID = s.id()
	s.agentTemplates = []*model.AgentTemplate{{StageTemplateID: s.stageTemplates[0].ID, Name: "Design Copilot"}}
	s.agentTemplates[0].ID = s.id()
	return s
}

func (s *memStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *memStore) FindInvitationByCode(_ context.Context, code string) (*model.Invitation, error) {
	inv, ok := s.invitations[code]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return inv, nil
}

func (s *memStore) MarkInvitationUsed(_ context.Context, invitationID, acceptorID uint) error {
	if s.failMarkUsed {
		return apperr.ErrStorage
	}
	for _, inv := range s.invitations {
		if inv.ID == invitationID {
			inv.Used = true
			inv.AcceptedBy = &acceptorID
			inv.AcceptedAt = lo.ToPtr(time.Now())
			return nil
		}
	}
	return apperr.ErrNotFound
}

func (s *memStore) CreateInvitation(_ context.Context, inv *model.Invitation) error {
	if _, ok := s.invitations[inv.Code]; ok {
		return apperr.ErrConflict
	}
	inv.ID = s.id()
	s.invitations[inv.Code] = inv
	return nil
}

func (s *memStore) FindUser(_ context.Context, id uint) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return u, nil
}

func (s *memStore) UpdateUserDisplayName(_ context.Context, id uint, displayName string) error {
	u, ok := s.users[id]
	if !ok {
		return apperr.ErrNotFound
	}
	u.Nickname = &displayName
	return nil
}

func (s *memStore) FindOnboarding(_ context.Context, userID uint) (*model.OnboardingState, error) {
	st, ok := s.onboarding[userID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return st, nil
}

func (s *memStore) FindWorkspace(_ context.Context, id uint) (*model.Workspace, error) {
	ws, ok := s.workspaces[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return ws, nil
}

func (s *memStore) FindProject(_ context.Context, id uint) (*model.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return p, nil
}

func (s *memStore) CreateWorkspace(_ context.Context, ws *model.Workspace) error {
	ws.ID = s.id()
	s.workspaces[ws.ID] = ws
	return nil
}

func (s *memStore) CreateProject(_ context.Context, p *model.Project) error {
	p.ID = s.id()
	s.projects[p.ID] = p
	return nil
}

func (s *memStore) FindMembership(_ context.Context, projectID, userID uint) (*model.ProjectMembership, error) {
	for _, m := range s.memberships {
		if m.ProjectID == projectID && m.UserID == userID {
			return m, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *memStore) CreateMembership(_ context.Context, m *model.ProjectMembership) error {
	for _, existing := range s.memberships {
		if existing.ProjectID == m.ProjectID && existing.UserID == m.UserID {
			return apperr.ErrConflict
		}
	}
	m.ID = s.id()
	s.memberships = append(s.memberships, m)
	return nil
}

func (s *memStore) FindBucketByName(_ context.Context, name string) (*model.Bucket, error) {
	b, ok := s.buckets[name]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return b, nil
}

func (s *memStore) CreateBucket(_ context.Context, bucket *model.Bucket) error {
	if _, ok := s.buckets[bucket.Name]; ok {
		return apperr.ErrConflict
	}
	bucket.ID = s.id()
	s.buckets[bucket.Name] = bucket
	return nil
}

func (s *memStore) ListStageTemplates(_ context.Context) ([]*model.StageTemplate, error) {
	return s.stageTemplates, nil
}

func (s *memStore) ListProjectStages(_ context.Context, projectID uint) ([]*model.ProjectStage, error) {
	return s.stages[projectID], nil
}

func (s *memStore) CreateProjectStage(_ context.Context, stage *model.ProjectStage) error {
	stage.ID = s.id()
	s.stages[stage.ProjectID] = append(s.stages[stage.ProjectID], stage)
	return nil
}

func (s *memStore) ListAgentTemplates(_ context.Context, _ []uint) ([]*model.AgentTemplate, error) {
	return s.agentTemplates, nil
}

func (s *memStore) FindStageAgent(_ context.Context, stageID uint) (*model.ProjectAgent, error) {
	a, ok := s.agents[stageID]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return a, nil
}

func (s *memStore) CreateProjectAgent(_ context.Context, agent *model.ProjectAgent) error {
	agent.ID = s.id()
	s.agents[agent.StageID] = agent
	return nil
}

func (s *memStore) ListProjectThreads(_ context.Context, projectID uint) ([]*model.Thread, error) {
	return s.threads[projectID], nil
}

func (s *memStore) CreateThread(_ context.Context, thread *model.Thread) error {
	thread.ID = s.id()
	s.threads[thread.ProjectID] = append(s.threads[thread.ProjectID], thread)
	return nil
}

func (s *memStore) MarkOnboardingComplete(_ context.Context, userID uint) (bool, error) {
	if s.failMarkOnboarding {
		return false, apperr.ErrStorage
	}
	st, ok := s.onboarding[userID]
	if ok && st.Completed && st.Stage >= model.OnboardingFinalStage {
		return true, nil
	}
	if !ok {
		st = &model.OnboardingState{UserID: userID}
		s.onboarding[userID] = st
	}
	st.Stage = model.OnboardingFinalStage
	st.Completed = true
	return false, nil
}

type nopObjects struct{}

func (nopObjects) EnsureBucket(_ context.Context, _ string) error { return nil }
func (nopObjects) Put(_ context.Context, _, _ string, _ io.Reader) (int64, error) {
	return 0, nil
}
func (nopObjects) Get(_ context.Context, _, _ string) (io.ReadCloser, error) {
	return nil, apperr.ErrNotFound
}
func (nopObjects) Delete(_ context.Context, _, _ string) error { return nil }
func (nopObjects) Exists(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) SendInvitation(email, _, _, _ string) error {
	m.sent = append(m.sent, email)
	return m.err
}

// fixture builds an inviter with a workspace and a project, plus a plain
// invitee profile.
type fixture struct {
	store    *memStore
	workflow *Workflow
	mailer   *recordingMailer

	inviter *model.User
	invitee *model.User
	project *model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	mailer := &recordingMailer{}
	orchestrator := provision.NewOrchestrator(store, nopObjects{})
	f := &fixture{
		store:    store,
		workflow: NewWorkflow(store, orchestrator, mailer),
		mailer:   mailer,
	}

	f.inviter = &model.User{Name: "ada", Email: "ada@example.com"}
	f.inviter.ID = store.id()
	store.users[f.inviter.ID] = f.inviter

	f.invitee = &model.User{Name: "grace", Email: "grace@example.com"}
	f.invitee.ID = store.id()
	store.users[f.invitee.ID] = f.invitee

	ws := &model.Workspace{Name: "Ada's Workspace", OwnerID: f.inviter.ID}
	require.NoError(t, store.CreateWorkspace(context.Background(), ws))
	f.project = &model.Project{WorkspaceID: ws.ID, OwnerID: f.inviter.ID, Name: "Website Redesign"}
	require.NoError(t, store.CreateProject(context.Background(), f.project))
	return f
}

func (f *fixture) invite(t *testing.T, email string) *model.Invitation {
	t.Helper()
	inv, err := f.workflow.Create(context.Background(), &CreateRequest{
		ProjectID:    f.project.ID,
		InviterID:    f.inviter.ID,
		InviteeEmail: email,
	})
	require.NoError(t, err)
	return inv
}

// markOnboarded puts a user past the onboarding gate.
func (f *fixture) markOnboarded(userID uint) {
	f.store.onboarding[userID] = &model.OnboardingState{
		UserID:    userID,
		Stage:     model.OnboardingFinalStage,
		Completed: true,
	}
}

func TestCreateGeneratesCodeAndMails(t *testing.T) {
	f := newFixture(t)

	inv := f.invite(t, "Grace@Example.com")
	assert.Len(t, inv.Code, 8)
	assert.Equal(t, inv.Code, NormalizeCode(inv.Code))
	assert.Equal(t, "grace@example.com", *inv.InviteeEmail)
	assert.Equal(t, f.project.WorkspaceID, inv.WorkspaceID)
	assert.True(t, inv.ExpiresAt.After(time.Now()))
	assert.Equal(t, []string{"Grace@Example.com"}, f.mailer.sent)
}

func TestCreateSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = apperr.ErrUpstream

	inv := f.invite(t, "grace@example.com")
	assert.NotEmpty(t, inv.Code)
}

func TestAcceptFirstTimeUserProvisionsStarterResources(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "grace@example.com")

	result, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	require.NoError(t, err)

	assert.Equal(t, UserTypeNew, result.UserType)
	assert.True(t, result.OnboardingCompleted)
	require.NotNil(t, result.Workspace)
	assert.Equal(t, "Grace Hopper's Workspace", result.Workspace.Name)
	assert.Equal(t, f.invitee.ID, result.Workspace.OwnerID)

	// The starter project got the full pipeline.
	var starter *model.Project
	for _, p := range f.store.projects {
		if p.OwnerID == f.invitee.ID {
			starter = p
		}
	}
	require.NotNil(t, starter)
	assert.Equal(t, "Getting Started", starter.Name)
	assert.NotEmpty(t, f.store.stages[starter.ID])
	assert.NotEmpty(t, f.store.threads[starter.ID])

	// Membership lands on the invited project, not the starter one.
	require.NotNil(t, result.Membership)
	assert.Equal(t, f.project.ID, result.Membership.ProjectID)
	assert.Equal(t, model.AccessInvitation, result.Membership.AccessType)

	assert.Equal(t, "Grace Hopper", *f.invitee.Nickname)
	assert.True(t, f.store.invitations[inv.Code].Used)
}

func TestAcceptFirstTimeUserRequiresDisplayName(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "grace@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     inv.Code,
		CallerID: f.invitee.ID,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestAcceptExistingUserJoinsDirectly(t *testing.T) {
	f := newFixture(t)
	f.markOnboarded(f.invitee.ID)
	inv := f.invite(t, "grace@example.com")

	result, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     inv.Code,
		CallerID: f.invitee.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, UserTypeExisting, result.UserType)
	assert.Equal(t, f.project.WorkspaceID, result.Workspace.ID)
	assert.Equal(t, f.project.ID, result.Membership.ProjectID)

	// No starter resources for an onboarded user.
	for _, p := range f.store.projects {
		assert.NotEqual(t, f.invitee.ID, p.OwnerID)
	}
}

func TestAcceptRejectsUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     "NOPENOPE",
		CallerID: f.invitee.ID,
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAcceptRejectsSelfInvite(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "ada@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     inv.Code,
		CallerID: f.inviter.ID,
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAcceptRejectsExpiredCode(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "grace@example.com")
	inv.ExpiresAt = time.Now().Add(-time.Hour)

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestAcceptRejectsUsedCode(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "grace@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	require.NoError(t, err)

	third := &model.User{Name: "lin", Email: "lin@example.com"}
	third.ID = f.store.id()
	f.store.users[third.ID] = third

	_, err = f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    third.ID,
		DisplayName: "Lin",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAcceptRejectsEmailMismatch(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "someoneelse@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestAcceptMatchesEmailCaseInsensitively(t *testing.T) {
	f := newFixture(t)
	f.invitee.Email = "GRACE@example.com"
	inv := f.invite(t, "grace@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	assert.NoError(t, err)
}

func TestAcceptNormalizesCode(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "grace@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        "  " + strings.ToLower(inv.Code) + " ",
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	assert.NoError(t, err)
}

func TestAcceptRejectsDoubleJoin(t *testing.T) {
	f := newFixture(t)
	f.markOnboarded(f.invitee.ID)
	f.store.memberships = append(f.store.memberships, &model.ProjectMembership{
		ProjectID: f.project.ID,
		UserID:    f.invitee.ID,
	})
	inv := f.invite(t, "grace@example.com")

	_, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     inv.Code,
		CallerID: f.invitee.ID,
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestAcceptIncompleteOnboardingTakesFirstTimeBranch(t *testing.T) {
	f := newFixture(t)
	// A record exists but onboarding never finished.
	f.store.onboarding[f.invitee.ID] = &model.OnboardingState{
		UserID: f.invitee.ID,
		Stage:  1,
	}
	inv := f.invite(t, "grace@example.com")

	result, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	require.NoError(t, err)
	assert.Equal(t, UserTypeNew, result.UserType)
}

func TestAcceptReportsOnboardingMarkFailure(t *testing.T) {
	f := newFixture(t)
	inv := f.invite(t, "grace@example.com")
	f.store.failMarkOnboarding = true

	result, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:        inv.Code,
		CallerID:    f.invitee.ID,
		DisplayName: "Grace Hopper",
	})
	require.NoError(t, err)

	// The accept still succeeds, but the caller learns onboarding was not
	// marked complete.
	assert.Equal(t, UserTypeNew, result.UserType)
	assert.False(t, result.OnboardingCompleted)
	assert.NotNil(t, result.Membership)
}

func TestAcceptAppliesInvitedRoleToMembershipOnly(t *testing.T) {
	f := newFixture(t)
	f.markOnboarded(f.invitee.ID)
	platformRole := f.invitee.Role

	inv, err := f.workflow.Create(context.Background(), &CreateRequest{
		ProjectID:    f.project.ID,
		InviterID:    f.inviter.ID,
		InviteeEmail: "grace@example.com",
		Role:         model.RoleAdmin,
	})
	require.NoError(t, err)

	result, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     inv.Code,
		CallerID: f.invitee.ID,
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoleAdmin, result.Membership.Role)
	// The invited role scopes to the project; the platform role is untouched.
	assert.Equal(t, platformRole, f.invitee.Role)
}

func TestAcceptMarkUsedFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.markOnboarded(f.invitee.ID)
	inv := f.invite(t, "grace@example.com")
	f.store.failMarkUsed = true

	result, err := f.workflow.Accept(context.Background(), &AcceptRequest{
		Code:     inv.Code,
		CallerID: f.invitee.ID,
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Membership)
	assert.False(t, f.store.invitations[inv.Code].Used)
}
