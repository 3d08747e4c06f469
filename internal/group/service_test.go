package group

import (
	"context"
	"testing"

	"github.com/hitoshi/helmgate/internal/auth"
	"github.com/hitoshi/helmgate/internal/model"
)

// --- モック ---

type mockGroupRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Group, error)
	createFn       func(ctx context.Context, group *model.Group) error
	deleteFn       func(ctx context.Context, id string) (bool, error)
	isMemberFn     func(ctx context.Context, userID, groupID string) (bool, error)
	addMemberFn    func(ctx context.Context, userID, groupID string) error
	removeMemberFn func(ctx context.Context, userID, groupID string) error
}

func (m *mockGroupRepo) FindByID(ctx context.Context, id string) (*model.Group, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockGroupRepo) Create(ctx context.Context, group *model.Group) error {
	if m.createFn != nil {
		return m.createFn(ctx, group)
	}
	return nil
}
func (m *mockGroupRepo) Delete(ctx context.Context, id string) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return true, nil
}
func (m *mockGroupRepo) List(ctx context.Context) ([]*model.Group, error) { return nil, nil }
func (m *mockGroupRepo) IsMember(ctx context.Context, userID, groupID string) (bool, error) {
	if m.isMemberFn != nil {
		return m.isMemberFn(ctx, userID, groupID)
	}
	return false, nil
}
func (m *mockGroupRepo) AddMember(ctx context.Context, userID, groupID string) error {
	if m.addMemberFn != nil {
		return m.addMemberFn(ctx, userID, groupID)
	}
	return nil
}
func (m *mockGroupRepo) RemoveMember(ctx context.Context, userID, groupID string) error {
	if m.removeMemberFn != nil {
		return m.removeMemberFn(ctx, userID, groupID)
	}
	return nil
}
func (m *mockGroupRepo) ListMembers(ctx context.Context, groupID string) ([]*model.User, error) {
	return nil, nil
}
func (m *mockGroupRepo) ListForUser(ctx context.Context, userID string) ([]*model.Group, error) {
	return nil, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id}, nil
}
func (m *mockUserRepo) FindByToken(ctx context.Context, token string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error  { return nil }
func (m *mockUserRepo) Update(ctx context.Context, user *model.User) error  { return nil }
func (m *mockUserRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }
func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error)     { return nil, nil }

type mockClusterRepo struct {
	listFn func(ctx context.Context) ([]*model.Cluster, error)
}

func (m *mockClusterRepo) FindByID(ctx context.Context, id string) (*model.Cluster, error) {
	return nil, nil
}
func (m *mockClusterRepo) Create(ctx context.Context, cluster *model.Cluster) error { return nil }
func (m *mockClusterRepo) Delete(ctx context.Context, id string) (bool, error)     { return false, nil }
func (m *mockClusterRepo) List(ctx context.Context) ([]*model.Cluster, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockInstanceRepo struct {
	listFn func(ctx context.Context) ([]*model.ApplicationInstance, error)
}

func (m *mockInstanceRepo) FindByID(ctx context.Context, id string) (*model.ApplicationInstance, error) {
	return nil, nil
}
func (m *mockInstanceRepo) Create(ctx context.Context, instance *model.ApplicationInstance) error {
	return nil
}
func (m *mockInstanceRepo) Delete(ctx context.Context, id string) (bool, error) { return false, nil }
func (m *mockInstanceRepo) List(ctx context.Context) ([]*model.ApplicationInstance, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}
func (m *mockInstanceRepo) ListForUser(ctx context.Context, userID string) ([]*model.ApplicationInstance, error) {
	return nil, nil
}

func newTestService(groups *mockGroupRepo, users *mockUserRepo, clusters *mockClusterRepo, instances *mockInstanceRepo) *Service {
	return NewService(groups, users, clusters, instances, auth.NewService(nil, groups))
}

var (
	admin   = &model.User{ID: "user_admin", Admin: true}
	regular = &model.User{ID: "user_regular"}
)

// --- テスト ---

func TestCreate_RequiresAuthentication(t *testing.T) {
	svc := newTestService(&mockGroupRepo{}, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	_, err := svc.Create(context.Background(), nil, CreateParams{Name: "astro"})
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("anonymous create should be Forbidden, got: %v", err)
	}
}

func TestCreate_NameValidation(t *testing.T) {
	svc := newTestService(&mockGroupRepo{}, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	tests := []struct {
		label string
		name  string
	}{
		{"empty", ""},
		{"uppercase", "Astro"},
		{"leading hyphen", "-astro"},
		{"trailing hyphen", "astro-"},
		{"spaces", "astro physics"},
		{"too long", "a123456789a123456789a123456789a123456789a123456789a123456789a"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			_, err := svc.Create(context.Background(), regular, CreateParams{Name: tt.name})
			if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeBadRequest {
				t.Errorf("name %q should be BadRequest, got: %v", tt.name, err)
			}
		})
	}
}

func TestCreate_AddsCreatorAsMember(t *testing.T) {
	var memberUser, memberGroup string
	groups := &mockGroupRepo{
		addMemberFn: func(ctx context.Context, userID, groupID string) error {
			memberUser, memberGroup = userID, groupID
			return nil
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	group, err := svc.Create(context.Background(), regular, CreateParams{Name: "astro", ScienceField: "Astrophysics"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if group.ID == "" || group.Name != "astro" {
		t.Errorf("unexpected group: %+v", group)
	}
	if memberUser != regular.ID || memberGroup != group.ID {
		t.Errorf("creator should become the first member, got user=%q group=%q", memberUser, memberGroup)
	}
}

func TestCreate_DuplicateNameIsConflict(t *testing.T) {
	groups := &mockGroupRepo{
		createFn: func(ctx context.Context, group *model.Group) error {
			return model.ErrDuplicate
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	_, err := svc.Create(context.Background(), regular, CreateParams{Name: "astro"})
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeConflict {
		t.Errorf("duplicate name should be Conflict, got: %v", err)
	}
}

func TestDelete_NonMemberIsForbidden(t *testing.T) {
	groups := &mockGroupRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Group, error) {
			return &model.Group{ID: id, Name: "astro"}, nil
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	err := svc.Delete(context.Background(), regular, "group_1")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("non-member delete should be Forbidden, got: %v", err)
	}
}

func TestDelete_MemberCanDeleteEmptyGroup(t *testing.T) {
	deleted := false
	groups := &mockGroupRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Group, error) {
			return &model.Group{ID: id, Name: "astro"}, nil
		},
		isMemberFn: func(ctx context.Context, userID, groupID string) (bool, error) {
			return userID == regular.ID, nil
		},
		deleteFn: func(ctx context.Context, id string) (bool, error) {
			deleted = true
			return true, nil
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	if err := svc.Delete(context.Background(), regular, "group_1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("group record should be deleted")
	}
}

func TestDelete_GroupWithResourcesIsConflict(t *testing.T) {
	groups := &mockGroupRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Group, error) {
			return &model.Group{ID: id, Name: "astro"}, nil
		},
	}
	clusters := &mockClusterRepo{
		listFn: func(ctx context.Context) ([]*model.Cluster, error) {
			return []*model.Cluster{{ID: "cluster_1", GroupID: "group_1"}}, nil
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, clusters, &mockInstanceRepo{})

	err := svc.Delete(context.Background(), admin, "group_1")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeConflict {
		t.Errorf("deleting a group that still owns clusters should be Conflict, got: %v", err)
	}
}

func TestDelete_UnknownGroupIsNotFound(t *testing.T) {
	svc := newTestService(&mockGroupRepo{}, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	err := svc.Delete(context.Background(), admin, "group_ghost")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NotFound, got: %v", err)
	}
}

func TestAddMember_DuplicateIsConflict(t *testing.T) {
	groups := &mockGroupRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Group, error) {
			return &model.Group{ID: id, Name: "astro"}, nil
		},
		addMemberFn: func(ctx context.Context, userID, groupID string) error {
			return model.ErrDuplicate
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	err := svc.AddMember(context.Background(), admin, "user_regular", "group_1")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeConflict {
		t.Errorf("double add should be Conflict, got: %v", err)
	}
}

func TestAddMember_UnknownUserIsNotFound(t *testing.T) {
	groups := &mockGroupRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Group, error) {
			return &model.Group{ID: id, Name: "astro"}, nil
		},
	}
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := newTestService(groups, users, &mockClusterRepo{}, &mockInstanceRepo{})

	err := svc.AddMember(context.Background(), admin, "user_ghost", "group_1")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeNotFound {
		t.Errorf("expected NotFound, got: %v", err)
	}
}

func TestRemoveMember_DoesNotDeleteGroup(t *testing.T) {
	deleteCalled := false
	groups := &mockGroupRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Group, error) {
			return &model.Group{ID: id, Name: "astro"}, nil
		},
		isMemberFn: func(ctx context.Context, userID, groupID string) (bool, error) {
			return true, nil
		},
		deleteFn: func(ctx context.Context, id string) (bool, error) {
			deleteCalled = true
			return true, nil
		},
	}
	svc := newTestService(groups, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	// 最後のメンバーが自分自身を外しても、Groupは明示的に削除されるまで残る
	if err := svc.RemoveMember(context.Background(), regular, regular.ID, "group_1"); err != nil {
		t.Fatalf("RemoveMember failed: %v", err)
	}
	if deleteCalled {
		t.Error("removing the last member must not delete the group")
	}
}

func TestListForUser_SelfOrAdminOnly(t *testing.T) {
	svc := newTestService(&mockGroupRepo{}, &mockUserRepo{}, &mockClusterRepo{}, &mockInstanceRepo{})

	if _, err := svc.ListForUser(context.Background(), regular, regular.ID); err != nil {
		t.Errorf("self list should succeed: %v", err)
	}
	if _, err := svc.ListForUser(context.Background(), admin, regular.ID); err != nil {
		t.Errorf("admin list should succeed: %v", err)
	}
	_, err := svc.ListForUser(context.Background(), regular, "user_other")
	if apiErr, ok := model.AsAPIError(err); !ok || apiErr.Code != model.ErrCodeForbidden {
		t.Errorf("listing another user's groups should be Forbidden, got: %v", err)
	}
}
