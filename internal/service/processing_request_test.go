package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"processing-requests/internal/adapter/repo"
	"processing-requests/internal/broker"
	"processing-requests/internal/domain"
)

type fakeUsers struct {
	known map[uuid.UUID]bool
	err   error
	calls int
}

func (f *fakeUsers) Exists(_ context.Context, id uuid.UUID, _ string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.known[id], nil
}

type fakeAssets struct {
	known map[uuid.UUID]bool
	calls []uuid.UUID
}

func (f *fakeAssets) Exists(_ context.Context, id uuid.UUID, _ string) (bool, error) {
	f.calls = append(f.calls, id)
	return f.known[id], nil
}

type fakeProjects struct {
	projects    map[uuid.UUID]*domain.Project
	accessErr   error
	accessCalls int
	lastToken   string
}

func (f *fakeProjects) Exists(_ context.Context, id uuid.UUID, _ string) (bool, error) {
	_, ok := f.projects[id]
	return ok, nil
}

func (f *fakeProjects) HasAccess(_ context.Context, userID, projectID uuid.UUID, token string) (bool, error) {
	f.accessCalls++
	f.lastToken = token
	if f.accessErr != nil {
		return false, f.accessErr
	}
	p, ok := f.projects[projectID]
	if !ok {
		return false, nil
	}
	return p.HasUser(userID), nil
}

func (f *fakeProjects) Get(_ context.Context, id uuid.UUID, _ string) (*domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return p, nil
}

// countingRepo records how often the store is written to.
type countingRepo struct {
	domain.ProcessingRequestRepository
	mu      sync.Mutex
	creates int
	adds    int
}

func (c *countingRepo) Create(ctx context.Context, pr *domain.ProcessingRequest) error {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.ProcessingRequestRepository.Create(ctx, pr)
}

func (c *countingRepo) AddInputAsset(ctx context.Context, id, assetID uuid.UUID) (*domain.ProcessingRequest, error) {
	c.mu.Lock()
	c.adds++
	c.mu.Unlock()
	return c.ProcessingRequestRepository.AddInputAsset(ctx, id, assetID)
}

func (c *countingRepo) AddOutputAsset(ctx context.Context, id, assetID uuid.UUID) (*domain.ProcessingRequest, error) {
	c.mu.Lock()
	c.adds++
	c.mu.Unlock()
	return c.ProcessingRequestRepository.AddOutputAsset(ctx, id, assetID)
}

type fixture struct {
	svc       *ProcessingRequestService
	repo      *countingRepo
	users     *fakeUsers
	projects  *fakeProjects
	assets    *fakeAssets
	publisher *broker.MemoryPublisher

	u1, stranger uuid.UUID
	p1, p2       uuid.UUID
	a1, a2, a3   uuid.UUID
	foreign      uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		u1: uuid.New(), stranger: uuid.New(),
		p1: uuid.New(), p2: uuid.New(),
		a1: uuid.New(), a2: uuid.New(), a3: uuid.New(),
		foreign: uuid.New(),
	}
	f.repo = &countingRepo{ProcessingRequestRepository: repo.NewMemoryProcessingRequestRepository()}
	f.users = &fakeUsers{known: map[uuid.UUID]bool{f.u1: true, f.stranger: true}}
	f.projects = &fakeProjects{projects: map[uuid.UUID]*domain.Project{
		f.p1: {ID: f.p1, UsersIDs: []uuid.UUID{f.u1}, AssetsIDs: []uuid.UUID{f.a1, f.a2, f.a3}},
		f.p2: {ID: f.p2, UsersIDs: []uuid.UUID{f.stranger}, AssetsIDs: []uuid.UUID{f.foreign}},
	}}
	f.assets = &fakeAssets{known: map[uuid.UUID]bool{f.a1: true, f.a2: true, f.a3: true, f.foreign: true}}
	f.publisher = broker.NewMemoryPublisher()

	svc, err := NewProcessingRequestService(Options{
		Repository: f.repo,
		Users:      f.users,
		Projects:   f.projects,
		Assets:     f.assets,
		Publisher:  f.publisher,
	})
	if err != nil {
		t.Fatalf("NewProcessingRequestService error: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) member() domain.Caller { return domain.Caller{ID: f.u1} }

func (f *fixture) create(t *testing.T) *domain.ProcessingRequest {
	t.Helper()
	pr, err := f.svc.Create(context.Background(), CreateParams{
		Type:           domain.ProcessingRequestTypeTranscode,
		UserID:         f.u1,
		ProjectID:      f.p1,
		InputAssetsIDs: []uuid.UUID{f.a1},
	}, "tok", f.member())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	return pr
}

func TestCreatePersistsPendingAndPublishesOnce(t *testing.T) {
	f := newFixture(t)
	pr, err := f.svc.Create(context.Background(), CreateParams{
		Type:            domain.ProcessingRequestTypeSimod,
		UserID:          f.u1,
		ProjectID:       f.p1,
		InputAssetsIDs:  []uuid.UUID{f.a1, f.a1},
		OutputAssetsIDs: []uuid.UUID{f.a2},
	}, "tok-1", f.member())
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if pr.Status != domain.ProcessingRequestStatusPending {
		t.Fatalf("got status %q want pending", pr.Status)
	}
	if len(pr.InputAssetsIDs) != 1 || pr.InputAssetsIDs[0] != f.a1 {
		t.Fatalf("input ids = %v", pr.InputAssetsIDs)
	}
	if len(pr.OutputAssetsIDs) != 1 || pr.OutputAssetsIDs[0] != f.a2 {
		t.Fatalf("output ids = %v", pr.OutputAssetsIDs)
	}

	msgs := f.publisher.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d published messages want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Topic != string(domain.ProcessingRequestTypeSimod) {
		t.Fatalf("got topic %q", msg.Topic)
	}
	if msg.Message.ProcessingRequestID != pr.ID.String() || msg.Message.Credential != "tok-1" {
		t.Fatalf("unexpected message: %#v", msg.Message)
	}

	stored, err := f.svc.Get(context.Background(), pr.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stored.Status != domain.ProcessingRequestStatusPending {
		t.Fatalf("stored status %q", stored.Status)
	}
}

func TestCreateChecksRunInOrder(t *testing.T) {
	missing := uuid.New()
	tests := []struct {
		name   string
		mutate func(f *fixture, p *CreateParams, c *domain.Caller)
		want   error
	}{
		{
			name:   "unknown user",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) { p.UserID = missing; p.ProjectID = missing },
			want:   domain.ErrUserNotFound,
		},
		{
			name:   "unknown project",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) { p.ProjectID = missing; p.InputAssetsIDs = []uuid.UUID{missing} },
			want:   domain.ErrProjectNotFound,
		},
		{
			name: "unknown input asset",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) {
				p.InputAssetsIDs = []uuid.UUID{missing}
				*c = domain.Caller{ID: uuid.New()}
			},
			want: domain.ErrAssetNotFound,
		},
		{
			name:   "unknown output asset",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) { p.OutputAssetsIDs = []uuid.UUID{missing} },
			want:   domain.ErrAssetNotFound,
		},
		{
			name:   "caller without access",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) { *c = domain.Caller{ID: f.stranger} },
			want:   domain.ErrNotEnoughPermissions,
		},
		{
			name:   "overlapping sets",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) { p.OutputAssetsIDs = []uuid.UUID{f.a1} },
			want:   domain.ErrAssetAlreadyInOutputAssets,
		},
		{
			name:   "malformed type",
			mutate: func(f *fixture, p *CreateParams, c *domain.Caller) { p.Type = "bad type!" },
			want:   domain.ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			params := CreateParams{
				Type:           domain.ProcessingRequestTypeTranscode,
				UserID:         f.u1,
				ProjectID:      f.p1,
				InputAssetsIDs: []uuid.UUID{f.a1},
			}
			caller := f.member()
			tt.mutate(f, &params, &caller)

			_, err := f.svc.Create(context.Background(), params, "tok", caller)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v want %v", err, tt.want)
			}
			if f.repo.creates != 0 {
				t.Fatalf("store received %d creates want 0", f.repo.creates)
			}
			if f.publisher.Attempts() != 0 {
				t.Fatalf("publisher received %d calls want 0", f.publisher.Attempts())
			}
		})
	}
}

func TestCreateRejectsAssetsFromAnotherProject(t *testing.T) {
	for _, output := range []bool{false, true} {
		f := newFixture(t)
		params := CreateParams{
			Type:      domain.ProcessingRequestTypeTranscode,
			UserID:    f.u1,
			ProjectID: f.p1,
		}
		if output {
			params.OutputAssetsIDs = []uuid.UUID{f.foreign}
		} else {
			params.InputAssetsIDs = []uuid.UUID{f.a1, f.foreign}
		}

		_, err := f.svc.Create(context.Background(), params, "tok", f.member())
		if !errors.Is(err, domain.ErrAssetDoesNotBelongToProject) {
			t.Fatalf("output=%v: got %v want ErrAssetDoesNotBelongToProject", output, err)
		}
		if f.repo.creates != 0 || f.publisher.Attempts() != 0 {
			t.Fatalf("output=%v: %d creates and %d publish calls want none", output, f.repo.creates, f.publisher.Attempts())
		}
	}
}

func TestCreateUnknownUserShortCircuits(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateParams{
		Type:           domain.ProcessingRequestTypeTranscode,
		UserID:         uuid.New(),
		ProjectID:      f.p1,
		InputAssetsIDs: []uuid.UUID{f.a1},
	}, "tok", f.member())
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("got %v want ErrUserNotFound", err)
	}
	if len(f.assets.calls) != 0 || f.projects.accessCalls != 0 {
		t.Fatalf("later checks ran: %d asset lookups, %d access checks", len(f.assets.calls), f.projects.accessCalls)
	}
	all, _ := f.svc.List(context.Background())
	if len(all) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(all))
	}
}

func TestCreateDependencyFailureIsDistinct(t *testing.T) {
	f := newFixture(t)
	f.users.err = domain.ErrDependencyUnavailable
	_, err := f.svc.Create(context.Background(), CreateParams{
		Type: domain.ProcessingRequestTypeTranscode, UserID: f.u1, ProjectID: f.p1,
	}, "tok", f.member())
	if !errors.Is(err, domain.ErrDependencyUnavailable) || errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("got %v want ErrDependencyUnavailable only", err)
	}
}

func TestCreatePublishFailureKeepsPendingRequest(t *testing.T) {
	f := newFixture(t)
	f.publisher.Fail(context.DeadlineExceeded)

	pr, err := f.svc.Create(context.Background(), CreateParams{
		Type: domain.ProcessingRequestTypeTranscode, UserID: f.u1, ProjectID: f.p1,
		InputAssetsIDs: []uuid.UUID{f.a1},
	}, "tok", f.member())
	if !errors.Is(err, domain.ErrQueueNotAvailable) {
		t.Fatalf("got %v want ErrQueueNotAvailable", err)
	}
	if domain.ErrorCode(err) != domain.CodeQueueNotAvailable {
		t.Fatalf("got code %q", domain.ErrorCode(err))
	}
	if pr == nil {
		t.Fatal("expected the stored request alongside the error")
	}
	stored, err := f.svc.Get(context.Background(), pr.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if stored.Status != domain.ProcessingRequestStatusPending {
		t.Fatalf("got status %q want pending", stored.Status)
	}
	pending, _ := f.svc.ListPending(context.Background())
	if len(pending) != 1 || pending[0].ID != pr.ID {
		t.Fatalf("pending = %v", pending)
	}
}

func TestSuperuserBypassesProjectAccess(t *testing.T) {
	f := newFixture(t)
	f.create(t)
	ctx := context.Background()

	if _, err := f.svc.ListByProjectID(ctx, f.p1, domain.Caller{ID: f.stranger}, "tok"); !errors.Is(err, domain.ErrNotEnoughPermissions) {
		t.Fatalf("got %v want ErrNotEnoughPermissions", err)
	}
	before := f.projects.accessCalls
	items, err := f.svc.ListByProjectID(ctx, f.p1, domain.Caller{ID: f.stranger, IsSuperuser: true}, "tok")
	if err != nil {
		t.Fatalf("superuser ListByProjectID error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items want 1", len(items))
	}
	if f.projects.accessCalls != before {
		t.Fatal("superuser check should not call the project service")
	}
}

func TestListByProjectIDForwardsToken(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.ListByProjectID(context.Background(), f.p1, f.member(), "forward-me"); err != nil {
		t.Fatalf("ListByProjectID error: %v", err)
	}
	if f.projects.lastToken != "forward-me" {
		t.Fatalf("got token %q", f.projects.lastToken)
	}
}

func TestScenarioAddOutputThenInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r1 := f.create(t)

	updated, err := f.svc.AddOutputAsset(ctx, r1.ID, f.a2, "tok")
	if err != nil {
		t.Fatalf("AddOutputAsset error: %v", err)
	}
	if len(updated.OutputAssetsIDs) != 1 || updated.OutputAssetsIDs[0] != f.a2 {
		t.Fatalf("output ids = %v", updated.OutputAssetsIDs)
	}

	if _, err := f.svc.AddInputAsset(ctx, r1.ID, f.a2, "tok"); !errors.Is(err, domain.ErrAssetAlreadyInOutputAssets) {
		t.Fatalf("got %v want ErrAssetAlreadyInOutputAssets", err)
	}
	stored, _ := f.svc.Get(ctx, r1.ID)
	if stored.HasInputAsset(f.a2) {
		t.Fatal("state changed after refused add")
	}
}

func TestAddAssetChecks(t *testing.T) {
	tests := []struct {
		name  string
		input bool
		asset func(f *fixture) uuid.UUID
		want  error
	}{
		{name: "missing asset", input: true, asset: func(*fixture) uuid.UUID { return uuid.New() }, want: domain.ErrAssetNotFound},
		{name: "foreign asset", input: true, asset: func(f *fixture) uuid.UUID { return f.foreign }, want: domain.ErrAssetDoesNotBelongToProject},
		{name: "input twice", input: true, asset: func(f *fixture) uuid.UUID { return f.a1 }, want: domain.ErrAssetAlreadyExists},
		{name: "output already input", input: false, asset: func(f *fixture) uuid.UUID { return f.a1 }, want: domain.ErrAssetAlreadyInInputAssets},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			pr := f.create(t)
			add := f.svc.AddOutputAsset
			if tt.input {
				add = f.svc.AddInputAsset
			}
			if _, err := add(context.Background(), pr.ID, tt.asset(f), "tok"); !errors.Is(err, tt.want) {
				t.Fatalf("got %v want %v", err, tt.want)
			}
			if f.repo.adds != 0 {
				t.Fatalf("store received %d adds want 0", f.repo.adds)
			}
		})
	}
}

func TestAddAssetUnknownRequest(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.AddInputAsset(context.Background(), uuid.New(), f.a2, "tok"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestConcurrentAddsKeepSetsDisjoint(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.svc.AddInputAsset(ctx, pr.ID, f.a3, "tok")
			} else {
				_, err = f.svc.AddOutputAsset(ctx, pr.ID, f.a3, "tok")
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	if ok != 1 {
		t.Fatalf("got %d successful adds want 1", ok)
	}
	stored, _ := f.svc.Get(ctx, pr.ID)
	if stored.HasInputAsset(f.a3) && stored.HasOutputAsset(f.a3) {
		t.Fatal("asset present in both sets")
	}
}

func TestAssetBelongsToProject(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t)
	ctx := context.Background()

	ok, err := f.svc.AssetBelongsToProject(ctx, pr.ID, f.a2, "tok")
	if err != nil || !ok {
		t.Fatalf("got %v, %v want true", ok, err)
	}
	ok, err = f.svc.AssetBelongsToProject(ctx, pr.ID, f.foreign, "tok")
	if err != nil || ok {
		t.Fatalf("got %v, %v want false", ok, err)
	}
}

func TestUpdateIsPartialAndValidated(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t)
	ctx := context.Background()

	msg := "running"
	status := domain.ProcessingRequestStatusInProgress
	updated, err := f.svc.Update(ctx, pr.ID, domain.UpdateParams{Status: &status, Message: &msg})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if updated.Status != status || *updated.Message != msg {
		t.Fatalf("unexpected update: %#v", updated)
	}
	if len(updated.InputAssetsIDs) != 1 {
		t.Fatalf("input ids changed: %v", updated.InputAssetsIDs)
	}

	bogus := domain.ProcessingRequestStatus("exploded")
	if _, err := f.svc.Update(ctx, pr.ID, domain.UpdateParams{Status: &bogus}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("got %v want ErrInvalidArgument", err)
	}
}

func TestRedispatch(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Redispatch(ctx, pr.ID, "tok-2", f.member()); err != nil {
		t.Fatalf("Redispatch error: %v", err)
	}
	msgs := f.publisher.Messages()
	if len(msgs) != 2 || msgs[1].Message.ProcessingRequestID != pr.ID.String() || msgs[1].Message.Credential != "tok-2" {
		t.Fatalf("unexpected messages: %#v", msgs)
	}

	done := domain.ProcessingRequestStatusCompleted
	if _, err := f.svc.Update(ctx, pr.ID, domain.UpdateParams{Status: &done}); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if _, err := f.svc.Redispatch(ctx, pr.ID, "tok", f.member()); !errors.Is(err, domain.ErrNotPending) {
		t.Fatalf("got %v want ErrNotPending", err)
	}
}

func TestRedispatchRequiresProjectAccess(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t)
	ctx := context.Background()
	before := f.publisher.Attempts()

	if _, err := f.svc.Redispatch(ctx, pr.ID, "tok", domain.Caller{ID: f.stranger}); !errors.Is(err, domain.ErrNotEnoughPermissions) {
		t.Fatalf("got %v want ErrNotEnoughPermissions", err)
	}
	if f.publisher.Attempts() != before {
		t.Fatalf("publisher received %d calls want %d", f.publisher.Attempts(), before)
	}

	if _, err := f.svc.Redispatch(ctx, pr.ID, "svc", domain.Caller{IsSuperuser: true}); err != nil {
		t.Fatalf("superuser Redispatch error: %v", err)
	}
	if f.publisher.Attempts() != before+1 {
		t.Fatalf("publisher received %d calls want %d", f.publisher.Attempts(), before+1)
	}
}

func TestListStalePending(t *testing.T) {
	f := newFixture(t)
	pr := f.create(t)
	ctx := context.Background()

	f.svc.now = func() time.Time { return pr.CreatedAt.Add(time.Minute) }
	stale, err := f.svc.ListStalePending(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("ListStalePending error: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("got %d stale want 0", len(stale))
	}

	f.svc.now = func() time.Time { return pr.CreatedAt.Add(10 * time.Minute) }
	stale, _ = f.svc.ListStalePending(ctx, 5*time.Minute)
	if len(stale) != 1 || stale[0].ID != pr.ID {
		t.Fatalf("stale = %v", stale)
	}
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	if _, err := NewProcessingRequestService(Options{}); err == nil {
		t.Fatal("expected error without repository")
	}
}
