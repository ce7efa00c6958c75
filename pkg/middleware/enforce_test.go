package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formgrid/formgrid/pkg/access"
	"github.com/formgrid/formgrid/pkg/audit"
	"github.com/formgrid/formgrid/pkg/contextkeys"
	"github.com/formgrid/formgrid/pkg/groups"
	"github.com/formgrid/formgrid/pkg/observability"
	"github.com/formgrid/formgrid/pkg/plans"
	"github.com/formgrid/formgrid/pkg/projects"
)

type fakeProjectStore struct {
	projects map[string]*projects.Project
}

func (s *fakeProjectStore) LoadProject(ctx context.Context, id string) (*projects.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return nil, projects.ErrProjectNotFound
	}
	return p, nil
}

func (s *fakeProjectStore) LoadPrimaryProject(ctx context.Context, id string) (*projects.Project, error) {
	p, err := s.LoadProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.ParentID == nil || *p.ParentID == "" {
		return p, nil
	}
	return s.LoadProject(ctx, *p.ParentID)
}

type fakeTeamStore struct {
	teams map[string]*projects.Team
	err   error
}

func (s *fakeTeamStore) LoadTeam(ctx context.Context, id string) (*projects.Team, error) {
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.teams[id]
	if !ok {
		return nil, projects.ErrTeamNotFound
	}
	return t, nil
}

type fakeMetering struct {
	mu       sync.Mutex
	used     int64
	recorded []string
}

func (f *fakeMetering) CallsThisMonth(ctx context.Context, projectID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.used, nil
}

func (f *fakeMetering) RecordCall(ctx context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, projectID)
	return nil
}

func (f *fakeMetering) recordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.recorded...)
}

type recordingAudit struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *recordingAudit) Record(ctx context.Context, event *audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) eventTypes() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

type noGroups struct{}

func (noGroups) AggregateGroups(ctx context.Context, projectID, identityID string) ([]string, error) {
	return []string{"grp-1"}, nil
}

type enforceFixture struct {
	router   *mux.Router
	store    *fakeProjectStore
	teams    *fakeTeamStore
	metering *fakeMetering
	audit    *recordingAudit
	captured struct {
		mu          sync.Mutex
		assignOwner bool
		groupFilter []string
	}
}

func newEnforceFixture(t *testing.T) *enforceFixture {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	f := &enforceFixture{
		store: &fakeProjectStore{projects: map[string]*projects.Project{
			"proj-1": {
				ID:      "proj-1",
				Name:    "acme",
				OwnerID: "owner-1",
				Plan:    "team",
				Access: []projects.AccessEntry{
					{Type: projects.AccessTeamWrite, Roles: []string{"team-w"}},
				},
			},
			"proj-basic": {
				ID:      "proj-basic",
				Name:    "hobby",
				OwnerID: "owner-1",
				Plan:    "basic",
			},
		}},
		teams: &fakeTeamStore{teams: map[string]*projects.Team{
			"team-w": {
				ID:      "team-w",
				Name:    "writers",
				OwnerID: "owner-1",
				Members: []string{"member-5"},
				Admins:  []string{"admin-6"},
			},
		}},
		metering: &fakeMetering{},
		audit:    &recordingAudit{},
	}

	resolver := groups.NewResolver(noGroups{}, logger, metrics)
	engine := access.NewEngine(f.store, resolver, access.EngineConfig{DefaultPlan: plans.PlanBasic}, logger, metrics)
	gate := plans.NewGate(plans.GateConfig{DefaultPlan: plans.PlanBasic}, f.metering, logger, metrics)
	enforcer := NewEnforcer(engine, gate, f.store, f.teams, f.metering, f.audit, logger)
	identity := NewIdentityMiddleware("s3cret", logger)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.captured.mu.Lock()
		f.captured.assignOwner = contextkeys.GetAssignOwner(r.Context())
		f.captured.groupFilter = contextkeys.GetGroupFilter(r.Context())
		f.captured.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})

	router := mux.NewRouter()
	router.Use(identity.Handler)
	protected := router.PathPrefix("/project/{projectID}").Subrouter()
	protected.Use(enforcer.Handler)
	protected.Handle("", handler)
	protected.Handle("/form", handler)
	protected.Handle("/form/{formID}", handler)
	protected.Handle("/form/{formID}/submission", handler)
	protected.Handle("/form/{formID}/submission/{submissionID}", handler)
	protected.Handle("/action", handler)
	f.router = router
	return f
}

func (f *enforceFixture) do(method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestEnforcerAllows(t *testing.T) {
	t.Run("owner", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/proj-1", map[string]string{"X-Identity-Id": "owner-1"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("owner writes set the assign-owner flag", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPut, "/project/proj-1/form/f1", map[string]string{"X-Identity-Id": "owner-1"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, f.captured.assignOwner)
	})

	t.Run("team member through the bucket check", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPut, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id":    "user-9",
			"X-Identity-Roles": "team-w",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("admin key", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodDelete, "/project/proj-1", map[string]string{"X-Admin-Key": "s3cret"})
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.Eventually(t, func() bool {
			for _, et := range f.audit.eventTypes() {
				if et == audit.EventAccessAdminKey {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond, "admin key use is audited")
	})

	t.Run("allowed requests are metered", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/proj-1", map[string]string{"X-Identity-Id": "owner-1"})
		require.Equal(t, http.StatusOK, rec.Code)

		assert.Eventually(t, func() bool {
			calls := f.metering.recordedCalls()
			return len(calls) == 1 && calls[0] == "proj-1"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("group filter reaches the handler on submission reads", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/proj-1/form/f1/submission", map[string]string{
			"X-Identity-Id":    "user-9",
			"X-Identity-Roles": "team-w",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"grp-1"}, f.captured.groupFilter)
	})
}

func TestEnforcerTeamMembership(t *testing.T) {
	t.Run("member qualifies without claiming the team role", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPut, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id": "member-5",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("team admin qualifies too", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPut, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id": "admin-6",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-member stays denied", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPut, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id": "user-9",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("membership cannot exceed the tier", func(t *testing.T) {
		f := newEnforceFixture(t)
		// team_write does not cover project update, member or not
		rec := f.do(http.MethodPut, "/project/proj-1", map[string]string{
			"X-Identity-Id": "member-5",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("team lookup failure never grants", func(t *testing.T) {
		f := newEnforceFixture(t)
		f.teams.err = errors.New("db down")
		rec := f.do(http.MethodPut, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id": "member-5",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestEnforcerDenies(t *testing.T) {
	t.Run("team member writing above their tier", func(t *testing.T) {
		f := newEnforceFixture(t)
		// team_write does not cover project update
		rec := f.do(http.MethodPut, "/project/proj-1", map[string]string{
			"X-Identity-Id":    "user-9",
			"X-Identity-Roles": "team-w",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("identity with no matching role", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id":    "user-9",
			"X-Identity-Roles": "stranger",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)

		assert.Eventually(t, func() bool {
			for _, et := range f.audit.eventTypes() {
				if et == audit.EventAccessDenied {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond, "denials are audited")
	})

	t.Run("anonymous gets 401", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/proj-1/form/f1", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown project is a generic 403", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/missing", map[string]string{"X-Identity-Id": "owner-1"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("denied requests are never metered", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodGet, "/project/proj-1/form/f1", map[string]string{
			"X-Identity-Id":    "user-9",
			"X-Identity-Roles": "stranger",
		})
		require.Equal(t, http.StatusForbidden, rec.Code)

		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, f.metering.recordedCalls())
	})
}

func TestEnforcerPlanGating(t *testing.T) {
	t.Run("premium action on a basic plan", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPost, "/project/proj-basic/action?kind=oauth", map[string]string{"X-Identity-Id": "owner-1"})
		assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	})

	t.Run("non-premium action on a basic plan", func(t *testing.T) {
		f := newEnforceFixture(t)
		rec := f.do(http.MethodPost, "/project/proj-basic/action?kind=email", map[string]string{"X-Identity-Id": "owner-1"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("over the monthly ceiling", func(t *testing.T) {
		f := newEnforceFixture(t)
		f.metering.used = 1000 // basic plan ceiling
		rec := f.do(http.MethodGet, "/project/proj-basic", map[string]string{"X-Identity-Id": "owner-1"})
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)

		assert.Eventually(t, func() bool {
			for _, et := range f.audit.eventTypes() {
				if et == audit.EventAccessLimited {
					return true
				}
			}
			return false
		}, time.Second, 10*time.Millisecond, "limit rejections are audited")
	})

	t.Run("team plan ceiling is higher", func(t *testing.T) {
		f := newEnforceFixture(t)
		f.metering.used = 1000
		rec := f.do(http.MethodGet, "/project/proj-1", map[string]string{"X-Identity-Id": "owner-1"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
