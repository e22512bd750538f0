package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/uis-platform/uisapi/internal/middleware"
	"github.com/uis-platform/uisapi/internal/model"
	"github.com/uis-platform/uisapi/internal/reqlog"
)

type fakeStore struct {
	mu     sync.Mutex
	rows   []model.Role2FileType
	nextID int
	err    error
}

func intPtr(v int) *int { return &v }

func newFakeStore(rows ...model.Role2FileType) *fakeStore {
	s := &fakeStore{nextID: 1}
	for _, r := range rows {
		s.rows = append(s.rows, r)
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return s
}

func (s *fakeStore) GetByID(_ context.Context, id int) (*model.Role2FileType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for _, r := range s.rows {
		if r.ID == id {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) ListByRoleGroup(_ context.Context, roleGroupID int) ([]model.Role2FileTypeLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Role2FileTypeLink
	for _, r := range s.rows {
		if r.RoleGroupID != nil && *r.RoleGroupID == roleGroupID && r.FileTypeID != nil {
			out = append(out, model.Role2FileTypeLink{RoleGroupID: roleGroupID, FileTypeID: *r.FileTypeID})
		}
	}
	return out, nil
}

func (s *fakeStore) has(link model.Role2FileTypeLink) bool {
	for _, r := range s.rows {
		if r.RoleGroupID != nil && r.FileTypeID != nil &&
			*r.RoleGroupID == link.RoleGroupID && *r.FileTypeID == link.FileTypeID {
			return true
		}
	}
	return false
}

func (s *fakeStore) CreateLinks(_ context.Context, links []model.Role2FileTypeLink) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	created := 0
	for _, l := range links {
		if s.has(l) {
			continue
		}
		s.rows = append(s.rows, model.Role2FileType{ID: s.nextID, RoleGroupID: intPtr(l.RoleGroupID), FileTypeID: intPtr(l.FileTypeID)})
		s.nextID++
		created++
	}
	return created, nil
}

func (s *fakeStore) Update(_ context.Context, u model.Role2FileTypeUpdate) (*model.Role2FileType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.rows {
		if s.rows[i].ID != u.ID {
			continue
		}
		if u.RoleGroupID != nil {
			s.rows[i].RoleGroupID = intPtr(*u.RoleGroupID)
		}
		if u.FileTypeID != nil {
			s.rows[i].FileTypeID = intPtr(*u.FileTypeID)
		}
		row := s.rows[i]
		return &row, nil
	}
	return nil, nil
}

func (s *fakeStore) DeleteLinks(_ context.Context, links []model.Role2FileTypeLink) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	kept := s.rows[:0]
	deleted := 0
	for _, r := range s.rows {
		match := false
		for _, l := range links {
			if r.RoleGroupID != nil && r.FileTypeID != nil && *r.RoleGroupID == l.RoleGroupID && *r.FileTypeID == l.FileTypeID {
				match = true
				break
			}
		}
		if match {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return deleted, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.Role2FileTypeEvent
}

func (p *fakePublisher) Publish(event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := data.(model.Role2FileTypeEvent); ok && event == "role2filetype" {
		p.events = append(p.events, ev)
	}
}

func newTestEcho(store *fakeStore, pub *fakePublisher) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.Use(middleware.FaultBarrier(zerolog.Nop()))
	h := &Role2FileTypeHandler{Store: store}
	if pub != nil {
		h.Events = pub
	}
	api := e.Group("/api/v3")
	api.GET("/getRole2FileType", h.Get)
	api.GET("/getAllFileTypeByRoleId", h.ListByRoleGroup)
	api.POST("/createRole2FileTypeByList", h.CreateByList)
	api.PUT("/updateRole2FileType", h.Update)
	api.DELETE("/deleteRole2FileType", h.DeleteByList)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func errorText(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body.Error
}

func TestGet_Found(t *testing.T) {
	store := newFakeStore(model.Role2FileType{ID: 1, RoleGroupID: intPtr(2), FileTypeID: intPtr(3)})
	rr := do(newTestEcho(store, nil), http.MethodGet, "/api/v3/getRole2FileType?id=1", "")

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"id":1,"role_group_id":2,"file_type_id":3}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestGet_NullReferences(t *testing.T) {
	store := newFakeStore(model.Role2FileType{ID: 4})
	rr := do(newTestEcho(store, nil), http.MethodGet, "/api/v3/getRole2FileType?id=4", "")

	if got := strings.TrimSpace(rr.Body.String()); got != `{"id":4,"role_group_id":null,"file_type_id":null}` {
		t.Fatalf("unexpected body %s", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	rr := do(newTestEcho(newFakeStore(), nil), http.MethodGet, "/api/v3/getRole2FileType?id=5", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := errorText(t, rr); got != "404: Role2FileType with {'id': 5} does not exist" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestGet_ZeroIDIsLookedUp(t *testing.T) {
	rr := do(newTestEcho(newFakeStore(), nil), http.MethodGet, "/api/v3/getRole2FileType?id=0", "")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := errorText(t, rr); got != "404: Role2FileType with {'id': 0} does not exist" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestGet_InvalidQuery(t *testing.T) {
	e := newTestEcho(newFakeStore(), nil)
	for _, target := range []string{"/api/v3/getRole2FileType", "/api/v3/getRole2FileType?id=abc"} {
		rr := do(e, http.MethodGet, target, "")
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d", target, rr.Code)
		}
		if !strings.HasPrefix(errorText(t, rr), "422: ") {
			t.Fatalf("%s: unexpected error %q", target, rr.Body.String())
		}
	}
}

func TestGet_RecordsNarrativeEntry(t *testing.T) {
	store := newFakeStore(model.Role2FileType{ID: 1, RoleGroupID: intPtr(2), FileTypeID: intPtr(3)})
	e := newTestEcho(store, nil)
	buf := reqlog.NewBuffer("t")
	req := httptest.NewRequest(http.MethodGet, "/api/v3/getRole2FileType?id=1", nil)
	req = req.WithContext(reqlog.NewContext(req.Context(), buf))
	e.ServeHTTP(httptest.NewRecorder(), req)

	if buf.Len() != 1 {
		t.Fatalf("expected one entry, got %d", buf.Len())
	}
	if got := buf.Entries()[0].Message; got != "Role2FileType 1 fetched" {
		t.Fatalf("unexpected entry %q", got)
	}
}

func TestListByRoleGroup(t *testing.T) {
	store := newFakeStore(
		model.Role2FileType{ID: 1, RoleGroupID: intPtr(7), FileTypeID: intPtr(1)},
		model.Role2FileType{ID: 2, RoleGroupID: intPtr(8), FileTypeID: intPtr(1)},
		model.Role2FileType{ID: 3, RoleGroupID: intPtr(7), FileTypeID: intPtr(2)},
	)
	e := newTestEcho(store, nil)

	rr := do(e, http.MethodGet, "/api/v3/getAllFileTypeByRoleId?role_group_id=7", "")
	want := `[{"role_group_id":7,"file_type_id":1},{"role_group_id":7,"file_type_id":2}]`
	if got := strings.TrimSpace(rr.Body.String()); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	rr = do(e, http.MethodGet, "/api/v3/getAllFileTypeByRoleId?role_group_id=99", "")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty list, got %s", got)
	}
}

func TestCreateByList_SkipsExisting(t *testing.T) {
	store := newFakeStore(model.Role2FileType{ID: 1, RoleGroupID: intPtr(1), FileTypeID: intPtr(2)})
	pub := &fakePublisher{}
	rr := do(newTestEcho(store, pub), http.MethodPost, "/api/v3/createRole2FileTypeByList",
		`[{"role_group_id":1,"file_type_id":2},{"role_group_id":1,"file_type_id":3}]`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "null" {
		t.Fatalf("expected null body, got %s", got)
	}
	if len(store.rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(store.rows))
	}
	if len(pub.events) != 1 || pub.events[0].Action != model.ActionCreated {
		t.Fatalf("expected one created event, got %+v", pub.events)
	}
}

func TestCreateByList_NothingNewPublishesNothing(t *testing.T) {
	store := newFakeStore(model.Role2FileType{ID: 1, RoleGroupID: intPtr(1), FileTypeID: intPtr(2)})
	pub := &fakePublisher{}
	rr := do(newTestEcho(store, pub), http.MethodPost, "/api/v3/createRole2FileTypeByList",
		`[{"role_group_id":1,"file_type_id":2}]`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no events, got %+v", pub.events)
	}
}

func TestCreateByList_AcceptsZeroIDs(t *testing.T) {
	store := newFakeStore()
	rr := do(newTestEcho(store, nil), http.MethodPost, "/api/v3/createRole2FileTypeByList",
		`[{"role_group_id":0,"file_type_id":0}]`)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.rows) != 1 || *store.rows[0].RoleGroupID != 0 || *store.rows[0].FileTypeID != 0 {
		t.Fatalf("unexpected rows %+v", store.rows)
	}
}

func TestCreateByList_InvalidBody(t *testing.T) {
	e := newTestEcho(newFakeStore(), nil)
	for _, body := range []string{`{not json`, `[{"role_group_id":1}]`, `{"role_group_id":1,"file_type_id":2}`} {
		rr := do(e, http.MethodPost, "/api/v3/createRole2FileTypeByList", body)
		if rr.Code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: expected 422, got %d: %s", body, rr.Code, rr.Body.String())
		}
	}
}

func TestUpdate_Partial(t *testing.T) {
	store := newFakeStore(model.Role2FileType{ID: 1, RoleGroupID: intPtr(2), FileTypeID: intPtr(3)})
	pub := &fakePublisher{}
	rr := do(newTestEcho(store, pub), http.MethodPut, "/api/v3/updateRole2FileType", `{"id":1,"file_type_id":9}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := strings.TrimSpace(rr.Body.String()); got != `{"id":1,"role_group_id":2,"file_type_id":9}` {
		t.Fatalf("unexpected body %s", got)
	}
	if len(pub.events) != 1 || pub.events[0].Row == nil || pub.events[0].Row.ID != 1 {
		t.Fatalf("expected one updated event, got %+v", pub.events)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	rr := do(newTestEcho(newFakeStore(), nil), http.MethodPut, "/api/v3/updateRole2FileType", `{"id":42,"role_group_id":1}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if got := errorText(t, rr); got != "404: Role2FileType with {'id': 42} does not exist" {
		t.Fatalf("unexpected error %q", got)
	}
}

func TestUpdate_ZeroIDIsLookedUp(t *testing.T) {
	rr := do(newTestEcho(newFakeStore(), nil), http.MethodPut, "/api/v3/updateRole2FileType", `{"id":0,"role_group_id":1}`)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdate_MissingID(t *testing.T) {
	rr := do(newTestEcho(newFakeStore(), nil), http.MethodPut, "/api/v3/updateRole2FileType", `{"role_group_id":1}`)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestDeleteByList(t *testing.T) {
	store := newFakeStore(
		model.Role2FileType{ID: 1, RoleGroupID: intPtr(1), FileTypeID: intPtr(2)},
		model.Role2FileType{ID: 2, RoleGroupID: intPtr(1), FileTypeID: intPtr(3)},
	)
	pub := &fakePublisher{}
	rr := do(newTestEcho(store, pub), http.MethodDelete, "/api/v3/deleteRole2FileType", `[{"role_group_id":1,"file_type_id":2}]`)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rr.Body.String())
	}
	if len(store.rows) != 1 || store.rows[0].ID != 2 {
		t.Fatalf("unexpected rows %+v", store.rows)
	}
	if len(pub.events) != 1 || pub.events[0].Action != model.ActionDeleted {
		t.Fatalf("expected one deleted event, got %+v", pub.events)
	}
}

func TestStoreFailureIsUnclassified(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	rr := do(newTestEcho(store, nil), http.MethodGet, "/api/v3/getRole2FileType?id=1", "")

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["code"] != "ERROR" || body["errorText"] != "get role2filetype 1: connection refused" {
		t.Fatalf("unexpected body %v", body)
	}
}
