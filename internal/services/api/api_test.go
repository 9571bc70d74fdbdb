package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"backplane/internal/backend/memory"
	"backplane/internal/platform/config"
	phttp "backplane/internal/platform/net/http"
	"backplane/internal/services/api"
)

// envelope mirrors the wire envelope for assertions
type envelope struct {
	StatusCode int             `json:"status_code"`
	Code       string          `json:"code,omitempty"`
	Error      string          `json:"error,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()

	eng := memory.New(memory.Options{EntityTypes: []string{"post", "user"}})
	t.Cleanup(func() { _ = eng.Close(t.Context()) })

	r := phttp.AdaptChi(chi.NewRouter())
	api.Mount(r, api.Options{Config: config.New(), Backend: eng})

	srv := httptest.NewServer(r.Mux())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any, token string) (int, envelope) {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("%s %s: decode envelope: %v", method, url, err)
		}
	}
	return resp.StatusCode, env
}

func dataMap(t *testing.T, env envelope) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("decode data object: %v", err)
	}
	return m
}

func dataList(t *testing.T, env envelope) []map[string]any {
	t.Helper()
	var l []map[string]any
	if err := json.Unmarshal(env.Data, &l); err != nil {
		t.Fatalf("decode data list: %v", err)
	}
	return l
}

func TestRecordsCRUDOverHTTP(t *testing.T) {
	srv := newTestAPI(t)
	base := srv.URL + "/api/v1/post"

	// create
	status, env := do(t, http.MethodPost, base, map[string]any{"title": "hello", "score": 1}, "")
	if status != http.StatusCreated {
		t.Fatalf("create: expected 201 got %d (%s)", status, env.Error)
	}
	created := dataMap(t, env)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("created record missing id: %v", created)
	}
	if created["createdAt"] == nil || created["updatedAt"] == nil {
		t.Fatalf("created record missing stamps: %v", created)
	}

	// read it back
	status, env = do(t, http.MethodGet, base+"/"+id, nil, "")
	if status != http.StatusOK {
		t.Fatalf("get: expected 200 got %d", status)
	}
	if got := dataMap(t, env); got["title"] != "hello" {
		t.Fatalf("get returned wrong record: %v", got)
	}

	// patch
	status, env = do(t, http.MethodPatch, base+"/"+id, map[string]any{"title": "renamed"}, "")
	if status != http.StatusOK {
		t.Fatalf("patch: expected 200 got %d (%s)", status, env.Error)
	}
	if got := dataMap(t, env); got["title"] != "renamed" {
		t.Fatalf("patch not applied: %v", got)
	}

	// id is protected against patching
	status, env = do(t, http.MethodPatch, base+"/"+id, map[string]any{"id": "forged"}, "")
	if status != http.StatusOK {
		t.Fatalf("patch: expected 200 got %d", status)
	}
	if got := dataMap(t, env); got["id"] != id {
		t.Fatalf("id must survive patches: %v", got)
	}

	// delete, then 404 on read
	status, _ = do(t, http.MethodDelete, base+"/"+id, nil, "")
	if status != http.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", status)
	}
	status, env = do(t, http.MethodGet, base+"/"+id, nil, "")
	if status != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404 got %d", status)
	}
	if env.Error == "" {
		t.Fatalf("error envelope should carry a message")
	}

	// deleting again stays a silent no-op by contract
	status, _ = do(t, http.MethodDelete, base+"/"+id, nil, "")
	if status != http.StatusNoContent {
		t.Fatalf("repeat delete: expected 204 got %d", status)
	}

	// writes to unknown entity types fail, reads list empty
	status, env = do(t, http.MethodPost, srv.URL+"/api/v1/ghost", map[string]any{"x": 1}, "")
	if status != http.StatusNotFound {
		t.Fatalf("create unknown type: expected 404 got %d", status)
	}
	status, env = do(t, http.MethodPost, srv.URL+"/api/v1/ghost/query", map[string]any{}, "")
	if status != http.StatusOK {
		t.Fatalf("query unknown type: expected 200 got %d", status)
	}
	if got := dataList(t, env); len(got) != 0 {
		t.Fatalf("query unknown type should be empty, got %v", got)
	}
}

func TestRecordsQueryNearbyAndPage(t *testing.T) {
	srv := newTestAPI(t)
	base := srv.URL + "/api/v1/post"

	seed := []map[string]any{
		{"title": "berlin", "score": 3, "latitude": 52.52, "longitude": 13.405},
		{"title": "potsdam", "score": 1, "latitude": 52.39, "longitude": 13.06},
		{"title": "munich", "score": 2, "latitude": 48.137, "longitude": 11.575},
		{"title": "nowhere", "score": 9},
	}
	for _, rec := range seed {
		if status, env := do(t, http.MethodPost, base, rec, ""); status != http.StatusCreated {
			t.Fatalf("seed: expected 201 got %d (%s)", status, env.Error)
		}
	}

	// filtered + sorted query
	status, env := do(t, http.MethodPost, base+"/query", map[string]any{
		"where":   []map[string]any{{"field": "score", "op": "lte", "value": 3}},
		"orderBy": []map[string]any{{"field": "score", "dir": "desc"}},
	}, "")
	if status != http.StatusOK {
		t.Fatalf("query: expected 200 got %d (%s)", status, env.Error)
	}
	got := dataList(t, env)
	if len(got) != 3 || got[0]["title"] != "berlin" || got[2]["title"] != "potsdam" {
		t.Fatalf("query result wrong: %v", got)
	}

	// unknown operator maps to 400
	status, _ = do(t, http.MethodPost, base+"/query", map[string]any{
		"where": []map[string]any{{"field": "score", "op": "like", "value": 3}},
	}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("bad operator: expected 400 got %d", status)
	}

	// nearby: 50km around Berlin keeps berlin+potsdam, drops munich and the
	// record with no coordinates
	status, env = do(t, http.MethodPost, base+"/nearby", map[string]any{
		"latitude": 52.52, "longitude": 13.405, "radiusKm": 50,
		"orderBy": []map[string]any{{"field": "title", "dir": "asc"}},
	}, "")
	if status != http.StatusOK {
		t.Fatalf("nearby: expected 200 got %d (%s)", status, env.Error)
	}
	got = dataList(t, env)
	if len(got) != 2 || got[0]["title"] != "berlin" || got[1]["title"] != "potsdam" {
		t.Fatalf("nearby result wrong: %v", got)
	}

	// nearby without a radius is invalid
	status, _ = do(t, http.MethodPost, base+"/nearby", map[string]any{"latitude": 1.0, "longitude": 2.0}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("nearby without radius: expected 400 got %d", status)
	}

	// cursor pagination walks all four without duplicates
	seen := map[string]bool{}
	cursor := ""
	for i := 0; i < 4; i++ {
		status, env = do(t, http.MethodPost, base+"/page", map[string]any{"limit": 2, "cursor": cursor}, "")
		if status != http.StatusOK {
			t.Fatalf("page: expected 200 got %d (%s)", status, env.Error)
		}
		page := dataMap(t, env)
		var recs []map[string]any
		raw, _ := json.Marshal(page["records"])
		if err := json.Unmarshal(raw, &recs); err != nil {
			t.Fatalf("decode page records: %v", err)
		}
		for _, rec := range recs {
			id := rec["id"].(string)
			if seen[id] {
				t.Fatalf("cursor walk revisited %s", id)
			}
			seen[id] = true
		}
		if page["hasMore"] == false {
			break
		}
		cursor = page["nextCursor"].(string)
	}
	if len(seen) != 4 {
		t.Fatalf("cursor walk saw %d records, want 4", len(seen))
	}
}

func TestAuthFlowOverHTTP(t *testing.T) {
	srv := newTestAPI(t)
	base := srv.URL + "/api/v1/auth"

	// me without a token is unauthorized
	status, _ := do(t, http.MethodGet, base+"/me", nil, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401 got %d", status)
	}

	// sign up
	status, env := do(t, http.MethodPost, base+"/signup", map[string]any{
		"email": "ada@example.com", "password": "hunter2meow", "username": "ada",
	}, "")
	if status != http.StatusCreated {
		t.Fatalf("signup: expected 201 got %d (%s)", status, env.Error)
	}
	sess := dataMap(t, env)
	token, _ := sess["accessToken"].(string)
	if token == "" {
		t.Fatalf("signup session missing access token: %v", sess)
	}

	// the token opens /me and the record carries no password
	status, env = do(t, http.MethodGet, base+"/me", nil, token)
	if status != http.StatusOK {
		t.Fatalf("me: expected 200 got %d (%s)", status, env.Error)
	}
	me := dataMap(t, env)
	if me["email"] != "ada@example.com" {
		t.Fatalf("me returned wrong user: %v", me)
	}
	if _, leaked := me["password"]; leaked {
		t.Fatalf("password must never appear on the user record")
	}

	// invalid credentials map to validation failures
	status, _ = do(t, http.MethodPost, base+"/signup", map[string]any{
		"email": "not-an-email", "password": "hunter2meow", "username": "bob",
	}, "")
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("bad email: expected 422 got %d", status)
	}

	// wrong password is unauthorized
	status, _ = do(t, http.MethodPost, base+"/signin", map[string]any{
		"email": "ada@example.com", "password": "wrong-password",
	}, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("bad signin: expected 401 got %d", status)
	}

	// sign in then out
	status, env = do(t, http.MethodPost, base+"/signin", map[string]any{
		"email": "ada@example.com", "password": "hunter2meow",
	}, "")
	if status != http.StatusOK {
		t.Fatalf("signin: expected 200 got %d (%s)", status, env.Error)
	}
	status, _ = do(t, http.MethodPost, base+"/signout", nil, "")
	if status != http.StatusNoContent {
		t.Fatalf("signout: expected 204 got %d", status)
	}

	// a forged token stays unauthorized
	status, _ = do(t, http.MethodGet, base+"/me", nil, "not.a.token")
	if status != http.StatusUnauthorized {
		t.Fatalf("forged token: expected 401 got %d", status)
	}
}

func TestMetaEndpoints(t *testing.T) {
	srv := newTestAPI(t)

	status, env := do(t, http.MethodGet, srv.URL+"/api/v1/meta/health", nil, "")
	if status != http.StatusOK {
		t.Fatalf("health: expected 200 got %d", status)
	}
	health := dataMap(t, env)
	if health["ok"] != true || health["service"] != "backplane-api" {
		t.Fatalf("health payload wrong: %v", health)
	}

	status, env = do(t, http.MethodGet, srv.URL+"/api/v1/meta/ready", nil, "")
	if status != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", status)
	}
	if ready := dataMap(t, env); ready["status"] != "ok" {
		t.Fatalf("ready payload wrong: %v", ready)
	}

	status, env = do(t, http.MethodGet, srv.URL+"/api/v1/meta/version", nil, "")
	if status != http.StatusOK {
		t.Fatalf("version: expected 200 got %d", status)
	}
	if v := dataMap(t, env); v["service"] != "backplane-api" {
		t.Fatalf("version payload wrong: %v", v)
	}
}

func TestStaticPrefixesWinOverEntityWildcard(t *testing.T) {
	srv := newTestAPI(t)

	// /auth and /meta must never be captured by the /{entityType} routes
	status, _ := do(t, http.MethodGet, srv.URL+"/api/v1/meta/health", nil, "")
	if status != http.StatusOK {
		t.Fatalf("meta shadowed by records wildcard: %d", status)
	}
	status, _ = do(t, http.MethodPost, fmt.Sprintf("%s/api/v1/auth/signup", srv.URL), map[string]any{
		"email": "eve@example.com", "password": "longenough", "username": "eve",
	}, "")
	if status != http.StatusCreated {
		t.Fatalf("auth shadowed by records wildcard: %d", status)
	}
}
