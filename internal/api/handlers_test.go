package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kuitang/noteful/internal/auth"
	"github.com/kuitang/noteful/internal/notes"
	"github.com/kuitang/noteful/internal/obs"
	"github.com/kuitang/noteful/internal/testdb"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// tb is the subset of testing.TB that rapid.T also satisfies.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

type testServer struct {
	server *httptest.Server
}

func newTestServer(t testing.TB) *testServer {
	t.Helper()
	d := testdb.Open(t)
	tokens, err := auth.NewTokenService(testSecret, "noteful", time.Hour)
	require.NoError(t, err)
	metrics := obs.NewMetrics(d.SQL())

	h := NewHandler(Services{
		Notes:   notes.NewService(notes.NewSQLRepository(d), notes.NewReferenceValidator(d)),
		Folders: notes.NewFolders(d),
		Tags:    notes.NewTags(d),
		Users:   auth.NewUserService(d, auth.InsecureHasher{}),
		Tokens:  tokens,
		DB:      d,
		Metrics: metrics.Handler(),
	})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(obs.RequestContextMiddleware(obs.AccessLogMiddleware("api", metrics.Middleware(mux))))
	t.Cleanup(srv.Close)
	return &testServer{server: srv}
}

func (s *testServer) do(t tb, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// signup registers and logs in a user, returning its id and token.
func (s *testServer) signup(t tb, username string) (string, string) {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": username, "password": "password123", "fullname": "Test " + username,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var user map[string]any
	require.NoError(t, json.Unmarshal(body, &user))

	resp, body = s.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))
	require.NotEmpty(t, tok.AuthToken)
	return user["id"].(string), tok.AuthToken
}

func (s *testServer) create(t tb, path, token string, body any) map[string]any {
	t.Helper()
	resp, data := s.do(t, http.MethodPost, path, token, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(data))
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	require.Equal(t, path+"/"+out["id"].(string), resp.Header.Get("Location"))
	return out
}

func decodeError(t tb, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e), string(data))
	return e
}

func TestRegister_API(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": "alice", "password": "password123", "fullname": " Alice ",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var user map[string]any
	require.NoError(t, json.Unmarshal(body, &user))
	require.Equal(t, "alice", user["username"])
	require.Equal(t, "Alice", user["fullname"])
	require.NotContains(t, user, "password")
	require.Equal(t, "/api/users/"+user["id"].(string), resp.Header.Get("Location"))

	resp, body = s.do(t, http.MethodPost, "/api/users", "", map[string]string{
		"username": "alice", "password": "password456",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeError(t, body)
	require.Equal(t, "duplicate_username", e.Code)
	require.Equal(t, "The username already exists", e.Message)
	require.Equal(t, "username", e.Location)

	resp, body = s.do(t, http.MethodPost, "/api/users", "", map[string]any{"username": "bob", "password": 12345678})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	e = decodeError(t, body)
	require.Equal(t, "password has to be a string", e.Message)
	require.Equal(t, "password", e.Location)

	resp, _ = s.do(t, http.MethodPost, "/api/users", "", "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLoginAndRefresh(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	_, token := s.signup(t, "alice")

	resp, body := s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Bad Request", decodeError(t, body).Message)

	resp, body = s.do(t, http.MethodPost, "/api/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Unauthorized", decodeError(t, body).Message)

	resp, body = s.do(t, http.MethodPost, "/api/refresh", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(body, &tok))

	resp, _ = s.do(t, http.MethodGet, "/api/notes", tok.AuthToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/refresh", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotes_RequireAuth(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/notes"},
		{http.MethodGet, "/api/notes/00000000-0000-4000-8000-000000000001"},
		{http.MethodPost, "/api/notes"},
		{http.MethodPut, "/api/notes/00000000-0000-4000-8000-000000000001"},
		{http.MethodDelete, "/api/notes/00000000-0000-4000-8000-000000000001"},
		{http.MethodGet, "/api/folders"},
		{http.MethodPost, "/api/tags"},
	} {
		resp, body := s.do(t, route.method, route.path, "bogus", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, route.path)
		require.Equal(t, "unauthenticated", decodeError(t, body).Code)
	}
}

func TestNotes_CRUD(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	userID, token := s.signup(t, "alice")

	folder := s.create(t, "/api/folders", token, map[string]string{"name": "Work"})
	tag := s.create(t, "/api/tags", token, map[string]string{"name": "urgent"})

	note := s.create(t, "/api/notes", token, map[string]any{
		"title":    "Quarterly report",
		"content":  "draft",
		"folderId": folder["id"],
		"tags":     []any{tag["id"]},
	})
	require.Equal(t, userID, note["userId"])
	require.Equal(t, folder["id"], note["folderId"])
	tags := note["tags"].([]any)
	require.Len(t, tags, 1)
	require.Equal(t, "urgent", tags[0].(map[string]any)["name"])
	noteURL := "/api/notes/" + note["id"].(string)

	resp, body := s.do(t, http.MethodGet, noteURL, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, note["id"], got["id"])

	// PUT replaces the whole note: omitted folder and tags are cleared.
	resp, body = s.do(t, http.MethodPut, noteURL, token, map[string]any{"title": "Final report"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated map[string]any
	require.NoError(t, json.Unmarshal(body, &updated))
	require.Equal(t, "Final report", updated["title"])
	require.NotContains(t, updated, "folderId")
	require.Empty(t, updated["tags"])

	resp, body = s.do(t, http.MethodGet, noteURL, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reread map[string]any
	require.NoError(t, json.Unmarshal(body, &reread))
	require.NotContains(t, reread, "folderId")
	require.Empty(t, reread["tags"])

	resp, _ = s.do(t, http.MethodDelete, noteURL, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodDelete, noteURL, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodDelete, "/api/notes/not-an-id", token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, noteURL, token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "Not Found", decodeError(t, body).Message)
}

func TestNotes_ValidationErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	_, alice := s.signup(t, "alice")
	_, bob := s.signup(t, "bob")
	bobFolder := s.create(t, "/api/folders", bob, map[string]string{"name": "Bob's"})
	bobTag := s.create(t, "/api/tags", bob, map[string]string{"name": "bob"})

	cases := []struct {
		name     string
		body     any
		code     string
		message  string
		location string
	}{
		{"missing title", map[string]any{"content": "x"}, "missing_field", "Missing `title` in request body", "title"},
		{"malformed folder", map[string]any{"title": "t", "folderId": "nope"}, "malformed_id", "The `folderId` is not valid", "folderId"},
		{"malformed tag", map[string]any{"title": "t", "tags": []string{"nope"}}, "malformed_id", "The `tags.id` is not valid: \"nope\"", "tags"},
		{"foreign folder", map[string]any{"title": "t", "folderId": bobFolder["id"]}, "invalid_folder", "The folder is not valid", "folderId"},
		{"foreign tag", map[string]any{"title": "t", "tags": []any{bobTag["id"]}}, "invalid_tag", "The tag is not valid", "tags"},
		{"bad json", "{", "invalid_argument", "Invalid JSON body", ""},
	}
	for _, tc := range cases {
		resp, body := s.do(t, http.MethodPost, "/api/notes", alice, tc.body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.name)
		e := decodeError(t, body)
		require.Equal(t, tc.code, e.Code, tc.name)
		require.Equal(t, tc.message, e.Message, tc.name)
		require.Equal(t, tc.location, e.Location, tc.name)
	}

	resp, body := s.do(t, http.MethodGet, "/api/notes/not-an-id", alice, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "malformed_id", decodeError(t, body).Code)

	resp, body = s.do(t, http.MethodGet, "/api/notes?searchTerm=%28", alice, nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "searchTerm", decodeError(t, body).Location)

	// Nothing was persisted for alice.
	resp, body = s.do(t, http.MethodGet, "/api/notes", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `[]`, string(body))
}

func TestNotes_ListFiltersAndIsolation(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	_, alice := s.signup(t, "alice")
	_, bob := s.signup(t, "bob")

	folder := s.create(t, "/api/folders", alice, map[string]string{"name": "Recipes"})
	tag := s.create(t, "/api/tags", alice, map[string]string{"name": "dinner"})
	s.create(t, "/api/notes", alice, map[string]any{"title": "Lasagna", "content": "layers", "folderId": folder["id"], "tags": []any{tag["id"]}})
	s.create(t, "/api/notes", alice, map[string]any{"title": "Groceries", "content": "milk, lasagna sheets"})
	s.create(t, "/api/notes", bob, map[string]any{"title": "Lasagna", "content": "bob's"})

	list := func(token, query string) []map[string]any {
		resp, body := s.do(t, http.MethodGet, "/api/notes"+query, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var out []map[string]any
		require.NoError(t, json.Unmarshal(body, &out))
		return out
	}

	require.Len(t, list(alice, ""), 2)
	require.Len(t, list(bob, ""), 1)
	require.Len(t, list(alice, "?searchTerm=(?i)lasagna"), 2)
	require.Len(t, list(alice, "?searchTerm=Lasagna"), 1)
	require.Len(t, list(alice, "?folderId="+folder["id"].(string)), 1)
	require.Len(t, list(alice, "?tagId="+tag["id"].(string)), 1)
	require.Len(t, list(bob, "?folderId="+folder["id"].(string)), 0)
	require.Len(t, list(alice, "?folderId=garbage"), 0)

	// Newest first.
	all := list(alice, "")
	require.Equal(t, "Groceries", all[0]["title"])
}

func TestCatalog_API(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	_, token := s.signup(t, "alice")

	folder := s.create(t, "/api/folders", token, map[string]string{"name": "Inbox"})
	resp, body := s.do(t, http.MethodPost, "/api/folders", token, map[string]string{"name": "Inbox"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "duplicate_name", decodeError(t, body).Code)

	resp, body = s.do(t, http.MethodPost, "/api/tags", token, map[string]string{"name": "  "})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "Missing `name` in request body", decodeError(t, body).Message)

	url := "/api/folders/" + folder["id"].(string)
	resp, body = s.do(t, http.MethodPut, url, token, map[string]string{"name": "Archive"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var renamed map[string]any
	require.NoError(t, json.Unmarshal(body, &renamed))
	require.Equal(t, "Archive", renamed["name"])

	note := s.create(t, "/api/notes", token, map[string]any{"title": "n", "folderId": folder["id"]})
	resp, _ = s.do(t, http.MethodDelete, url, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = s.do(t, http.MethodDelete, url, token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/api/notes/"+note["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got map[string]any
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotContains(t, got, "folderId")

	resp, _ = s.do(t, http.MethodGet, url, token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(body))

	resp, body = s.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `noteful_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
	require.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("disk on fire") }

func TestHealth_Unavailable(t *testing.T) {
	t.Parallel()
	h := NewHandler(Services{DB: failingPinger{}})
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NotContains(t, rec.Body.String(), "disk on fire")
}

func TestForeignReferencesRejected(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	_, bob := s.signup(t, "bob")
	bobTag := s.create(t, "/api/tags", bob, map[string]string{"name": "b"})
	var users atomic.Int64

	rapid.Check(t, func(rt *rapid.T) {
		_, alice := s.signup(rt, fmt.Sprintf("alice%d", users.Add(1)))
		n := rapid.IntRange(0, 4).Draw(rt, "ownTags")
		ids := []any{}
		for i := 0; i < n; i++ {
			name := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, "name") + strconv.Itoa(i)
			tag := s.create(rt, "/api/tags", alice, map[string]string{"name": name})
			ids = append(ids, tag["id"])
		}
		pos := rapid.IntRange(0, len(ids)).Draw(rt, "foreignAt")
		ids = append(ids[:pos], append([]any{bobTag["id"]}, ids[pos:]...)...)

		resp, body := s.do(rt, http.MethodPost, "/api/notes", alice, map[string]any{"title": "t", "tags": ids})
		if resp.StatusCode != http.StatusBadRequest || decodeError(rt, body).Code != "invalid_tag" {
			rt.Fatalf("expected invalid_tag, got %d %s", resp.StatusCode, body)
		}
		resp, body = s.do(rt, http.MethodGet, "/api/notes", alice, nil)
		if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
			rt.Fatalf("note persisted despite invalid tag: %s", body)
		}
	})
}
