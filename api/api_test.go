package api

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/searchktools/webpool/core/codec"
	"github.com/searchktools/webpool/core/http"
	"github.com/searchktools/webpool/core/router"
)

func request(method http.Method, path string, headers map[string]string, body string) *http.Request {
	if headers == nil {
		headers = map[string]string{}
	}
	return &http.Request{
		Method:    method,
		RawMethod: method.String(),
		Path:      path,
		Proto:     "HTTP/1.1",
		Headers:   headers,
		Body:      []byte(body),
	}
}

func newRouter(t *testing.T, opts Options) (*router.Router, *Users) {
	t.Helper()
	r := router.New()
	users := Register(r, opts)
	return r, users
}

func TestRegisterRoutes(t *testing.T) {
	r, _ := newRouter(t, Options{Stats: func() any { return nil }})

	var listed []string
	for _, route := range r.Routes() {
		listed = append(listed, route.Method.String()+" "+route.Path)
	}
	assert.ElementsMatch(t, []string{
		"GET /",
		"GET /sleep",
		"GET /api/health",
		"GET /api/users",
		"POST /api/users",
		"PUT /api/users/1",
		"DELETE /api/users/1",
		"GET /api/stats",
	}, listed)
}

func TestIndex(t *testing.T) {
	r, _ := newRouter(t, Options{IndexFile: filepath.Join(t.TempDir(), "missing.html")})
	resp := r.Dispatch(request(http.MethodGet, "/", nil, ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, http.ContentTypeHTML, resp.Header(http.HeaderContentType))
	assert.Equal(t, defaultWelcomePage, string(resp.Body))

	page := filepath.Join(t.TempDir(), "hello.html")
	require.NoError(t, os.WriteFile(page, []byte("<h1>Hello!</h1>"), 0o644))
	r, _ = newRouter(t, Options{IndexFile: page})
	resp = r.Dispatch(request(http.MethodGet, "/", nil, ""))
	assert.Equal(t, "<h1>Hello!</h1>", string(resp.Body))
}

func TestSleep(t *testing.T) {
	r, _ := newRouter(t, Options{SleepDelay: 50 * time.Millisecond})

	start := time.Now()
	resp := r.Dispatch(request(http.MethodGet, "/sleep", nil, ""))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, sleepPage, string(resp.Body))
}

func TestHealth(t *testing.T) {
	r, _ := newRouter(t, Options{ServerName: "webpool"})

	resp := r.Dispatch(request(http.MethodGet, "/api/health", nil, ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, http.ContentTypeJSON, resp.Header(http.HeaderContentType))
	assert.JSONEq(t, `{"status": "healthy", "server": "webpool"}`, string(resp.Body))
}

func TestListUsersJSON(t *testing.T) {
	r, _ := newRouter(t, Options{})

	resp := r.Dispatch(request(http.MethodGet, "/api/users", nil, ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, http.ContentTypeJSON, resp.Header(http.HeaderContentType))
	assert.JSONEq(t, `[
		{"id": 1, "name": "Alice", "email": "alice@example.com"},
		{"id": 2, "name": "Bob", "email": "bob@example.com"}
	]`, string(resp.Body))
}

func TestListUsersProtobuf(t *testing.T) {
	r, _ := newRouter(t, Options{})

	resp := r.Dispatch(request(http.MethodGet, "/api/users",
		map[string]string{"Accept": codec.ContentTypeProtobuf}, ""))
	assert.Equal(t, codec.ContentTypeProtobuf, resp.Header(http.HeaderContentType))

	var value structpb.ListValue
	require.NoError(t, proto.Unmarshal(resp.Body, &value))
	list := value.GetValues()
	require.Len(t, list, 2)
	assert.Equal(t, "Bob", list[1].GetStructValue().GetFields()["name"].GetStringValue())
}

func TestCreateUser(t *testing.T) {
	r, users := newRouter(t, Options{})

	resp := r.Dispatch(request(http.MethodPost, "/api/users",
		map[string]string{"Content-Type": "application/json"},
		`{"name": "Carol", "email": "carol@example.com"}`))
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "Created", resp.Reason)
	assert.JSONEq(t, `{"message": "User created successfully", "id": 3}`, string(resp.Body))

	list := users.List()
	require.Len(t, list, 3)
	assert.Equal(t, User{ID: 3, Name: "Carol", Email: "carol@example.com"}, list[2])

	// payloads are not validated
	resp = r.Dispatch(request(http.MethodPost, "/api/users", nil, "not json"))
	assert.Equal(t, 201, resp.StatusCode)
	assert.JSONEq(t, `{"message": "User created successfully", "id": 4}`, string(resp.Body))
}

func TestCreateUserProtobuf(t *testing.T) {
	r, users := newRouter(t, Options{})

	body, err := structpb.NewStruct(map[string]any{"name": "Dave", "email": "dave@example.com"})
	require.NoError(t, err)
	data, err := proto.Marshal(body)
	require.NoError(t, err)

	resp := r.Dispatch(request(http.MethodPost, "/api/users",
		map[string]string{"Content-Type": codec.ContentTypeProtobuf}, string(data)))
	assert.Equal(t, 201, resp.StatusCode)
	assert.Equal(t, "Dave", users.List()[2].Name)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	r, users := newRouter(t, Options{})

	resp := r.Dispatch(request(http.MethodPut, "/api/users/1", nil, `{"email": "alice@new.example.com"}`))
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"message": "User updated successfully"}`, string(resp.Body))
	assert.Equal(t, User{ID: 1, Name: "Alice", Email: "alice@new.example.com"}, users.List()[0])

	resp = r.Dispatch(request(http.MethodDelete, "/api/users/1", nil, ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"message": "User deleted successfully"}`, string(resp.Body))
	assert.Len(t, users.List(), 1)

	// repeated delete still reports success
	resp = r.Dispatch(request(http.MethodDelete, "/api/users/1", nil, ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.False(t, users.Delete(1))
	assert.False(t, users.Update(1, User{Name: "ghost"}))
}

func TestUserPathsAreLiteral(t *testing.T) {
	r, _ := newRouter(t, Options{})

	assert.Equal(t, 404, r.Dispatch(request(http.MethodPut, "/api/users/2", nil, "")).StatusCode)
	assert.Equal(t, 404, r.Dispatch(request(http.MethodGet, "/api/users?page=1", nil, "")).StatusCode)
}

func TestStats(t *testing.T) {
	r, _ := newRouter(t, Options{Stats: func() any {
		return map[string]int{"workers": 4}
	}})

	resp := r.Dispatch(request(http.MethodGet, "/api/stats", nil, ""))
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"workers": 4}`, string(resp.Body))

	r, _ = newRouter(t, Options{Stats: func() any { return make(chan int) }})
	resp = r.Dispatch(request(http.MethodGet, "/api/stats", nil, ""))
	assert.Equal(t, 500, resp.StatusCode)
}
