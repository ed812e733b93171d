package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeAPI is an httptest server speaking the remote task API:
// POST /auth/login, GET|POST /todos, PATCH|DELETE /todos/{id}, POST /images.
type FakeAPI struct {
	*httptest.Server

	// Token is issued by login and required on every other route.
	Token string

	// Envelope wraps successful responses as {"success": true, "data": ...}.
	Envelope bool

	// Omit lists task fields left out of GET /todos responses.
	Omit []string

	mu      sync.Mutex
	tasks   []map[string]any
	nextID  int
	uploads int
}

// NewFakeAPI starts a FakeAPI that is closed when the test ends.
func NewFakeAPI(t *testing.T) *FakeAPI {
	t.Helper()
	api := &FakeAPI{Token: "api-token"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", api.login)
	mux.HandleFunc("GET /todos", api.auth(api.list))
	mux.HandleFunc("POST /todos", api.auth(api.create))
	mux.HandleFunc("PATCH /todos/{id}", api.auth(api.update))
	mux.HandleFunc("DELETE /todos/{id}", api.auth(api.remove))
	mux.HandleFunc("POST /images", api.auth(api.upload))
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

// Tasks returns a copy of the stored tasks.
func (a *FakeAPI) Tasks() []map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]map[string]any, len(a.tasks))
	for i, t := range a.tasks {
		c := make(map[string]any, len(t))
		for k, v := range t {
			c[k] = v
		}
		out[i] = c
	}
	return out
}

// Uploads returns the number of images received.
func (a *FakeAPI) Uploads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.uploads
}

func (a *FakeAPI) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+a.Token {
			a.write(w, http.StatusUnauthorized, map[string]any{"message": "invalid token"}, false)
			return
		}
		next(w, r)
	}
}

func (a *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var body struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		a.write(w, http.StatusOK, map[string]any{"success": false, "message": "invalid credentials"}, false)
		return
	}
	a.write(w, http.StatusOK, map[string]any{"token": a.Token}, a.Envelope)
}

func (a *FakeAPI) list(w http.ResponseWriter, r *http.Request) {
	tasks := a.Tasks()
	for _, t := range tasks {
		for _, f := range a.Omit {
			delete(t, f)
		}
	}
	a.write(w, http.StatusOK, tasks, a.Envelope)
}

func (a *FakeAPI) create(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.write(w, http.StatusBadRequest, map[string]any{"message": err.Error()}, false)
		return
	}
	a.mu.Lock()
	a.nextID++
	body["id"] = a.nextID
	body["completed"] = false
	delete(body, "imageBase64")
	a.tasks = append(a.tasks, body)
	a.mu.Unlock()
	a.write(w, http.StatusCreated, map[string]any{"id": body["id"], "title": body["title"]}, a.Envelope)
}

func (a *FakeAPI) update(w http.ResponseWriter, r *http.Request) {
	var body struct{ Completed bool }
	_ = json.NewDecoder(r.Body).Decode(&body)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, t := range a.tasks {
		if fmt.Sprint(t["id"]) == r.PathValue("id") {
			t["completed"] = body.Completed
			a.write(w, http.StatusOK, t, a.Envelope)
			return
		}
	}
	a.write(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "task not found"}}, false)
}

func (a *FakeAPI) remove(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, t := range a.tasks {
		if fmt.Sprint(t["id"]) == r.PathValue("id") {
			a.tasks = append(a.tasks[:i], a.tasks[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	a.write(w, http.StatusNotFound, map[string]any{"error": map[string]any{"message": "task not found"}}, false)
}

func (a *FakeAPI) upload(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("image")
	if err != nil {
		a.write(w, http.StatusBadRequest, map[string]any{"message": err.Error()}, false)
		return
	}
	defer f.Close()
	_, _ = io.Copy(io.Discard, f)
	a.mu.Lock()
	a.uploads++
	a.mu.Unlock()
	a.write(w, http.StatusOK, map[string]any{"path": "/uploads/" + strings.ReplaceAll(hdr.Filename, "/", "_")}, a.Envelope)
}

func (a *FakeAPI) write(w http.ResponseWriter, status int, v any, envelope bool) {
	if envelope {
		v = map[string]any{"success": true, "data": v}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
