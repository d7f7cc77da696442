package gatewaytest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// DefaultPageSize is the number of plugins returned per list page.
const DefaultPageSize = 100

// Request is one request received by the fake, with the status it got.
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
	Status int
}

type resource struct {
	id     string
	fields map[string]any
}

func (r *resource) view() map[string]any {
	out := make(map[string]any, len(r.fields)+1)
	for k, v := range r.fields {
		out[k] = v
	}
	out["id"] = r.id
	return out
}

type service struct {
	resource
	kind    string
	routes  []*resource
	plugins []*resource
}

type failure struct {
	method string
	path   string
	status int
	body   string
	once   bool
}

// Server is a fake Kong admin API backed by an httptest.Server.
type Server struct {
	t        testing.TB
	srv      *httptest.Server
	mu       sync.Mutex
	services map[string]*service
	requests []Request
	failures []*failure
	pageSize int
}

// NewServer starts a fake admin API. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:        t,
		services: make(map[string]*service),
		pageSize: DefaultPageSize,
	}
	s.srv = httptest.NewServer(s)
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the admin API base URL.
func (s *Server) URL() string {
	return s.srv.URL
}

// Close stops the server; later requests fail at the transport level.
func (s *Server) Close() {
	s.srv.Close()
}

// SetPageSize changes how many plugins a list page holds.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = 1
	}
	s.pageSize = n
}

// Fail makes every method+path request answer with status and body until
// ClearFailures is called.
func (s *Server) Fail(method, path string, status int, body string) {
	s.addFailure(&failure{method: method, path: path, status: status, body: body})
}

// FailOnce makes the next method+path request answer with status and body.
func (s *Server) FailOnce(method, path string, status int, body string) {
	s.addFailure(&failure{method: method, path: path, status: status, body: body, once: true})
}

// ClearFailures removes all injected failures.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = nil
}

func (s *Server) addFailure(f *failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, f)
}

// SeedService stores a service without going through the API. kind is
// derived from the fields: a "upstream_url" field marks a flat API.
func (s *Server) SeedService(name string, fields map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	kind := "services"
	if _, ok := fields["upstream_url"]; ok {
		kind = "apis"
	}
	svc := &service{resource: resource{id: uuid.NewString(), fields: copyFields(fields)}, kind: kind}
	svc.fields["name"] = name
	s.services[name] = svc
	return svc.id
}

// SeedRoute attaches a route to an existing service and returns its id.
func (s *Server) SeedRoute(serviceName string, fields map[string]any) string {
	s.t.Helper()
	s.mu.Lock()
	svc, ok := s.services[serviceName]
	if !ok {
		s.mu.Unlock()
		s.t.Fatalf("gatewaytest: service %q not seeded", serviceName)
	}
	defer s.mu.Unlock()
	r := &resource{id: uuid.NewString(), fields: copyFields(fields)}
	svc.routes = append(svc.routes, r)
	return r.id
}

// SeedPlugin attaches a plugin to an existing service and returns its id.
func (s *Server) SeedPlugin(serviceName, plugin string, config map[string]any) string {
	s.t.Helper()
	s.mu.Lock()
	svc, ok := s.services[serviceName]
	if !ok {
		s.mu.Unlock()
		s.t.Fatalf("gatewaytest: service %q not seeded", serviceName)
	}
	defer s.mu.Unlock()
	p := &resource{id: uuid.NewString(), fields: map[string]any{"name": plugin}}
	if config != nil {
		p.fields["config"] = copyFields(config)
	}
	svc.plugins = append(svc.plugins, p)
	return p.id
}

// Service returns the stored fields of a service.
func (s *Server) Service(name string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return nil, false
	}
	return svc.view(), true
}

// Routes returns the stored routes of a service, in creation order.
func (s *Server) Routes(name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(svc.routes))
	for i, r := range svc.routes {
		out[i] = r.view()
	}
	return out
}

// Plugins returns the stored plugins of a service, in creation order.
func (s *Server) Plugins(name string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return nil
	}
	out := make([]map[string]any, len(svc.plugins))
	for i, p := range svc.plugins {
		out[i] = p.view()
	}
	return out
}

// PluginNames returns the sorted plugin names of a service.
func (s *Server) PluginNames(name string) []string {
	plugins := s.Plugins(name)
	names := make([]string, 0, len(plugins))
	for _, p := range plugins {
		names = append(names, fmt.Sprint(p["name"]))
	}
	sort.Strings(names)
	return names
}

// Requests returns a copy of the request log.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the logged requests matching method and path.
func (s *Server) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	return len(s.RequestsTo(method, path))
}

// Writes returns how many non-GET requests were received.
func (s *Server) Writes() int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// ResetRequests clears the request log.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()

	status, payload := s.injected(r.Method, r.URL.Path)
	if status == 0 {
		status, payload = s.handle(r.Method, r.URL.Path, r.URL.Query().Get("offset"), body)
	}

	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
		Status: status,
	})

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func (s *Server) injected(method, path string) (int, []byte) {
	for i, f := range s.failures {
		if f.method != method || f.path != path {
			continue
		}
		if f.once {
			s.failures = append(s.failures[:i], s.failures[i+1:]...)
		}
		return f.status, []byte(f.body)
	}
	return 0, nil
}

func (s *Server) handle(method, path, offset string, body []byte) (int, []byte) {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if len(segs) == 0 || (segs[0] != "apis" && segs[0] != "services") {
		return message(http.StatusNotFound, "Not found")
	}
	kind := segs[0]

	switch len(segs) {
	case 1:
		if method != http.MethodPost {
			return message(http.StatusMethodNotAllowed, "Method not allowed")
		}
		return s.createService(kind, body)
	case 2:
		return s.serviceItem(method, segs[1], body)
	case 3, 4:
		svc, ok := s.services[segs[1]]
		if !ok {
			return message(http.StatusNotFound, "Not found")
		}
		id := ""
		if len(segs) == 4 {
			id = segs[3]
		}
		switch segs[2] {
		case "routes":
			return s.routes(method, svc, id, body)
		case "plugins":
			return s.plugins(method, svc, id, offset, body)
		}
	}
	return message(http.StatusNotFound, "Not found")
}

func (s *Server) createService(kind string, body []byte) (int, []byte) {
	fields, err := decode(body)
	if err != nil {
		return message(http.StatusBadRequest, err.Error())
	}
	name, _ := fields["name"].(string)
	if name == "" {
		return schemaViolation("name", "required field missing")
	}
	if _, exists := s.services[name]; exists {
		return message(http.StatusConflict, fmt.Sprintf("UNIQUE violation detected on '{name=%q}'", name))
	}
	svc := &service{resource: resource{id: uuid.NewString(), fields: fields}, kind: kind}
	s.services[name] = svc
	return jsonBody(http.StatusCreated, svc.view())
}

func (s *Server) serviceItem(method, name string, body []byte) (int, []byte) {
	svc, ok := s.services[name]
	switch method {
	case http.MethodGet:
		if !ok {
			return message(http.StatusNotFound, "Not found")
		}
		return jsonBody(http.StatusOK, svc.view())
	case http.MethodPatch:
		if !ok {
			return message(http.StatusNotFound, "Not found")
		}
		fields, err := decode(body)
		if err != nil {
			return message(http.StatusBadRequest, err.Error())
		}
		merge(svc.fields, fields)
		return jsonBody(http.StatusOK, svc.view())
	case http.MethodDelete:
		if ok {
			delete(s.services, name)
		}
		return http.StatusNoContent, nil
	}
	return message(http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *Server) routes(method string, svc *service, id string, body []byte) (int, []byte) {
	if id == "" {
		switch method {
		case http.MethodGet:
			data := make([]map[string]any, len(svc.routes))
			for i, r := range svc.routes {
				data[i] = r.view()
			}
			return jsonBody(http.StatusOK, map[string]any{"data": data, "next": nil})
		case http.MethodPost:
			fields, err := decode(body)
			if err != nil {
				return message(http.StatusBadRequest, err.Error())
			}
			fields["service"] = map[string]any{"id": svc.id}
			r := &resource{id: uuid.NewString(), fields: fields}
			svc.routes = append(svc.routes, r)
			return jsonBody(http.StatusCreated, r.view())
		}
		return message(http.StatusMethodNotAllowed, "Method not allowed")
	}

	idx := indexOf(svc.routes, id)
	if idx < 0 {
		return message(http.StatusNotFound, "Not found")
	}
	switch method {
	case http.MethodGet:
		return jsonBody(http.StatusOK, svc.routes[idx].view())
	case http.MethodPatch:
		fields, err := decode(body)
		if err != nil {
			return message(http.StatusBadRequest, err.Error())
		}
		merge(svc.routes[idx].fields, fields)
		return jsonBody(http.StatusOK, svc.routes[idx].view())
	case http.MethodDelete:
		svc.routes = append(svc.routes[:idx], svc.routes[idx+1:]...)
		return http.StatusNoContent, nil
	}
	return message(http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *Server) plugins(method string, svc *service, id, offset string, body []byte) (int, []byte) {
	if id == "" {
		switch method {
		case http.MethodGet:
			return s.pluginPage(svc, offset)
		case http.MethodPost:
			fields, err := decode(body)
			if err != nil {
				return message(http.StatusBadRequest, err.Error())
			}
			name, _ := fields["name"].(string)
			if name == "" {
				return schemaViolation("name", "required field missing")
			}
			for _, p := range svc.plugins {
				if p.fields["name"] == name {
					return message(http.StatusConflict,
						fmt.Sprintf("UNIQUE violation detected on '{name=%q,service={id=%q}}'", name, svc.id))
				}
			}
			p := &resource{id: uuid.NewString(), fields: fields}
			svc.plugins = append(svc.plugins, p)
			return jsonBody(http.StatusCreated, p.view())
		}
		return message(http.StatusMethodNotAllowed, "Method not allowed")
	}

	idx := indexOf(svc.plugins, id)
	if idx < 0 {
		return message(http.StatusNotFound, "Not found")
	}
	switch method {
	case http.MethodGet:
		return jsonBody(http.StatusOK, svc.plugins[idx].view())
	case http.MethodDelete:
		svc.plugins = append(svc.plugins[:idx], svc.plugins[idx+1:]...)
		return http.StatusNoContent, nil
	}
	return message(http.StatusMethodNotAllowed, "Method not allowed")
}

// pluginPage emulates Kong pagination. Flat APIs get an absolute next URL
// as Kong 0.x did; services get a path.
func (s *Server) pluginPage(svc *service, offset string) (int, []byte) {
	start := 0
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return message(http.StatusBadRequest, "invalid offset")
		}
		start = n
	}
	if start > len(svc.plugins) {
		start = len(svc.plugins)
	}
	end := start + s.pageSize
	if end > len(svc.plugins) {
		end = len(svc.plugins)
	}

	data := make([]map[string]any, 0, end-start)
	for _, p := range svc.plugins[start:end] {
		data = append(data, p.view())
	}

	var next any
	if end < len(svc.plugins) {
		name, _ := svc.fields["name"].(string)
		path := fmt.Sprintf("/%s/%s/plugins?offset=%d", svc.kind, name, end)
		if svc.kind == "apis" {
			path = s.srv.URL + path
		}
		next = path
	}
	return jsonBody(http.StatusOK, map[string]any{"data": data, "next": next, "total": len(svc.plugins)})
}

func indexOf(list []*resource, id string) int {
	for i, r := range list {
		if r.id == id {
			return i
		}
	}
	return -1
}

func decode(body []byte) (map[string]any, error) {
	fields := make(map[string]any)
	if len(body) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("cannot parse JSON body")
	}
	return fields, nil
}

// merge applies a PATCH body; JSON null removes a field.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func copyFields(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func jsonBody(status int, v any) (int, []byte) {
	data, err := json.Marshal(v)
	if err != nil {
		return message(http.StatusInternalServerError, err.Error())
	}
	return status, data
}

func message(status int, msg string) (int, []byte) {
	return jsonBody(status, map[string]string{"message": msg})
}

func schemaViolation(field, msg string) (int, []byte) {
	return jsonBody(http.StatusBadRequest, map[string]any{
		"name":    "schema violation",
		"message": fmt.Sprintf("schema violation (%s: %s)", field, msg),
		"fields":  map[string]string{field: msg},
	})
}
