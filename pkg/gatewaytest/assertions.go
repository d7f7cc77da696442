package gatewaytest

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"testing"
)

// JSON decodes the request body into a map.
func (r Request) JSON(t testing.TB) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(r.Body, &out); err != nil {
		t.Fatalf("request body is not a JSON object: %v\nbody: %s", err, r.Body)
	}
	return out
}

// AssertJSONBody asserts that the request body matches the expected JSON.
// expected can be a string, []byte, or any value that encodes to JSON.
func (r Request) AssertJSONBody(t testing.TB, expected any) {
	t.Helper()

	var expectedJSON, actualJSON any

	var raw []byte
	switch v := expected.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			t.Errorf("failed to marshal expected value: %v", err)
			return
		}
		raw = data
	}
	if err := json.Unmarshal(raw, &expectedJSON); err != nil {
		t.Errorf("failed to parse expected JSON: %v", err)
		return
	}
	if err := json.Unmarshal(r.Body, &actualJSON); err != nil {
		t.Errorf("request body is not valid JSON: %v\nbody: %s", err, r.Body)
		return
	}

	if !reflect.DeepEqual(actualJSON, expectedJSON) {
		expectedBytes, _ := json.MarshalIndent(expectedJSON, "", "  ")
		actualBytes, _ := json.MarshalIndent(actualJSON, "", "  ")
		t.Errorf("%s %s body does not match expected JSON\nexpected:\n%s\nactual:\n%s",
			r.Method, r.Path, expectedBytes, actualBytes)
	}
}

// AssertCalled asserts that method+path was requested at least once.
func (s *Server) AssertCalled(t testing.TB, method, path string) {
	t.Helper()
	if s.Count(method, path) == 0 {
		t.Errorf("expected %s %s to be called\nrequests:\n%s", method, path, s.describe())
	}
}

// AssertNotCalled asserts that method+path was never requested.
func (s *Server) AssertNotCalled(t testing.TB, method, path string) {
	t.Helper()
	if n := s.Count(method, path); n > 0 {
		t.Errorf("expected %s %s not to be called, got %d call(s)", method, path, n)
	}
}

// AssertCallCount asserts the exact number of method+path requests.
func (s *Server) AssertCallCount(t testing.TB, method, path string, want int) {
	t.Helper()
	if got := s.Count(method, path); got != want {
		t.Errorf("%s %s called %d time(s), want %d\nrequests:\n%s", method, path, got, want, s.describe())
	}
}

// Last returns the last logged request for method+path.
func (s *Server) Last(t testing.TB, method, path string) Request {
	t.Helper()
	reqs := s.RequestsTo(method, path)
	if len(reqs) == 0 {
		t.Fatalf("no %s %s request logged\nrequests:\n%s", method, path, s.describe())
	}
	return reqs[len(reqs)-1]
}

func (s *Server) describe() string {
	var b strings.Builder
	for _, r := range s.Requests() {
		b.WriteString("  ")
		b.WriteString(r.Method)
		b.WriteString(" ")
		b.WriteString(r.Path)
		if r.Query != "" {
			b.WriteString("?" + r.Query)
		}
		b.WriteString(" -> ")
		b.WriteString(strconv.Itoa(r.Status))
		b.WriteString("\n")
	}
	return b.String()
}
