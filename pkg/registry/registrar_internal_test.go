package registry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/kongreg/pkg/gatewayclient"
)

// countingDoer counts requests and answers each with a 500.
type countingDoer struct {
	mu    sync.Mutex
	calls int
}

func (d *countingDoer) Do(context.Context, string, string, any) (*gatewayclient.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return &gatewayclient.Response{StatusCode: 500}, nil
}

func TestRegister_InvalidDefinitionMakesNoCalls(t *testing.T) {
	tests := []struct {
		name  string
		svc   *ServiceInfo
		field string
	}{
		{"port zero", &ServiceInfo{name: "test", host: "local", port: 0, paths: []string{"/"}}, "port"},
		{"port 70000", &ServiceInfo{name: "test", host: "local", port: 70000, paths: []string{"/"}}, "port"},
		{"empty name", &ServiceInfo{name: "", host: "local", port: 80, paths: []string{"/"}}, "name"},
		{"empty paths", &ServiceInfo{name: "test", host: "local", port: 80}, "paths"},
		{"bad property type", &ServiceInfo{name: "test", host: "local", port: 80, paths: []string{"/"},
			properties: map[string]any{PropStripURI: "perhaps"}}, "properties.strip_uri"},
	}

	for _, shape := range []Shape{KongV0{}, KongV2{}} {
		for _, tt := range tests {
			t.Run(shape.Name()+"/"+tt.name, func(t *testing.T) {
				doer := &countingDoer{}
				err := NewRegistrar(doer, shape).Register(context.Background(), tt.svc)
				require.Error(t, err)

				var re *RegistrationError
				require.True(t, errors.As(err, &re))
				assert.Equal(t, tt.svc.name, re.Service)
				assert.Equal(t, shape.Name(), re.Shape)

				var ve *ValidationError
				require.True(t, errors.As(err, &ve))
				assert.Equal(t, tt.field, ve.Field)
				assert.Zero(t, doer.calls)
			})
		}
	}
}

func TestRegister_NilService(t *testing.T) {
	doer := &countingDoer{}
	err := NewRegistrar(doer, nil).Register(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Zero(t, doer.calls)
}

func TestNewRegistrar_DefaultsToKongV0(t *testing.T) {
	r := NewRegistrar(&countingDoer{}, nil)
	assert.Equal(t, ShapeKongV0, r.Shape().Name())
}

func TestNextPath(t *testing.T) {
	s := func(v string) *string { return &v }

	got, err := nextPath(nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = nextPath(s("/services/x/plugins?offset=abc"))
	require.NoError(t, err)
	assert.Equal(t, "/services/x/plugins?offset=abc", got)

	got, err = nextPath(s("http://kong:8001/apis/x/plugins?offset=2"))
	require.NoError(t, err)
	assert.Equal(t, "/apis/x/plugins?offset=2", got)

	_, err = nextPath(s("http://[::1"))
	assert.Error(t, err)
}
