// Package gatewaytest provides an in-memory Kong admin API for tests.
//
// The fake understands both the flat Kong 0.x /apis layout and the
// /services + /routes layout of later releases, keeps services, routes
// and plugins in memory, logs every request and can be told to answer a
// given method and path with an arbitrary status.
//
// # Basic Usage
//
//	func TestRegister(t *testing.T) {
//	    gw := gatewaytest.NewServer(t)
//	    gw.SeedService("users", map[string]any{"url": "http://old:80"})
//	    gw.SeedPlugin("users", "cors", nil)
//
//	    reg := registry.NewRegistrar(gatewayclient.New(gw.URL()), registry.KongV2{})
//	    // ... register, then inspect:
//	    gw.AssertCalled(t, "PATCH", "/services/users")
//	    names := gw.PluginNames("users")
//	}
//
// # Failure Injection
//
//	gw.FailOnce("POST", "/services/users/plugins", 500, `{"message":"boom"}`)
//	gw.Fail("GET", "/services/users", 503, "")
package gatewaytest
