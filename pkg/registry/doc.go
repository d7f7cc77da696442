// Package registry registers a service, its route and its plugins on a
// Kong API gateway and keeps them in line with a locally declared
// definition.
//
// A registration is driven by a ServiceInfo, built once per attempt:
//
//	svc, err := registry.NewService("users").
//	    Host("users.internal").
//	    Port(8080).
//	    AddPath("/users").
//	    SetProperty("https_only", true).
//	    AddPlugin(registry.NewPlugin("cors").Set("config.origins", "*")).
//	    Build()
//
//	reg := registry.NewRegistrar(gatewayclient.New(adminURL), registry.KongV2{})
//	err = reg.Register(ctx, svc)
//
// Every call re-reads the gateway: it checks whether the service exists,
// creates or updates it (and its first route on shapes that have routes),
// then removes every plugin attached to an existing service and installs
// the declared ones in order. Nothing is cached between calls.
//
// Two admin API shapes are supported through the Shape interface: KongV0,
// the flat /apis resource of Kong 0.x, and KongV2, the /services plus
// /routes model of Kong 1.x and later.
package registry
