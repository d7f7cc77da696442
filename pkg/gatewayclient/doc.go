// Package gatewayclient is the transport used to talk to a gateway's
// admin API.
//
// It is deliberately generic: a Client sends one JSON request and hands
// back the status code and raw body. Interpreting status codes is left to
// the caller, which lets the registry package decide what "created" or
// "not found" means for each gateway shape.
//
//	c := gatewayclient.New("http://kong:8001",
//	    gatewayclient.WithTimeout(5*time.Second),
//	    gatewayclient.WithRateLimit(10, 1),
//	)
//	resp, err := c.Do(ctx, http.MethodGet, "/services/users", nil)
package gatewayclient
