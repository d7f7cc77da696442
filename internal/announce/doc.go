// Package announce keeps a service registered on the gateway.
//
// An Announcer registers the service once at start and then again on
// every tick. A failed attempt is logged and retried on the next tick.
//
// Usage:
//
//	a := announce.New(registrar, svc, announce.WithInterval(time.Minute))
//	err := a.Run(ctx) // returns ctx.Err() when ctx is done
package announce
