package ratelimit

import (
	"fmt"
	"time"
)

// Route names used as rate-limit scopes.
const (
	RouteSpreadsList   = "spreads.list"
	RouteSpreadsGet    = "spreads.get"
	RouteSpreadsCreate = "spreads.create"
	RouteSpreadsUpdate = "spreads.update"
	RouteSpreadsDelete = "spreads.delete"
	RouteExchangesList = "exchanges.list"
)

// Policy is the admission budget of one route. A zero Limit disables
// limiting for the route.
type Policy struct {
	Route  string
	Limit  int
	Window time.Duration
}

// Unlimited reports whether the route is exempt.
func (p Policy) Unlimited() bool { return p.Limit <= 0 }

// Key scopes a client's counter to the route.
func (p Policy) Key(client string) string {
	return p.Route + ":" + client
}

// Policies maps route names to their policy.
type Policies map[string]Policy

// DefaultPolicies returns the built-in per-minute budgets.
func DefaultPolicies() Policies {
	return NewPolicies(time.Minute, map[string]int{
		RouteSpreadsList:   100,
		RouteSpreadsGet:    30,
		RouteSpreadsCreate: 20,
		RouteSpreadsUpdate: 20,
		RouteSpreadsDelete: 10,
		RouteExchangesList: 0,
	})
}

// NewPolicies builds a table sharing one window length.
func NewPolicies(window time.Duration, limits map[string]int) Policies {
	out := make(Policies, len(limits))
	for route, limit := range limits {
		out[route] = Policy{Route: route, Limit: limit, Window: window}
	}
	return out
}

// For returns the policy for route. Unknown routes are a programming error.
func (p Policies) For(route string) Policy {
	pol, ok := p[route]
	if !ok {
		panic(fmt.Sprintf("ratelimit: no policy for route %q", route))
	}
	return pol
}
