package repository

import "strings"

// Router maps a request's origin host to the grade store that should record
// it. It is built once at startup and read-only afterward.
type Router struct {
	routes   map[string]Store
	fallback Store
}

// NewRouter creates a routing table with a default store.
func NewRouter(fallback Store) *Router {
	return &Router{
		routes:   make(map[string]Store),
		fallback: fallback,
	}
}

// Route binds an origin host to a store.
func (r *Router) Route(host string, store Store) {
	r.routes[NormalizeHost(host)] = store
}

// Resolve returns the store for an origin host, falling back to the default
// store for unknown hosts.
func (r *Router) Resolve(host string) Store {
	if store, ok := r.routes[NormalizeHost(host)]; ok {
		return store
	}
	return r.fallback
}

// NormalizeHost strips the port and any forwarded-host list tail, lowercased.
// Reverse proxies routinely append to X-Forwarded-Host, so only the first
// entry counts.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(strings.Split(host, ",")[0])
	host = strings.Split(host, ":")[0]
	return strings.ToLower(strings.TrimSpace(host))
}
