// Package headers implements the header transformer: building the
// outbound header set from the incoming request headers and a route's
// HeaderPolicy, then injecting the route's upstream auth header last.
package headers

import (
	"sort"
	"strings"

	"github.com/artpar/llmproxy/domain/route"
)

// hopByHop lists the headers always stripped from the outbound set,
// regardless of policy mode — connection-management headers that must
// never be forwarded to a different hop.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

func isHopByHop(lowerName string) bool {
	if hopByHop[lowerName] {
		return true
	}
	return strings.HasPrefix(lowerName, "proxy-")
}

// set is a case-insensitive header map (one value per name) preserving the first-seen
// original casing of each name, matching how HTTP intermediaries
// conventionally echo header casing back.
type set struct {
	values map[string]string // lower name -> value
	casing map[string]string // lower name -> original-cased name
}

func newSet() *set {
	return &set{values: map[string]string{}, casing: map[string]string{}}
}

func (s *set) put(name, value string) {
	lower := strings.ToLower(name)
	if _, exists := s.casing[lower]; !exists {
		s.casing[lower] = name
	}
	s.values[lower] = value
}

func (s *set) del(name string) {
	lower := strings.ToLower(name)
	delete(s.values, lower)
	delete(s.casing, lower)
}

func (s *set) has(name string) bool {
	_, ok := s.values[strings.ToLower(name)]
	return ok
}

func (s *set) get(name string) (string, bool) {
	v, ok := s.values[strings.ToLower(name)]
	return v, ok
}

func (s *set) toMap() map[string]string {
	out := make(map[string]string, len(s.values))
	for lower, v := range s.values {
		name := s.casing[lower]
		out[name] = v
	}
	return out
}

// Apply builds the outbound header set for one request: seed per mode,
// drop, add-if-missing, force, strip hop-by-hop, then inject the route's
// upstream auth header last.
func Apply(incoming map[string]string, policy route.HeaderPolicy, r *route.ModelRoute) map[string]string {
	s := newSet()

	// 1. Seed.
	switch policy.Mode {
	case route.HeaderModeWhitelist:
		// outbound starts empty
	default: // passthrough, blacklist
		for k, v := range incoming {
			s.put(k, v)
		}
	}

	// 2. Drop.
	for _, name := range policy.Drop {
		s.del(name)
	}

	// 3. Add (only if not already present).
	for _, name := range sortedKeys(policy.Add) {
		if !s.has(name) {
			s.put(name, policy.Add[name])
		}
	}

	// 4. Force (overrides any existing value).
	for _, name := range sortedKeys(policy.Force) {
		s.put(name, policy.Force[name])
	}

	// Hop-by-hop headers are always stripped from the outbound set.
	for lower := range s.values {
		if isHopByHop(lower) {
			delete(s.values, lower)
			delete(s.casing, lower)
		}
	}

	injectAuth(s, incoming, policy, r)

	return s.toMap()
}

// injectAuth adds the route's upstream authentication header last, so it
// always wins over policy-derived values in every mode, whitelist included
// (the override rule pinned in the design notes' open questions) — except
// when the client already supplied the identical header and mode is
// passthrough.
func injectAuth(s *set, incoming map[string]string, policy route.HeaderPolicy, r *route.ModelRoute) {
	if r == nil || r.APIKey == "" {
		return
	}

	authName, authValue := authHeaderFor(r)

	if policy.Mode == route.HeaderModePassthrough {
		if existing, ok := findIncoming(incoming, authName); ok && existing == authValue {
			return
		}
	}

	s.put(authName, authValue)
	if r.BackendKind == route.BackendAnthropic {
		s.put("anthropic-version", "2023-06-01")
	}
}

func authHeaderFor(r *route.ModelRoute) (name, value string) {
	if r.BackendKind == route.BackendAnthropic {
		return "x-api-key", r.APIKey
	}
	return "Authorization", "Bearer " + r.APIKey
}

func findIncoming(incoming map[string]string, name string) (string, bool) {
	lower := strings.ToLower(name)
	for k, v := range incoming {
		if strings.ToLower(k) == lower {
			return v, true
		}
	}
	return "", false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
