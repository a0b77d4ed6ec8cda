package signal

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// OriginChecker validates the Origin header of upgrade requests against an allow-list.
// "*" allows any origin. Requests without an Origin header come from non-browser
// clients and are let through.
type OriginChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

func NewOriginChecker(origins []string) *OriginChecker {
	oc := &OriginChecker{allowed: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("module", "signal").Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		oc.allowed[normalized] = struct{}{}
	}
	return oc
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// Check is a websocket.Upgrader CheckOrigin func.
func (oc *OriginChecker) Check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || oc.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(header)
	if ok {
		if _, exists := oc.allowed[normalized]; exists {
			return true
		}
	}
	log.Warn().Str("module", "signal").Str("origin", header).Msg("blocked websocket from disallowed origin")
	return false
}
