// Package identity resolves the quest group a request acts for.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/malaga-quest/internal/tracker"
)

// GroupParam is the chi URL parameter holding the group name.
const GroupParam = "group"

// ErrInvalidGroup is returned for group names that are empty, too long,
// contain unsupported characters or collide with per-field storage keys.
var ErrInvalidGroup = errors.New("invalid group name")

type contextKey int

const groupKey contextKey = iota

var groupPattern = regexp.MustCompile(`^[\p{L}\p{N} _.-]{1,64}$`)

// NormalizeGroup trims raw and validates it as a group name.
func NormalizeGroup(raw string) (string, error) {
	group := strings.TrimSpace(raw)
	if !groupPattern.MatchString(group) || tracker.IsReservedGroupName(group) {
		return "", ErrInvalidGroup
	}
	return group, nil
}

// WithGroup returns a copy of ctx carrying group.
func WithGroup(ctx context.Context, group string) context.Context {
	return context.WithValue(ctx, groupKey, group)
}

// GroupFromContext extracts the group from the request context.
func GroupFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(groupKey).(string); ok {
		return v
	}
	return ""
}

// Middleware validates the {group} URL parameter and stores it in the request context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := url.PathUnescape(chi.URLParam(r, GroupParam))
		if err == nil {
			raw, err = NormalizeGroup(raw)
		}
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": ErrInvalidGroup.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithGroup(r.Context(), raw)))
	})
}

// IPFromRequest returns a normalized remote IP for rate limiting and tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
