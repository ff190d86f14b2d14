package middleware

import (
	"net/http"
	"strings"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// TenantHeader selects the tenant of a request. The tenant query parameter is
// accepted as well for clients that cannot set headers, such as WebSockets.
const TenantHeader = "X-Tenant"

// Tenant resolves the request's tenant and stores it in the context. Requests
// that name no tenant get the first one; an unknown slug is rejected with 400.
func Tenant(tenants []domain.Tenant) func(http.Handler) http.Handler {
	bySlug := make(map[string]domain.Tenant, len(tenants))
	for _, t := range tenants {
		bySlug[t.Slug] = t
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := strings.TrimSpace(r.Header.Get(TenantHeader))
			if slug == "" {
				slug = strings.TrimSpace(r.URL.Query().Get("tenant"))
			}

			var t domain.Tenant
			switch {
			case slug != "":
				var ok bool
				if t, ok = bySlug[strings.ToLower(slug)]; !ok {
					writeJSONError(w, http.StatusBadRequest, "unknown tenant")
					return
				}
			case len(tenants) > 0:
				t = tenants[0]
			}

			next.ServeHTTP(w, r.WithContext(domain.WithTenant(r.Context(), t)))
		})
	}
}
