package handler

import (
	"net/http"

	"github.com/ProtiusProtocol/pulse-africa-neon-sub000/internal/domain"
)

// TenantHandler lists the configured tenants.
type TenantHandler struct {
	tenants []domain.Tenant
}

// NewTenantHandler creates a TenantHandler.
func NewTenantHandler(tenants []domain.Tenant) *TenantHandler {
	return &TenantHandler{tenants: tenants}
}

// List returns every tenant.
// GET /api/tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tenants": h.tenants,
		"current": tenantOf(r).Slug,
	})
}
