package domain

import "context"

// Tenant is a white-label context sharing the backend with its own category
// filter and report line-up.
type Tenant struct {
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Categories  []string     `json:"categories"`
	ReportKinds []ReportKind `json:"report_kinds"`
}

// AllowsCategory reports whether markets in category belong to the tenant.
// A tenant with no categories sees every category.
func (t Tenant) AllowsCategory(category string) bool {
	if len(t.Categories) == 0 {
		return true
	}
	for _, c := range t.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Reports returns the report kinds generated for the tenant. A tenant with no
// kinds configured gets every kind.
func (t Tenant) Reports() []ReportKind {
	if len(t.ReportKinds) == 0 {
		return ReportKinds
	}
	return t.ReportKinds
}

// HasReport reports whether the tenant receives reports of kind.
func (t Tenant) HasReport(kind ReportKind) bool {
	for _, k := range t.Reports() {
		if k == kind {
			return true
		}
	}
	return false
}

type tenantCtxKey struct{}

// WithTenant returns a copy of ctx carrying t.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, tenantCtxKey{}, t)
}

// TenantFrom extracts the tenant stored by WithTenant.
func TenantFrom(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(tenantCtxKey{}).(Tenant)
	return t, ok
}
