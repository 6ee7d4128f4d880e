package policy

// airflowTier pairs an Airflow role tier with the permission that grants it
type airflowTier struct {
	Role       Role
	Permission Permission
}

// airflowTiers lists the Airflow role tiers in strictly descending
// privilege order. Resolution scans this list and stops at the first
// matching tier, so the ordering determines the effective privilege handed
// to the downstream service.
var airflowTiers = []airflowTier{
	{RoleAdmin, PermDeploymentAirflowAdmin},
	{RoleOp, PermDeploymentAirflowOp},
	{RoleUser, PermDeploymentAirflowUser},
	{RoleViewer, PermDeploymentAirflowViewer},
}

// HasPermission reports whether any of the subject's role bindings grants
// the permission at the requested scope.
//
// A binding matches the requested scope when its scope type and id equal
// the requested ones exactly, or when the binding is System-scoped, which
// matches every request. There is no other implicit escalation across
// scopes: a Workspace-scope binding does not satisfy a Deployment-scope
// check for deployments inside that workspace.
func HasPermission(subject *Subject, permission Permission, scopeType ScopeType, scopeID string) bool {
	if subject == nil {
		return false
	}
	for _, binding := range subject.RoleBindings {
		if binding.ScopeType != ScopeSystem {
			if binding.ScopeType != scopeType || binding.ScopeID != scopeID {
				continue
			}
		}
		if _, ok := rolePermissions[binding.Role][permission]; ok {
			return true
		}
	}
	return false
}

// ResolveAirflowRole returns the highest-privilege Airflow tier the subject
// holds for the deployment, as a single-element slice, or an empty slice if
// no tier matches. Each tier is checked at Deployment scope and at System
// scope; the first tier for which either check succeeds wins.
func ResolveAirflowRole(subject *Subject, deploymentID string) []Role {
	for _, tier := range airflowTiers {
		if HasPermission(subject, tier.Permission, ScopeDeployment, deploymentID) ||
			HasPermission(subject, tier.Permission, ScopeSystem, "") {
			return []Role{tier.Role}
		}
	}
	return []Role{}
}
