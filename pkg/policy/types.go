package policy

// Permission is a string key of the form "<domain>.<resource>.<verb>"
type Permission string

const (
	PermDeploymentAirflowAdmin  Permission = "deployment.airflow.admin"
	PermDeploymentAirflowOp     Permission = "deployment.airflow.op"
	PermDeploymentAirflowUser   Permission = "deployment.airflow.user"
	PermDeploymentAirflowViewer Permission = "deployment.airflow.viewer"
	PermDeploymentConfigGet     Permission = "deployment.config.get"
	PermDeploymentConfigUpdate  Permission = "deployment.config.update"
	PermDeploymentImagesPush    Permission = "deployment.images.push"
	PermDeploymentLogsGet       Permission = "deployment.logs.get"
	PermWorkspaceDeploymentsGet Permission = "workspace.deployments.get"
	PermSystemMonitoringGet     Permission = "system.monitoring.get"
	PermSystemDeploymentsGet    Permission = "system.deployments.get"
)

// ScopeType is the entity tier a role binding applies to
type ScopeType string

const (
	ScopeSystem     ScopeType = "system"
	ScopeWorkspace  ScopeType = "workspace"
	ScopeDeployment ScopeType = "deployment"
)

// Role is a named collection of permissions
type Role string

const (
	RoleSystemAdmin Role = "SystemAdmin"
	RoleAdmin       Role = "Admin"
	RoleOp          Role = "Op"
	RoleUser        Role = "User"
	RoleViewer      Role = "Viewer"
)

// RoleBinding assigns a role to a subject at a specific scope.
// System-scope bindings carry no ScopeID.
type RoleBinding struct {
	Role      Role      `json:"role"`
	ScopeType ScopeType `json:"scope_type"`
	ScopeID   string    `json:"scope_id,omitempty"`
}

// Subject is a user or service account being evaluated
type Subject struct {
	ID             string        `json:"id"`
	FullName       string        `json:"full_name"`
	Email          string        `json:"email,omitempty"`
	ServiceAccount bool          `json:"service_account"`
	RoleBindings   []RoleBinding `json:"role_bindings"`
}

// rolePermissions is the process-wide role-to-permission mapping. It is
// never mutated after init.
var rolePermissions = map[Role]map[Permission]struct{}{
	RoleSystemAdmin: permSet(
		PermDeploymentAirflowAdmin,
		PermDeploymentAirflowOp,
		PermDeploymentAirflowUser,
		PermDeploymentAirflowViewer,
		PermDeploymentConfigGet,
		PermDeploymentConfigUpdate,
		PermDeploymentImagesPush,
		PermDeploymentLogsGet,
		PermWorkspaceDeploymentsGet,
		PermSystemMonitoringGet,
		PermSystemDeploymentsGet,
	),
	RoleAdmin: permSet(
		PermDeploymentAirflowAdmin,
		PermDeploymentAirflowOp,
		PermDeploymentAirflowUser,
		PermDeploymentAirflowViewer,
		PermDeploymentConfigGet,
		PermDeploymentConfigUpdate,
		PermDeploymentImagesPush,
		PermDeploymentLogsGet,
		PermWorkspaceDeploymentsGet,
	),
	RoleOp: permSet(
		PermDeploymentAirflowOp,
		PermDeploymentAirflowUser,
		PermDeploymentAirflowViewer,
		PermDeploymentConfigGet,
		PermDeploymentLogsGet,
		PermWorkspaceDeploymentsGet,
	),
	RoleUser: permSet(
		PermDeploymentAirflowUser,
		PermDeploymentAirflowViewer,
		PermDeploymentConfigGet,
		PermWorkspaceDeploymentsGet,
	),
	RoleViewer: permSet(
		PermDeploymentAirflowViewer,
		PermWorkspaceDeploymentsGet,
	),
}

func permSet(perms ...Permission) map[Permission]struct{} {
	set := make(map[Permission]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// RolePermissions returns the permission set for a role. The returned map
// is shared and must not be modified.
func RolePermissions(role Role) map[Permission]struct{} {
	return rolePermissions[role]
}
