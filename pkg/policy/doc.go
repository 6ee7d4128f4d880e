// Package policy provides role-based access control for the Conductor
// control plane.
//
// # Overview
//
// This package implements permission evaluation for subjects (users and
// service accounts) holding role bindings scoped to the system, a workspace,
// or a single deployment. The role-to-permission mapping is a compile-time
// constant; nothing in this package performs I/O.
//
// # Architecture
//
// The policy model consists of four pieces:
//
//  1. Permissions: string keys of the form "<domain>.<resource>.<verb>"
//     (e.g. "deployment.airflow.admin")
//  2. Roles: named collections of permissions (Admin, Op, User, Viewer,
//     SystemAdmin)
//  3. RoleBindings: assignments of a role to a subject at a specific scope
//  4. Engine: the pure evaluation function over a subject's bindings
//
// # Scope matching
//
// Scope matching is exact: a Workspace-scope binding never satisfies a
// Deployment-scope check, even for deployments inside that workspace. The
// single exception is System scope, which matches any requested scope.
//
// # Airflow role resolution
//
// ResolveAirflowRole maps a subject to the single highest-privilege Airflow
// tier it holds for a deployment. Tiers are evaluated in descending
// privilege order and the first match wins:
//
//	roles := policy.ResolveAirflowRole(subject, deploymentID)
//	// e.g. []policy.Role{policy.RoleAdmin}, or empty if no tier matches
package policy
