// Package gateway implements the authorization check endpoint the edge
// proxy calls before forwarding traffic to tenant-facing services.
//
// # Decision flow
//
// Every check resolves to a terminal status code:
//
//   - 401 when no authenticated session is present or the original URL
//     matches no known routing pattern
//   - 200 without a token for monitoring services, when the subject holds
//     the system monitoring permission
//   - 200 with a scoped bearer token for deployment services
//     (/<release>/<airflow|flower> under the deployments subdomain), when
//     the subject resolves to an Airflow role for that deployment
//   - 403 for a recognized deployment the subject has no role for
//
// Checks are stateless: every request is evaluated independently, with one
// deployment lookup and at most one signing operation.
package gateway
