// Package deployments provides read access to the deployment system of
// record. The control plane only reads deployment state; ownership of the
// schema lives with the data layer.
package deployments
