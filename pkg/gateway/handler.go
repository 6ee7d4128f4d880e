package gateway

import (
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/conductorhq/conductor/pkg/deployments"
	"github.com/conductorhq/conductor/pkg/observability"
	"github.com/conductorhq/conductor/pkg/policy"
	"github.com/conductorhq/conductor/pkg/token"
)

// OriginalURLHeader names the proxied URL being authorized. The edge proxy
// sets it on every auth subrequest.
const OriginalURLHeader = "X-Original-URL"

// deploymentServicePath matches "/<release-name>/<service>" for the
// deployment-scoped services that accept gateway-minted tokens
var deploymentServicePath = regexp.MustCompile(`^/([a-z0-9]+(?:-[a-z0-9]+)*)/(airflow|flower)(?:/.*)?$`)

// Config holds the routing knobs for the auth-check handler
type Config struct {
	// DeploymentsSubdomain routes deployment-scoped services
	DeploymentsSubdomain string
	// MonitoringSubdomains is the fixed allow-list of monitoring
	// services reachable with the system monitoring permission
	MonitoringSubdomains []string
}

// DefaultConfig returns the standard routing configuration
func DefaultConfig() Config {
	return Config{
		DeploymentsSubdomain: "deployments",
		MonitoringSubdomains: []string{"grafana", "kibana", "prometheus", "alertmanager"},
	}
}

// Handler answers the proxy's auth-check subrequests
type Handler struct {
	config   Config
	sessions SessionResolver
	store    deployments.Store
	issuer   *token.Issuer
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewHandler creates the auth-check handler. metrics may be nil.
func NewHandler(config Config, sessions SessionResolver, store deployments.Store, issuer *token.Issuer, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		config:   config,
		sessions: sessions,
		store:    store,
		issuer:   issuer,
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterRoutes attaches the auth-check endpoint to the router
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/v1/authorization", h.AuthCheck).Methods("GET")
}

// AuthCheck evaluates one proxied request. Every branch terminates in a
// status code; nothing is retained between requests.
func (h *Handler) AuthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	subject, err := h.sessions.Resolve(r)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			h.logger.WithError(err).Warn("Session resolution failed")
		}
		h.deny(w, start, http.StatusUnauthorized, "unauthenticated", "")
		return
	}

	original, err := url.Parse(r.Header.Get(OriginalURLHeader))
	if err != nil || original.Hostname() == "" {
		h.deny(w, start, http.StatusUnauthorized, "unauthenticated", subject.ID)
		return
	}
	hostname := original.Hostname()
	subdomain, _, _ := strings.Cut(hostname, ".")

	// Monitoring services are gated on a single system-scope permission
	// and carry no token
	if h.isMonitoringSubdomain(subdomain) {
		if policy.HasPermission(subject, policy.PermSystemMonitoringGet, policy.ScopeSystem, "") {
			h.allow(w, start, subject.ID, subdomain, "")
			return
		}
		h.deny(w, start, http.StatusForbidden, "denied", subject.ID)
		return
	}

	if subdomain == h.config.DeploymentsSubdomain {
		if m := deploymentServicePath.FindStringSubmatch(original.Path); m != nil {
			h.checkDeploymentService(w, r, start, subject, hostname, m[1])
			return
		}
	}

	h.deny(w, start, http.StatusUnauthorized, "unauthenticated", subject.ID)
}

// checkDeploymentService authorizes access to a deployment-scoped service
// and mints the scoped token on success
func (h *Handler) checkDeploymentService(w http.ResponseWriter, r *http.Request, start time.Time, subject *policy.Subject, hostname, releaseName string) {
	deployment, err := h.store.GetByReleaseName(r.Context(), releaseName)
	if err != nil {
		if errors.Is(err, deployments.ErrNotFound) {
			h.deny(w, start, http.StatusUnauthorized, "unauthenticated", subject.ID)
			return
		}
		h.logger.WithError(err).WithField("release_name", releaseName).Error("Deployment lookup failed")
		h.deny(w, start, http.StatusUnauthorized, "unauthenticated", subject.ID)
		return
	}

	roles := policy.ResolveAirflowRole(subject, deployment.ID)
	if len(roles) == 0 {
		h.deny(w, start, http.StatusForbidden, "denied", subject.ID)
		return
	}

	identity := token.ServiceAccountIdentity(subject.ID)
	if !subject.ServiceAccount {
		identity = strings.ToLower(subject.Email)
	}

	signed, err := h.issuer.Issue(token.Claims{
		Audience: token.Audience(hostname, releaseName),
		Subject:  subject.ID,
		Roles:    roles,
		Email:    identity,
		FullName: subject.FullName,
	})
	if err != nil {
		if h.metrics != nil {
			h.metrics.TokenIssueErrors.Inc()
		}
		h.logger.WithError(err).Error("Token signing failed")
		h.deny(w, start, http.StatusUnauthorized, "unauthenticated", subject.ID)
		return
	}
	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.Inc()
	}

	w.Header().Set("Authorization", "Bearer "+signed)
	h.allow(w, start, subject.ID, h.config.DeploymentsSubdomain, releaseName)
}

func (h *Handler) isMonitoringSubdomain(subdomain string) bool {
	for _, s := range h.config.MonitoringSubdomains {
		if s == subdomain {
			return true
		}
	}
	return false
}

func (h *Handler) allow(w http.ResponseWriter, start time.Time, subjectID, service, releaseName string) {
	if h.metrics != nil {
		h.metrics.ObserveAuthDecision("allowed", time.Since(start))
	}
	fields := map[string]interface{}{
		"subject_id": subjectID,
		"service":    service,
		"outcome":    "allowed",
	}
	if releaseName != "" {
		fields["release_name"] = releaseName
	}
	h.logger.WithFields(fields).Info("Authorization decision")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deny(w http.ResponseWriter, start time.Time, status int, outcome, subjectID string) {
	if h.metrics != nil {
		h.metrics.ObserveAuthDecision(outcome, time.Since(start))
	}
	fields := map[string]interface{}{"outcome": outcome}
	if subjectID != "" {
		fields["subject_id"] = subjectID
	}
	h.logger.WithFields(fields).Info("Authorization decision")
	w.WriteHeader(status)
}
