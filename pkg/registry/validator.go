package registry

import (
	"regexp"
	"strings"
)

const (
	// ActionPush is the registry event action that may trigger updates
	ActionPush = "push"

	// ReservedRepositoryPrefix marks platform base images. Pushes under
	// this prefix are build inputs, never tenant deployment updates.
	ReservedRepositoryPrefix = "base-images/"

	// FloatingTag is the mutable tag excluded from reconciliation:
	// acting on it would make deployments drift with the tag
	FloatingTag = "latest"
)

// PushEvent is the payload of a registry webhook notification
type PushEvent struct {
	Action string `json:"action"`
	Target Target `json:"target"`
}

// Target describes the pushed artifact
type Target struct {
	Tag        string `json:"tag"`
	Repository string `json:"repository"`
	MediaType  string `json:"mediaType"`
	URL        string `json:"url"`
}

// repositoryPattern is the accepted image-name grammar: slash-separated
// path components of alphanumerics with single ._- separators. Anything
// else (empty components, "..", leading separators) is rejected.
var repositoryPattern = regexp.MustCompile(`^[a-z0-9]+(?:[._-][a-z0-9]+)*(?:/[a-z0-9]+(?:[._-][a-z0-9]+)*)*$`)

// IsValidTaggedPush reports whether a registry event is a tagged push that
// should trigger metadata extraction. Failing this predicate is not an
// error condition.
func IsValidTaggedPush(event *PushEvent) bool {
	if event == nil || event.Action != ActionPush {
		return false
	}
	if event.Target.Tag == "" || event.Target.Tag == FloatingTag {
		return false
	}
	if strings.HasPrefix(event.Target.Repository, ReservedRepositoryPrefix) {
		return false
	}
	return repositoryPattern.MatchString(event.Target.Repository)
}

// ImageMetadata is what survives validation and gets published for the
// reconciliation worker
type ImageMetadata struct {
	ReleaseName string `json:"releaseName"`
	Repository  string `json:"repository"`
	Tag         string `json:"tag"`
	URL         string `json:"url,omitempty"`
}

// ExtractMetadata derives image metadata from a validated push event. The
// repository's first path component is the owning release name; pushes to
// single-component repositories carry no release and are skipped.
func ExtractMetadata(event *PushEvent) (*ImageMetadata, bool) {
	if !IsValidTaggedPush(event) {
		return nil, false
	}
	release, _, found := strings.Cut(event.Target.Repository, "/")
	if !found {
		return nil, false
	}
	return &ImageMetadata{
		ReleaseName: release,
		Repository:  event.Target.Repository,
		Tag:         event.Target.Tag,
		URL:         event.Target.URL,
	}, true
}
