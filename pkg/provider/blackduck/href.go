package blackduck

import (
	"strings"

	"golang.org/x/xerrors"
)

var ErrMalformedHref = xerrors.New("malformed component href")

// ComponentRef identifies the component, component version and origin a
// vulnerable BOM entry points at. OriginID is empty when the entry has no
// origin.
type ComponentRef struct {
	ComponentID        string
	ComponentVersionID string
	OriginID           string
}

// ParseHref extracts a ComponentRef from the self link of a vulnerable BOM
// component. The link is expected to contain
// components/<id>/versions/<id>[/origins/<id>]; other segment orders are not
// detected.
func ParseHref(href string) (ComponentRef, error) {
	href = strings.TrimSpace(href)

	_, afterComponents, ok := strings.Cut(href, "components/")
	if !ok {
		return ComponentRef{}, xerrors.Errorf("%q has no components segment: %w", href, ErrMalformedHref)
	}
	componentID, _, _ := strings.Cut(afterComponents, "/")

	beforeOrigins, _, _ := strings.Cut(href, "/origins")
	beforeOrigins = strings.TrimRight(beforeOrigins, "/")
	componentVersionID := beforeOrigins[strings.LastIndex(beforeOrigins, "/")+1:]

	var originID string
	if strings.Contains(href, "origins") {
		if _, afterOrigins, ok := strings.Cut(href, "origins/"); ok {
			originID, _, _ = strings.Cut(afterOrigins, "/")
		}
	}

	ref := ComponentRef{
		ComponentID:        strings.TrimSpace(componentID),
		ComponentVersionID: strings.TrimSpace(componentVersionID),
		OriginID:           strings.TrimSpace(originID),
	}
	if ref.ComponentID == "" || ref.ComponentVersionID == "" {
		return ComponentRef{}, xerrors.Errorf("%q has empty identifiers: %w", href, ErrMalformedHref)
	}
	return ref, nil
}
