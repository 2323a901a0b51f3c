// Package command extracts canonical deal references from slash-command text.
package command

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Parse failures. Both fail closed: no pipeline execution.
var (
	// ErrNoDealReference indicates the command text contained nothing that
	// looks like a deal identifier.
	ErrNoDealReference = errors.New("no deal reference found in command text")
	// ErrPortalMismatch indicates the deal URL named a different portal than
	// the one this service is configured for.
	ErrPortalMismatch = errors.New("deal URL portal does not match configured portal")
)

// DealRef is a canonical deal identifier. PortalID is set only when the
// reference came from a full record URL.
type DealRef struct {
	PortalID string
	DealID   string
}

var (
	// Full HubSpot deal record URL, possibly embedded in surrounding text.
	// Object type 0-3 is a deal.
	recordURLPattern = regexp.MustCompile(`contacts/(\d+)/record/0-3/(\d+)`)

	// Bare numeric id token.
	bareIDPattern = regexp.MustCompile(`\b(\d+)\b`)
)

// ParseDealRef extracts a deal reference from command text. It accepts a full
// CRM record URL or a bare numeric id; anything else is ErrNoDealReference.
func ParseDealRef(text string) (DealRef, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return DealRef{}, ErrNoDealReference
	}

	if m := recordURLPattern.FindStringSubmatch(text); m != nil {
		return DealRef{PortalID: m[1], DealID: m[2]}, nil
	}

	if m := bareIDPattern.FindStringSubmatch(text); m != nil {
		return DealRef{DealID: m[1]}, nil
	}

	return DealRef{}, ErrNoDealReference
}

// CheckPortal rejects references whose URL named a different portal than the
// one this service is configured for. Bare ids pass: they carry no portal.
func (r DealRef) CheckPortal(configuredPortalID string) error {
	if r.PortalID == "" || r.PortalID == configuredPortalID {
		return nil
	}
	return fmt.Errorf("portal %s vs configured %s: %w", r.PortalID, configuredPortalID, ErrPortalMismatch)
}
