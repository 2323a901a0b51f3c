package hubspot

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"proposalbot/pkg/apierrors"
)

// Contact is an associated person on a deal, in association order.
type Contact struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	JobTitle  string
}

// Company is an associated company on a deal.
type Company struct {
	ID       string
	Name     string
	Domain   string
	Industry string
}

// DealSnapshot is an immutable view of a deal fetched once per invocation.
// The pipeline never re-fetches it mid-run, so generation and publishing see
// the same data.
type DealSnapshot struct {
	DealID      string
	DealName    string
	Amount      string
	Stage       string
	Companies   []Company
	Contacts    []Contact
	Transcripts []string
	Properties  map[string]string
}

// CompanyName returns the primary company name, falling back to the deal name.
func (s *DealSnapshot) CompanyName() string {
	if len(s.Companies) > 0 && s.Companies[0].Name != "" {
		return s.Companies[0].Name
	}
	return s.DealName
}

// crmObject is the generic CRM v3 object envelope.
type crmObject struct {
	ID           string                  `json:"id"`
	Properties   map[string]string       `json:"properties"`
	Associations map[string]assocResults `json:"associations"`
}

type assocResults struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

// v4 association results carry numeric object ids.
type assocV4Results struct {
	Results []struct {
		ToObjectID int64 `json:"toObjectId"`
	} `json:"results"`
}

const (
	companyProperties = "name,domain,industry,numberofemployees,address,city,state,zip"
	contactProperties = "firstname,lastname,email,jobtitle"
	meetingProperties = "hs_meeting_title,hs_internal_meeting_notes,hs_meeting_body,hs_timestamp"
)

// Markers identifying Fathom AI meeting summaries in meeting notes.
var fathomMarkers = []string{"AI Meeting Summary", "Generated by Fathom"}

// FetchSnapshot retrieves the deal, its associated companies and contacts,
// and any Fathom meeting summaries, assembling them into one DealSnapshot.
// A deal id that does not resolve is a not_found error with the reason
// "deal not found". Individual association fetches that fail are skipped, as
// a missing contact should not sink the whole proposal.
func (c *Client) FetchSnapshot(ctx context.Context, dealID string) (*DealSnapshot, error) {
	deal, err := c.fetchDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	snapshot := &DealSnapshot{
		DealID:     dealID,
		DealName:   deal.Properties["dealname"],
		Amount:     deal.Properties["amount"],
		Stage:      deal.Properties["dealstage"],
		Properties: deal.Properties,
	}
	if snapshot.DealName == "" {
		snapshot.DealName = "Unknown Deal"
	}

	for _, assoc := range deal.Associations["companies"].Results {
		company, err := c.fetchCompany(ctx, assoc.ID)
		if err != nil {
			c.logger.Warn("skipping company %s: %v", assoc.ID, err)
			continue
		}
		snapshot.Companies = append(snapshot.Companies, company)
	}

	for _, assoc := range deal.Associations["contacts"].Results {
		contact, err := c.fetchContact(ctx, assoc.ID)
		if err != nil {
			c.logger.Warn("skipping contact %s: %v", assoc.ID, err)
			continue
		}
		snapshot.Contacts = append(snapshot.Contacts, contact)
	}

	transcripts, err := c.fetchTranscripts(ctx, dealID)
	if err != nil {
		c.logger.Warn("skipping meeting transcripts for deal %s: %v", dealID, err)
	} else {
		snapshot.Transcripts = transcripts
	}

	return snapshot, nil
}

func (c *Client) fetchDeal(ctx context.Context, dealID string) (*crmObject, error) {
	params := url.Values{}
	params.Set("associations", "contacts,companies")
	params.Set("properties", "dealname,amount,dealstage,closedate,pipeline")

	var deal crmObject
	if err := c.get(ctx, "/crm/v3/objects/deals/"+dealID, params, &deal); err != nil {
		if apierrors.Is(err, apierrors.ErrorTypeNotFound) {
			return nil, apierrors.NewErrorWithStatus(apierrors.ErrorTypeNotFound, 404, "deal not found")
		}
		return nil, err
	}
	return &deal, nil
}

func (c *Client) fetchCompany(ctx context.Context, companyID string) (Company, error) {
	params := url.Values{}
	params.Set("properties", companyProperties)

	var obj crmObject
	if err := c.get(ctx, "/crm/v3/objects/companies/"+companyID, params, &obj); err != nil {
		return Company{}, err
	}
	return Company{
		ID:       obj.ID,
		Name:     obj.Properties["name"],
		Domain:   obj.Properties["domain"],
		Industry: obj.Properties["industry"],
	}, nil
}

func (c *Client) fetchContact(ctx context.Context, contactID string) (Contact, error) {
	params := url.Values{}
	params.Set("properties", contactProperties)

	var obj crmObject
	if err := c.get(ctx, "/crm/v3/objects/contacts/"+contactID, params, &obj); err != nil {
		return Contact{}, err
	}
	return Contact{
		ID:        obj.ID,
		FirstName: obj.Properties["firstname"],
		LastName:  obj.Properties["lastname"],
		Email:     obj.Properties["email"],
		JobTitle:  obj.Properties["jobtitle"],
	}, nil
}

// fetchTranscripts pulls Fathom AI summaries from meeting engagements
// associated with the deal.
func (c *Client) fetchTranscripts(ctx context.Context, dealID string) ([]string, error) {
	var assoc assocV4Results
	if err := c.get(ctx, "/crm/v4/objects/deals/"+dealID+"/associations/meetings", nil, &assoc); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("properties", meetingProperties)

	var transcripts []string
	for _, result := range assoc.Results {
		if result.ToObjectID == 0 {
			continue
		}
		var meeting crmObject
		path := fmt.Sprintf("/crm/v3/objects/meetings/%d", result.ToObjectID)
		if err := c.get(ctx, path, params, &meeting); err != nil {
			c.logger.Warn("skipping meeting %d: %v", result.ToObjectID, err)
			continue
		}
		notes := meeting.Properties["hs_internal_meeting_notes"]
		if isFathomSummary(notes) {
			transcripts = append(transcripts, notes)
		}
	}
	return transcripts, nil
}

func isFathomSummary(notes string) bool {
	for _, marker := range fathomMarkers {
		if strings.Contains(notes, marker) {
			return true
		}
	}
	return false
}
