// Package testkit provides scriptable mock servers for the external
// collaborators: HubSpot CRM, the Anthropic API, and Slack's response_url.
package testkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DealFixture describes one deal served by the mock CRM.
type DealFixture struct {
	Name       string
	Amount     string
	Stage      string
	CompanyIDs []string
	ContactIDs []string
	MeetingIDs []string
}

// MockHubSpot emulates the slice of the HubSpot CRM v3/v4 API the pipeline
// touches. Zero value maps mean "not found". All knobs must be set before
// serving traffic.
type MockHubSpot struct {
	Server *httptest.Server

	Deals     map[string]DealFixture
	Companies map[string]map[string]string // id -> properties
	Contacts  map[string]map[string]string
	Meetings  map[string]string // id -> hs_internal_meeting_notes
	Products  map[string]string // sku -> product id

	// DealFailures serves this many 503s for deal GETs before succeeding.
	DealFailures int
	// LineItemFailures serves this many 503s for line item creates before
	// succeeding.
	LineItemFailures int
	// RejectQuoteCreate makes quote creation fail with a 400 validation error.
	RejectQuoteCreate bool

	mu                     sync.Mutex
	dealAttempts           []time.Time
	quoteCreates           int
	lineItemCreates        int
	associations           []string
	nextQuoteID            int
	createdQuoteID         string
	servedDealFailures     int
	servedLineItemFailures int
}

var (
	dealPath        = regexp.MustCompile(`^/crm/v3/objects/deals/([^/]+)$`)
	companyPath     = regexp.MustCompile(`^/crm/v3/objects/companies/([^/]+)$`)
	contactPath     = regexp.MustCompile(`^/crm/v3/objects/contacts/([^/]+)$`)
	meetingPath     = regexp.MustCompile(`^/crm/v3/objects/meetings/([^/]+)$`)
	meetingsAssoc   = regexp.MustCompile(`^/crm/v4/objects/deals/([^/]+)/associations/meetings$`)
	quoteAssocPath  = regexp.MustCompile(`^/crm/v3/objects/quotes/([^/]+)/associations/line_items/([^/]+)/67$`)
	productsPath    = "/crm/v3/objects/products"
	quotesPath      = "/crm/v3/objects/quotes"
	lineItemsPath   = "/crm/v3/objects/line_items"
	notFoundPayload = map[string]string{"status": "error", "message": "deal not found", "category": "OBJECT_NOT_FOUND"}
)

// NewMockHubSpot starts the mock server. Callers own Close.
func NewMockHubSpot() *MockHubSpot {
	m := &MockHubSpot{
		Deals:       map[string]DealFixture{},
		Companies:   map[string]map[string]string{},
		Contacts:    map[string]map[string]string{},
		Meetings:    map[string]string{},
		Products:    map[string]string{},
		nextQuoteID: 9000,
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts the server down.
func (m *MockHubSpot) Close() {
	m.Server.Close()
}

// URL returns the mock's base URL.
func (m *MockHubSpot) URL() string {
	return m.Server.URL
}

// DealAttempts returns the timestamps of deal GET attempts, in order.
func (m *MockHubSpot) DealAttempts() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.dealAttempts...)
}

// QuoteCreates returns how many quote create calls were served.
func (m *MockHubSpot) QuoteCreates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteCreates
}

// LineItemCreates returns how many line item create calls were served.
func (m *MockHubSpot) LineItemCreates() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lineItemCreates
}

// Associations returns "quoteID:lineItemID" pairs in creation order.
func (m *MockHubSpot) Associations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.associations...)
}

// CreatedQuoteID returns the id of the last created quote.
func (m *MockHubSpot) CreatedQuoteID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createdQuoteID
}

func (m *MockHubSpot) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing bearer token"})
		return
	}

	path := r.URL.Path
	switch {
	case dealPath.MatchString(path) && r.Method == http.MethodGet:
		m.handleDeal(w, dealPath.FindStringSubmatch(path)[1])
	case companyPath.MatchString(path) && r.Method == http.MethodGet:
		m.handleObject(w, m.Companies, companyPath.FindStringSubmatch(path)[1])
	case contactPath.MatchString(path) && r.Method == http.MethodGet:
		m.handleObject(w, m.Contacts, contactPath.FindStringSubmatch(path)[1])
	case meetingsAssoc.MatchString(path) && r.Method == http.MethodGet:
		m.handleMeetingAssociations(w, meetingsAssoc.FindStringSubmatch(path)[1])
	case meetingPath.MatchString(path) && r.Method == http.MethodGet:
		m.handleMeeting(w, meetingPath.FindStringSubmatch(path)[1])
	case path == productsPath && r.Method == http.MethodGet:
		m.handleProducts(w)
	case path == quotesPath && r.Method == http.MethodPost:
		m.handleCreateQuote(w)
	case path == lineItemsPath && r.Method == http.MethodPost:
		m.handleCreateLineItem(w)
	case quoteAssocPath.MatchString(path) && r.Method == http.MethodPut:
		parts := quoteAssocPath.FindStringSubmatch(path)
		m.handleAssociate(w, parts[1], parts[2])
	default:
		writeJSON(w, http.StatusNotFound, notFoundPayload)
	}
}

func (m *MockHubSpot) handleDeal(w http.ResponseWriter, dealID string) {
	m.mu.Lock()
	m.dealAttempts = append(m.dealAttempts, time.Now())
	failing := m.servedDealFailures < m.DealFailures
	if failing {
		m.servedDealFailures++
	}
	m.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "upstream unavailable"})
		return
	}

	deal, ok := m.Deals[dealID]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundPayload)
		return
	}

	assoc := func(ids []string) map[string]any {
		results := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			results = append(results, map[string]string{"id": id})
		}
		return map[string]any{"results": results}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id": dealID,
		"properties": map[string]string{
			"dealname":  deal.Name,
			"amount":    deal.Amount,
			"dealstage": deal.Stage,
		},
		"associations": map[string]any{
			"companies": assoc(deal.CompanyIDs),
			"contacts":  assoc(deal.ContactIDs),
		},
	})
}

func (m *MockHubSpot) handleObject(w http.ResponseWriter, objects map[string]map[string]string, id string) {
	props, ok := objects[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundPayload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "properties": props})
}

func (m *MockHubSpot) handleMeetingAssociations(w http.ResponseWriter, dealID string) {
	deal, ok := m.Deals[dealID]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundPayload)
		return
	}
	results := make([]map[string]any, 0, len(deal.MeetingIDs))
	for _, id := range deal.MeetingIDs {
		var numeric int64
		fmt.Sscanf(id, "%d", &numeric)
		results = append(results, map[string]any{"toObjectId": numeric})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (m *MockHubSpot) handleMeeting(w http.ResponseWriter, meetingID string) {
	notes, ok := m.Meetings[meetingID]
	if !ok {
		writeJSON(w, http.StatusNotFound, notFoundPayload)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id": meetingID,
		"properties": map[string]string{
			"hs_meeting_title":          "Discovery call",
			"hs_internal_meeting_notes": notes,
		},
	})
}

func (m *MockHubSpot) handleProducts(w http.ResponseWriter) {
	results := make([]map[string]any, 0, len(m.Products))
	for sku, id := range m.Products {
		results = append(results, map[string]any{
			"id":         id,
			"properties": map[string]string{"hs_sku": sku, "name": sku},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (m *MockHubSpot) handleCreateQuote(w http.ResponseWriter) {
	m.mu.Lock()
	m.quoteCreates++
	m.nextQuoteID++
	quoteID := fmt.Sprintf("%d", m.nextQuoteID)
	m.createdQuoteID = quoteID
	reject := m.RejectQuoteCreate
	m.mu.Unlock()

	if reject {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"message":  "invalid line item state",
			"category": "VALIDATION_ERROR",
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": quoteID})
}

func (m *MockHubSpot) handleCreateLineItem(w http.ResponseWriter) {
	m.mu.Lock()
	failing := m.servedLineItemFailures < m.LineItemFailures
	if failing {
		m.servedLineItemFailures++
		m.mu.Unlock()
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "upstream unavailable"})
		return
	}
	m.lineItemCreates++
	id := fmt.Sprintf("li-%d", m.lineItemCreates)
	m.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (m *MockHubSpot) handleAssociate(w http.ResponseWriter, quoteID, lineItemID string) {
	m.mu.Lock()
	m.associations = append(m.associations, quoteID+":"+lineItemID)
	m.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// FathomNotes wraps transcript text in the marker the fetcher looks for.
func FathomNotes(text string) string {
	return "AI Meeting Summary\n" + strings.TrimSpace(text) + "\nGenerated by Fathom"
}
