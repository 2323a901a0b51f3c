package hubspot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// HubSpot-defined association type ids.
const (
	assocTypeQuoteToDeal     = 64
	assocTypeQuoteToLineItem = 67
)

// QuoteRequest carries everything needed to create a quote against a deal.
type QuoteRequest struct {
	DealID               string
	Title                string
	ExpirationDate       string // YYYY-MM-DD
	Terms                string
	ExecutiveSummaryHTML string
	PreviewHTML          string
}

// LineItemRequest mirrors one recommended service onto the quote.
type LineItemRequest struct {
	ProductID   string
	Name        string
	Description string
	Price       int
	Quantity    int
}

// ListProductsBySKU returns a SKU -> product id map from the product library.
func (c *Client) ListProductsBySKU(ctx context.Context) (map[string]string, error) {
	params := url.Values{}
	params.Set("limit", "100")
	params.Set("properties", "name,hs_sku")

	var page struct {
		Results []crmObject `json:"results"`
	}
	if err := c.get(ctx, "/crm/v3/objects/products", params, &page); err != nil {
		return nil, err
	}

	skuToID := make(map[string]string, len(page.Results))
	for i := range page.Results {
		if sku := page.Results[i].Properties["hs_sku"]; sku != "" {
			skuToID[sku] = page.Results[i].ID
		}
	}
	return skuToID, nil
}

// CreateQuote creates a DRAFT quote associated to the deal and returns its id.
func (c *Client) CreateQuote(ctx context.Context, req QuoteRequest) (string, error) {
	body := map[string]any{
		"properties": map[string]any{
			"hs_title":           req.Title,
			"hs_expiration_date": req.ExpirationDate,
			"hs_status":          "DRAFT",
			"hs_language":        "en",
			"hs_locale":          "en-us",
			"hs_currency":        "USD",
			"hs_comments":        req.ExecutiveSummaryHTML,
			"cgo_90_day_preview": req.PreviewHTML,
			"hs_terms":           req.Terms,
		},
		"associations": []map[string]any{{
			"to": map[string]any{"id": req.DealID},
			"types": []map[string]any{{
				"associationCategory": "HUBSPOT_DEFINED",
				"associationTypeId":   assocTypeQuoteToDeal,
			}},
		}},
	}

	var created crmObject
	if err := c.post(ctx, "/crm/v3/objects/quotes", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// CreateLineItem creates a line item and returns its id.
func (c *Client) CreateLineItem(ctx context.Context, li LineItemRequest) (string, error) {
	quantity := li.Quantity
	if quantity < 1 {
		quantity = 1
	}
	body := map[string]any{
		"properties": map[string]any{
			"hs_product_id": li.ProductID,
			"quantity":      quantity,
			"price":         strconv.Itoa(li.Price),
			"name":          li.Name,
			"description":   li.Description,
		},
	}

	var created crmObject
	if err := c.post(ctx, "/crm/v3/objects/line_items", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// AssociateLineItem attaches a line item to a quote.
func (c *Client) AssociateLineItem(ctx context.Context, quoteID, lineItemID string) error {
	path := fmt.Sprintf("/crm/v3/objects/quotes/%s/associations/line_items/%s/%d",
		quoteID, lineItemID, assocTypeQuoteToLineItem)
	return c.put(ctx, path)
}

// QuoteURL returns the durable, shareable record URL for a quote.
// Object type 0-115 is a quote.
func (c *Client) QuoteURL(quoteID string) string {
	return fmt.Sprintf("https://app.hubspot.com/contacts/%s/record/0-115/%s", c.portalID, quoteID)
}
