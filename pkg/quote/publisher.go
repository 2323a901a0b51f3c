// Package quote publishes generated proposal content as a CRM quote with
// line items, returning the durable shareable URL.
package quote

import (
	"context"
	"fmt"
	"time"

	"proposalbot/pkg/catalog"
	"proposalbot/pkg/hubspot"
	"proposalbot/pkg/logx"
	"proposalbot/pkg/proposal"
)

// quoteValidityDays is how long a created quote stays open.
const quoteValidityDays = 30

const defaultTerms = `<ul><li><strong>Initial Term:</strong> 12 months from effective date</li>
<li><strong>Termination:</strong> 30 days written notice after initial term</li>
<li><strong>Payment:</strong> Net 15, monthly in advance</li>
<li><strong>Expenses:</strong> Pre-approved expenses billed at cost</li></ul>`

// Publisher creates quotes in the CRM. Safe for concurrent use.
type Publisher struct {
	crm    *hubspot.Client
	logger *logx.Logger
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock injects a clock. Test use only.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// NewPublisher creates a Publisher over the given CRM client.
func NewPublisher(crm *hubspot.Client, opts ...Option) *Publisher {
	p := &Publisher{
		crm:    crm,
		logger: logx.NewLogger("quote"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish creates one quote for the snapshot, mirrors the recommended
// services as line items, and returns the quote's public URL. Create and URL
// retrieval form a single logical operation: transient failures on the create
// call itself are retried at the transport layer, but once a quote id exists,
// later failures never lead to a second create.
func (p *Publisher) Publish(ctx context.Context, snapshot *hubspot.DealSnapshot, content *proposal.Content, rec catalog.Recommendation) (string, error) {
	skuToID, err := p.crm.ListProductsBySKU(ctx)
	if err != nil {
		return "", logx.Wrap(err, "list products")
	}

	quoteID, err := p.crm.CreateQuote(ctx, hubspot.QuoteRequest{
		DealID:               snapshot.DealID,
		Title:                fmt.Sprintf("CGO in a Box Proposal - %s", snapshot.CompanyName()),
		ExpirationDate:       p.now().UTC().AddDate(0, 0, quoteValidityDays).Format("2006-01-02"),
		Terms:                defaultTerms,
		ExecutiveSummaryHTML: content.ExecutiveSummaryHTML,
		PreviewHTML:          content.PreviewHTML,
	})
	if err != nil {
		return "", logx.Wrap(err, "create quote")
	}
	p.logger.Info("created quote %s for deal %s", quoteID, snapshot.DealID)

	for _, svc := range rec.Services {
		productID, ok := skuToID[svc.SKU]
		if !ok {
			p.logger.Warn("no product for SKU %s, skipping line item", svc.SKU)
			continue
		}
		lineItemID, err := p.crm.CreateLineItem(ctx, hubspot.LineItemRequest{
			ProductID:   productID,
			Name:        svc.Name,
			Description: svc.Description,
			Price:       svc.Price,
			Quantity:    1,
		})
		if err != nil {
			return "", logx.Wrap(err, fmt.Sprintf("create line item for %s", svc.SKU))
		}
		if err := p.crm.AssociateLineItem(ctx, quoteID, lineItemID); err != nil {
			return "", logx.Wrap(err, fmt.Sprintf("associate line item for %s", svc.SKU))
		}
	}

	return p.crm.QuoteURL(quoteID), nil
}
