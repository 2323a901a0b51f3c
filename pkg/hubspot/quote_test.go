package hubspot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposalbot/pkg/apierrors"
	"proposalbot/pkg/testkit"
)

func TestListProductsBySKU(t *testing.T) {
	mock := testkit.NewMockHubSpot()
	defer mock.Close()
	mock.Products["CGO-CRM"] = "prod-1"
	mock.Products["CGO-MKTOPS"] = "prod-2"

	client := newTestClient(mock)
	skuToID, err := client.ListProductsBySKU(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"CGO-CRM": "prod-1", "CGO-MKTOPS": "prod-2"}, skuToID)
}

func TestCreateQuoteAndLineItems(t *testing.T) {
	mock := testkit.NewMockHubSpot()
	defer mock.Close()

	client := newTestClient(mock)
	ctx := context.Background()

	quoteID, err := client.CreateQuote(ctx, QuoteRequest{
		DealID:               "555",
		Title:                "CGO in a Box Proposal - Acme Corp",
		ExpirationDate:       "2026-09-27",
		ExecutiveSummaryHTML: "<h3>Summary</h3>",
		PreviewHTML:          "<h3>Preview</h3>",
	})
	require.NoError(t, err)
	require.NotEmpty(t, quoteID)
	assert.Equal(t, 1, mock.QuoteCreates())

	lineItemID, err := client.CreateLineItem(ctx, LineItemRequest{
		ProductID: "prod-1",
		Name:      "CRM Management",
		Price:     2000,
	})
	require.NoError(t, err)
	require.NotEmpty(t, lineItemID)

	require.NoError(t, client.AssociateLineItem(ctx, quoteID, lineItemID))
	assert.Equal(t, []string{quoteID + ":" + lineItemID}, mock.Associations())
}

func TestCreateQuoteValidationRejection(t *testing.T) {
	mock := testkit.NewMockHubSpot()
	defer mock.Close()
	mock.RejectQuoteCreate = true

	client := newTestClient(mock)
	_, err := client.CreateQuote(context.Background(), QuoteRequest{DealID: "555", Title: "t"})

	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.ErrorTypeValidation))
	assert.Contains(t, err.Error(), "invalid line item state")
	// Validation rejections are not retried.
	assert.Equal(t, 1, mock.QuoteCreates())
}

func TestQuoteURL(t *testing.T) {
	client := NewClient("https://api.hubapi.com", "key", "21656838")
	assert.Equal(t,
		"https://app.hubspot.com/contacts/21656838/record/0-115/987",
		client.QuoteURL("987"))
}
