package proposal

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposalbot/pkg/apierrors"
	"proposalbot/pkg/catalog"
	"proposalbot/pkg/hubspot"
	"proposalbot/pkg/testkit"
)

func shrinkRetryDelays(t *testing.T) {
	t.Helper()
	saved := map[apierrors.ErrorType]apierrors.RetryConfig{}
	for k, v := range apierrors.DefaultRetryConfigs {
		saved[k] = v
		v.InitialDelay = 2 * time.Millisecond
		v.MaxDelay = 20 * time.Millisecond
		apierrors.DefaultRetryConfigs[k] = v
	}
	t.Cleanup(func() {
		for k, v := range saved {
			apierrors.DefaultRetryConfigs[k] = v
		}
	})
}

func testSnapshot() *hubspot.DealSnapshot {
	return &hubspot.DealSnapshot{
		DealID:   "555",
		DealName: "Acme Corp - CGO",
		Amount:   "36000",
		Stage:    "presentationscheduled",
		Companies: []hubspot.Company{
			{ID: "c1", Name: "Acme Corp", Domain: "acme.example"},
		},
		Contacts: []hubspot.Contact{
			{ID: "p1", FirstName: "Ada", LastName: "Alpha", JobTitle: "CEO"},
		},
		Transcripts: []string{
			"AI Meeting Summary\nThey struggle with messy data and broken dashboards.\nGenerated by Fathom",
		},
	}
}

func testRecommendation(t *testing.T) catalog.Recommendation {
	t.Helper()
	c, err := catalog.Load()
	require.NoError(t, err)
	return c.Recommend(testSnapshot().Transcripts)
}

func TestPromptConstructionIsDeterministic(t *testing.T) {
	snapshot := testSnapshot()
	rec := testRecommendation(t)

	first := BuildSummaryPrompt(snapshot, rec)
	second := BuildSummaryPrompt(snapshot, rec)
	assert.Equal(t, first, second, "same snapshot must yield byte-identical prompt")

	assert.Equal(t, BuildPreviewPrompt(snapshot), BuildPreviewPrompt(snapshot))
}

func TestPromptContents(t *testing.T) {
	snapshot := testSnapshot()
	rec := testRecommendation(t)

	summary := BuildSummaryPrompt(snapshot, rec)
	assert.Contains(t, summary, "Company: Acme Corp")
	assert.Contains(t, summary, "Monthly total:")
	assert.Contains(t, summary, "messy data")

	preview := BuildPreviewPrompt(snapshot)
	assert.Contains(t, preview, "Company: Acme Corp")
	assert.NotContains(t, preview, "Monthly total:")
}

func TestPromptFallbackWithoutTranscripts(t *testing.T) {
	snapshot := testSnapshot()
	snapshot.Transcripts = nil

	assert.Contains(t, BuildSummaryPrompt(snapshot, testRecommendation(t)), "No discovery call data.")
	assert.Contains(t, BuildPreviewPrompt(snapshot), "No discovery call transcripts available")
}

func TestPromptTruncationIsStable(t *testing.T) {
	snapshot := testSnapshot()
	long := make([]byte, summaryTranscriptLimit*2)
	for i := range long {
		long[i] = 'a'
	}
	snapshot.Transcripts = []string{string(long)}

	first := BuildSummaryPrompt(snapshot, testRecommendation(t))
	assert.Equal(t, first, BuildSummaryPrompt(snapshot, testRecommendation(t)))
	assert.Less(t, len(first), summaryTranscriptLimit+1024)
}

func TestGenerate(t *testing.T) {
	mock := testkit.NewMockAnthropic()
	defer mock.Close()

	g := NewGenerator("sk-ant-test", "claude-sonnet-4-20250514", WithBaseURL(mock.URL()))
	content, err := g.Generate(context.Background(), testSnapshot(), testRecommendation(t))
	require.NoError(t, err)

	assert.Contains(t, content.ExecutiveSummaryHTML, "<h3>Understanding Your Challenges</h3>")
	assert.Contains(t, content.PreviewHTML, "<h3>")
	assert.Equal(t, 2, mock.Requests(), "one call per section")
}

func TestGenerateRetriesValidationOnceWithStricterInstruction(t *testing.T) {
	mock := testkit.NewMockAnthropic()
	defer mock.Close()
	mock.InvalidFirstN = 1

	g := NewGenerator("sk-ant-test", "claude-sonnet-4-20250514", WithBaseURL(mock.URL()))
	content, err := g.Generate(context.Background(), testSnapshot(), testRecommendation(t))
	require.NoError(t, err)
	require.NotEmpty(t, content.ExecutiveSummaryHTML)

	// Summary took two attempts, preview one.
	require.Equal(t, 3, mock.Requests())
	systems := mock.Systems()
	assert.NotContains(t, systems[0], "STRICT OUTPUT REQUIREMENTS")
	assert.Contains(t, systems[1], "STRICT OUTPUT REQUIREMENTS")
	assert.NotContains(t, systems[2], "STRICT OUTPUT REQUIREMENTS")
}

func TestGenerateFailsAfterSecondInvalidResponse(t *testing.T) {
	mock := testkit.NewMockAnthropic()
	defer mock.Close()
	mock.InvalidFirstN = 2

	g := NewGenerator("sk-ant-test", "claude-sonnet-4-20250514", WithBaseURL(mock.URL()))
	_, err := g.Generate(context.Background(), testSnapshot(), testRecommendation(t))

	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.ErrorTypeGeneration))
	// The preview call is never attempted after the summary fails.
	assert.Equal(t, 2, mock.Requests())
}

func TestGenerateClassifiesAuthError(t *testing.T) {
	mock := testkit.NewMockAnthropic()
	defer mock.Close()
	mock.ErrorStatus = http.StatusUnauthorized

	g := NewGenerator("bad-key", "claude-sonnet-4-20250514", WithBaseURL(mock.URL()))
	_, err := g.Generate(context.Background(), testSnapshot(), testRecommendation(t))

	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.ErrorTypeAuth))
	assert.Equal(t, 1, mock.Requests(), "auth errors are not retried")
}

func TestGenerateRetriesRateLimit(t *testing.T) {
	shrinkRetryDelays(t)

	mock := testkit.NewMockAnthropic()
	defer mock.Close()
	mock.ErrorStatus = http.StatusTooManyRequests

	g := NewGenerator("sk-ant-test", "claude-sonnet-4-20250514", WithBaseURL(mock.URL()))
	_, err := g.Generate(context.Background(), testSnapshot(), testRecommendation(t))

	require.Error(t, err)
	assert.True(t, apierrors.Is(err, apierrors.ErrorTypeRateLimit))
	assert.Equal(t, 1+apierrors.DefaultRateLimitRetries, mock.Requests())
}

func TestValidateHTML(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr bool
	}{
		{"valid sections", "<h3>One</h3><ul><li>a</li></ul>", false},
		{"empty", "   ", true},
		{"code fences", "```html\n<h3>One</h3>\n```", true},
		{"missing sections", "<p>prose only</p>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHTML(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
