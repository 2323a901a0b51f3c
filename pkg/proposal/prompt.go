package proposal

import (
	"fmt"
	"strings"

	"proposalbot/pkg/catalog"
	"proposalbot/pkg/hubspot"
)

// Truncation limits keep prompts bounded regardless of transcript volume.
// Fixed limits also keep prompt construction a pure function of the snapshot.
const (
	summaryTranscriptLimit = 12000
	previewTranscriptLimit = 15000
)

const summarySystemPrompt = `You are a RevOps consultant. Generate an Executive Summary as HTML for a CGO proposal.
Structure: <h3>Understanding Your Challenges</h3><p>...</p>
<h3>Our Recommendation</h3><p>Based on our discovery, we recommend:</p><ul><li><strong>Service Name</strong> - justification</li>...</ul>
<blockquote>With this engagement, you'll have a dedicated RevOps partner focused on one thing: helping you win more business, more often.</blockquote>
Be specific to the transcript. Professional, warm. Output ONLY valid HTML.`

const previewSystemPrompt = `You are a RevOps consultant. Generate a First 90 Day Preview as HTML for a CGO proposal.
Structure: 5-7 workstream sections. Each section has an h3 header and a ul with 4-7 detailed li items.
Reference specific tools, people, numbers from the transcript when possible. Be action-oriented.
Output ONLY valid HTML, no markdown code fences. Use <h3> and <ul><li>...</li></ul>.`

// stricterInstruction is appended to the system prompt on the one validation
// retry the generator allows.
const stricterInstruction = `
STRICT OUTPUT REQUIREMENTS: your previous attempt failed validation. Respond with raw HTML only.
Every section must start with an <h3> header and contain non-empty content. Never emit markdown code fences.`

// joinTranscripts renders transcripts for a prompt, preserving snapshot
// order and applying the fixed truncation limit.
func joinTranscripts(transcripts []string, limit int, fallback string) string {
	if len(transcripts) == 0 {
		return fallback
	}
	joined := strings.Join(transcripts, "\n\n---\n\n")
	if len(joined) > limit {
		joined = joined[:limit]
	}
	return joined
}

// BuildSummaryPrompt constructs the executive summary user prompt. It is a
// pure function of the snapshot and recommendation: the same inputs always
// produce byte-identical output.
func BuildSummaryPrompt(snapshot *hubspot.DealSnapshot, rec catalog.Recommendation) string {
	var services strings.Builder
	for _, s := range rec.Services {
		fmt.Fprintf(&services, "- %s ($%d/mo): %s\n", s.Name, s.Price, s.Description)
	}

	transcripts := joinTranscripts(snapshot.Transcripts, summaryTranscriptLimit, "No discovery call data.")

	return fmt.Sprintf("Company: %s\nMonthly total: $%d\n\nTranscripts:\n%s\n\nServices:\n%s",
		snapshot.CompanyName(), rec.TotalMonthly, transcripts, services.String())
}

// BuildPreviewPrompt constructs the first-90-day preview user prompt, also a
// pure function of the snapshot.
func BuildPreviewPrompt(snapshot *hubspot.DealSnapshot) string {
	transcripts := joinTranscripts(snapshot.Transcripts, previewTranscriptLimit,
		"No discovery call transcripts available. Generate a general but professional 90-day preview.")
	return fmt.Sprintf("Company: %s\n\nTranscripts:\n%s", snapshot.CompanyName(), transcripts)
}
