package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockAnthropic emulates the Anthropic messages API for generation tests.
type MockAnthropic struct {
	Server *httptest.Server

	// InvalidFirstN serves content failing output validation (no <h3>
	// sections) for the first N requests.
	InvalidFirstN int
	// ErrorStatus, when nonzero, makes every request fail with that status.
	ErrorStatus int
	// Response overrides the generated HTML body when set.
	Response string

	mu       sync.Mutex
	requests int
	prompts  []string
	systems  []string
}

// NewMockAnthropic starts the mock server. Callers own Close.
func NewMockAnthropic() *MockAnthropic {
	m := &MockAnthropic{}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts the server down.
func (m *MockAnthropic) Close() {
	m.Server.Close()
}

// URL returns the mock's base URL.
func (m *MockAnthropic) URL() string {
	return m.Server.URL
}

// Requests returns how many generation calls were served.
func (m *MockAnthropic) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Prompts returns the user prompts received, in order.
func (m *MockAnthropic) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Systems returns the system prompts received, in order.
func (m *MockAnthropic) Systems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.systems...)
}

func (m *MockAnthropic) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/messages") || r.Method != http.MethodPost {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var request struct {
		Model  string `json:"model"`
		System []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"system"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var prompt string
	if len(request.Messages) > 0 && len(request.Messages[0].Content) > 0 {
		prompt = request.Messages[0].Content[0].Text
	}
	var system string
	if len(request.System) > 0 {
		system = request.System[0].Text
	}

	m.mu.Lock()
	m.requests++
	m.prompts = append(m.prompts, prompt)
	m.systems = append(m.systems, system)
	serveInvalid := m.requests <= m.InvalidFirstN
	errorStatus := m.ErrorStatus
	override := m.Response
	m.mu.Unlock()

	if errorStatus != 0 {
		writeJSON(w, errorStatus, map[string]any{
			"type": "error",
			"error": map[string]string{
				"type":    anthropicErrorType(errorStatus),
				"message": "mock upstream error",
			},
		})
		return
	}

	text := override
	if text == "" {
		text = generatedHTML(prompt)
	}
	if serveInvalid {
		text = "```html\nunstructured output without sections\n```"
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":    "msg_mock_12345",
		"type":  "message",
		"role":  "assistant",
		"model": request.Model,
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage": map[string]any{
			"input_tokens":  100,
			"output_tokens": 200,
		},
	})
}

func anthropicErrorType(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "authentication_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusBadRequest:
		return "invalid_request_error"
	default:
		return "api_error"
	}
}

// generatedHTML produces schema-valid proposal HTML shaped by the prompt.
// Summary prompts carry a "Monthly total:" line; preview prompts do not.
func generatedHTML(prompt string) string {
	if strings.Contains(prompt, "Monthly total:") {
		return "<h3>Understanding Your Challenges</h3><p>Mock challenges derived from discovery.</p>" +
			"<h3>Our Recommendation</h3><p>Based on our discovery, we recommend:</p>" +
			"<ul><li><strong>CRM Management</strong> - keeps the data clean</li></ul>" +
			"<blockquote>A dedicated RevOps partner focused on winning more business.</blockquote>"
	}
	return "<h3>Foundation &amp; Audit</h3><ul><li>Audit current tooling</li><li>Map the funnel</li></ul>" +
		"<h3>Pipeline Build-out</h3><ul><li>Stand up sequences</li><li>Define stages</li></ul>"
}
