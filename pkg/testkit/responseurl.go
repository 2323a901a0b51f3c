package testkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
)

// DeliveredMessage is one payload posted to the mock response_url.
type DeliveredMessage struct {
	ResponseType string `json:"response_type"`
	Text         string `json:"text"`
	Blocks       []struct {
		Type string `json:"type"`
		Text struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"text"`
	} `json:"blocks"`
}

// FlattenedText joins the message text and all block texts for easy
// substring assertions.
func (d *DeliveredMessage) FlattenedText() string {
	out := d.Text
	for _, b := range d.Blocks {
		out += "\n" + b.Text.Text
	}
	return out
}

// MockResponseURL captures delayed-response deliveries.
type MockResponseURL struct {
	Server *httptest.Server

	mu       sync.Mutex
	messages []DeliveredMessage
	notify   chan struct{}
}

// NewMockResponseURL starts the capture server. Callers own Close.
func NewMockResponseURL() *MockResponseURL {
	m := &MockResponseURL{notify: make(chan struct{}, 16)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts the server down.
func (m *MockResponseURL) Close() {
	m.Server.Close()
}

// URL returns the capture endpoint.
func (m *MockResponseURL) URL() string {
	return m.Server.URL
}

// Messages returns a copy of everything delivered so far.
func (m *MockResponseURL) Messages() []DeliveredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]DeliveredMessage(nil), m.messages...)
}

// Delivered signals once per delivery; receive on it to wait for the
// asynchronous result without polling.
func (m *MockResponseURL) Delivered() <-chan struct{} {
	return m.notify
}

func (m *MockResponseURL) handle(w http.ResponseWriter, r *http.Request) {
	var msg DeliveredMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
	w.WriteHeader(http.StatusOK)
}
