package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proposalbot/pkg/apierrors"
)

func TestOnceResponderDeliversOnce(t *testing.T) {
	var mu sync.Mutex
	var received []Message

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewOnceResponder(srv.URL, srv.Client())
	ctx := context.Background()

	require.NoError(t, r.Respond(ctx, FailureMessage("Fetching", "deal not found")))
	assert.True(t, r.Delivered())

	err := r.Respond(ctx, FailureMessage("Fetching", "deal not found"))
	assert.ErrorIs(t, err, ErrAlreadyDelivered)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "Failed at Fetching: deal not found", received[0].Text)
	assert.Equal(t, ResponseEphemeral, received[0].ResponseType)
}

func TestOnceResponderConcurrentDelivery(t *testing.T) {
	var mu sync.Mutex
	deliveries := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		deliveries++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewOnceResponder(srv.URL, srv.Client())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Respond(context.Background(), ErrorMessage("race"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyDelivered)
		}
	}
	assert.Equal(t, 1, succeeded)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, deliveries)
}

func TestOnceResponderFailureConsumesUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewOnceResponder(srv.URL, srv.Client())

	err := r.Respond(context.Background(), ErrorMessage("first"))
	require.Error(t, err)
	assert.Equal(t, apierrors.ErrorTypeTransient, apierrors.TypeOf(err))

	// Even though delivery failed, the capability is spent.
	assert.ErrorIs(t, r.Respond(context.Background(), ErrorMessage("second")), ErrAlreadyDelivered)
}

func TestSuccessMessageLayout(t *testing.T) {
	msg := SuccessMessage("Acme Corp", 12000,
		[]string{"Marketing Operations Consulting", "CRM Management"},
		"https://app.hubspot.com/contacts/21656838/record/0-115/987")

	assert.Equal(t, ResponseInChannel, msg.ResponseType)
	require.Len(t, msg.Blocks, 3)
	assert.Contains(t, msg.Blocks[0].Text.Text, "Acme Corp")
	assert.Contains(t, msg.Blocks[1].Text.Text, "$12,000")
	assert.Contains(t, msg.Blocks[1].Text.Text, "CRM Management")
	assert.Contains(t, msg.Blocks[2].Text.Text, "record/0-115/987")
}

func TestFormatThousands(t *testing.T) {
	tests := []struct {
		in   int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{12000, "12,000"},
		{1234567, "1,234,567"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatThousands(tt.in))
	}
}
