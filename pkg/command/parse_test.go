package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDealRef(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    DealRef
		wantErr bool
	}{
		{
			name: "full record URL",
			text: "https://app.hubspot.com/contacts/21656838/record/0-3/12345",
			want: DealRef{PortalID: "21656838", DealID: "12345"},
		},
		{
			name: "URL embedded in surrounding text",
			text: "please run https://app.hubspot.com/contacts/21656838/record/0-3/555 thanks",
			want: DealRef{PortalID: "21656838", DealID: "555"},
		},
		{
			name: "bare numeric id",
			text: "12345",
			want: DealRef{DealID: "12345"},
		},
		{
			name: "bare id with whitespace",
			text: "  987  ",
			want: DealRef{DealID: "987"},
		},
		{
			name:    "no identifier",
			text:    "hello",
			wantErr: true,
		},
		{
			name:    "empty text",
			text:    "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			text:    "   ",
			wantErr: true,
		},
		{
			name: "contact URL is not a deal",
			text: "https://app.hubspot.com/contacts/21656838/record/0-1/777",
			// Falls back to the bare-id match inside the URL.
			want: DealRef{DealID: "21656838"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDealRef(tt.text)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoDealReference)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckPortal(t *testing.T) {
	t.Run("matching portal", func(t *testing.T) {
		ref := DealRef{PortalID: "21656838", DealID: "1"}
		assert.NoError(t, ref.CheckPortal("21656838"))
	})

	t.Run("bare id has no portal", func(t *testing.T) {
		ref := DealRef{DealID: "1"}
		assert.NoError(t, ref.CheckPortal("21656838"))
	})

	t.Run("mismatched portal", func(t *testing.T) {
		ref := DealRef{PortalID: "99999", DealID: "1"}
		assert.ErrorIs(t, ref.CheckPortal("21656838"), ErrPortalMismatch)
	})
}
