package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors"
	"github.com/eshaffer321/cc-transaction-logger/internal/adapters/extractors/grab"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

type stubExtractor struct {
	name   string
	sender string
}

func (s stubExtractor) Name() string          { return s.name }
func (s stubExtractor) MerchantEmail() string { return s.sender }
func (s stubExtractor) Extract(string, *string) transaction.Record {
	return transaction.Empty()
}

func TestNewDefault(t *testing.T) {
	r := NewDefault(nil)

	assert.Equal(t, []string{"Foodpanda", "Grab", "GreenGSM", "Metrobank"}, r.List())

	senders := map[string]bool{}
	for _, e := range r.GetAll() {
		require.NotEmpty(t, e.MerchantEmail(), e.Name())
		assert.False(t, senders[e.MerchantEmail()], "duplicate sender %s", e.MerchantEmail())
		senders[e.MerchantEmail()] = true
	}
	assert.Len(t, senders, 4)
}

func TestRegistry_Get(t *testing.T) {
	r := NewDefault(nil)

	e, err := r.Get("Grab")
	require.NoError(t, err)
	assert.Equal(t, grab.DefaultSender, e.MerchantEmail())

	for _, name := range []string{"Unknown", "grab", ""} {
		_, err := r.Get(name)
		require.Error(t, err)
		assert.True(t, errors.Is(err, extractors.ErrUnknownMerchant))
		assert.Contains(t, err.Error(), name)
	}
}

func TestRegistry_Register(t *testing.T) {
	tests := []struct {
		name    string
		add     stubExtractor
		wantErr string
	}{
		{"new merchant", stubExtractor{"BPI", "alerts@bpi.com.ph"}, ""},
		{"duplicate key", stubExtractor{"Grab", "other@grab.com"}, "already registered"},
		{"duplicate sender", stubExtractor{"GrabToo", "No-Reply@Grab.com"}, "sender"},
		{"missing sender", stubExtractor{"Blank", ""}, "no sender"},
		{"missing name", stubExtractor{"", "x@example.com"}, "no name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil)
			require.NoError(t, r.Register(grab.New(nil)))

			err := r.Register(tt.add)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, []string{"BPI", "Grab"}, r.List())
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, []string{"Grab"}, r.List())
		})
	}
}

func TestRegistry_BySender(t *testing.T) {
	r := NewDefault(nil)

	e, ok := r.BySender("customerservice@METROBANKCARD.com")
	require.True(t, ok)
	assert.Equal(t, "Metrobank", e.Name())

	_, ok = r.BySender("someone@example.com")
	assert.False(t, ok)
}

func TestNewWithSenders(t *testing.T) {
	r, err := NewWithSenders(nil, map[string]string{"Grab": "receipts@grab.com"})
	require.NoError(t, err)

	e, err := r.Get("Grab")
	require.NoError(t, err)
	assert.Equal(t, "receipts@grab.com", e.MerchantEmail())

	_, err = NewWithSenders(nil, map[string]string{"Lazada": "x@lazada.ph"})
	assert.ErrorIs(t, err, extractors.ErrUnknownMerchant)

	_, err = NewWithSenders(nil, map[string]string{"Grab": "noreply@2c2p.com"})
	assert.ErrorContains(t, err, "already registered")
}
