package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDollars(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Cents
		wantErr string
	}{
		{
			name:  "whole dollars",
			input: "50",
			want:  5000,
		},
		{
			name:  "dollars and cents",
			input: "50.25",
			want:  5025,
		},
		{
			name:  "single decimal place",
			input: "10.5",
			want:  1050,
		},
		{
			name:  "zero",
			input: "0",
			want:  0,
		},
		{
			name:  "zero with decimals",
			input: "0.00",
			want:  0,
		},
		{
			name:  "large amount",
			input: "99999.99",
			want:  9999999,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: "amount is required",
		},
		{
			name:    "not a number",
			input:   "fifty",
			wantErr: "invalid amount",
		},
		{
			name:    "trailing garbage",
			input:   "50.00x",
			wantErr: "invalid amount",
		},
		{
			name:    "negative amount",
			input:   "-1.00",
			wantErr: "must not be negative",
		},
		{
			name:    "sub-cent precision",
			input:   "10.005",
			wantErr: "sub-cent precision",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDollars(tt.input)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)

				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				assert.Equal(t, "amount", vErr.Field)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCents_Dollars(t *testing.T) {
	tests := []struct {
		name  string
		cents Cents
		want  string
	}{
		{name: "zero", cents: 0, want: "0.00"},
		{name: "whole dollars", cents: 5000, want: "50.00"},
		{name: "with cents", cents: 5025, want: "50.25"},
		{name: "under a dollar", cents: 7, want: "0.07"},
		{name: "large", cents: 9999999, want: "99999.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cents.Dollars())
		})
	}
}

func TestParseDollars_RoundTrip(t *testing.T) {
	for _, s := range []string{"0.00", "1.00", "19.99", "250.50"} {
		cents, err := ParseDollars(s)
		require.NoError(t, err)
		assert.Equal(t, s, cents.Dollars())
	}
}
