package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		region string
		want   string
		err    error
	}{
		{name: "national number with spaces", phone: "0901 234 987", region: "VN", want: "+84901234987"},
		{name: "international with separators", phone: "+84 90-123-4987", region: "VN", want: "+84901234987"},
		{name: "empty region falls back", phone: "(090) 123.4987", want: "+84901234987"},
		{name: "other region", phone: "+44 7400 123456", region: "VN", want: "+447400123456"},
		{name: "reserved prefix", phone: "555-0100", region: "US", err: ErrPhoneReserved},
		{name: "repeated digit", phone: "1111111", region: "VN", err: ErrPhoneRepeated},
		{name: "ascending run", phone: "0123456789", region: "VN", err: ErrPhoneSequential},
		{name: "descending run", phone: "9876543210", region: "VN", err: ErrPhoneSequential},
		{name: "letters", phone: "12ab", region: "VN", err: ErrPhoneFormat},
		{name: "too short for the plan", phone: "+8412", region: "VN", err: ErrPhoneFormat},
		{name: "blank", phone: "  ", region: "VN", err: ErrPhoneFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizePhone(tt.phone, tt.region)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
