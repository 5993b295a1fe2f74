package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "desci/pkg/domain-errors"
)

// TestParseHash_Invariants validates the parsing invariant:
// "study and attestation hashes are exactly 32 bytes".
func TestParseHash_Invariants(t *testing.T) {
	zero := strings.Repeat("00", 32)

	t.Run("accepts bare hex", func(t *testing.T) {
		h, err := ParseHash(zero)
		require.NoError(t, err)
		assert.True(t, h.IsZero())
	})

	t.Run("accepts 0x prefix", func(t *testing.T) {
		h, err := ParseHash("0x" + strings.Repeat("01", 32))
		require.NoError(t, err)
		assert.Equal(t, byte(0x01), h[31])
		assert.Equal(t, strings.Repeat("01", 32), h.String())
	})

	t.Run("rejects short input", func(t *testing.T) {
		_, err := ParseHash("abcd")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects non-hex characters", func(t *testing.T) {
		_, err := ParseHash(strings.Repeat("zz", 32))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("round-trips as a JSON map key", func(t *testing.T) {
		h, err := ParseHash(strings.Repeat("ab", 32))
		require.NoError(t, err)

		out, err := json.Marshal(map[Hash]int{h: 1})
		require.NoError(t, err)

		var back map[Hash]int
		require.NoError(t, json.Unmarshal(out, &back))
		assert.Equal(t, 1, back[h])
	})
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"lab identifier", "LAB_001", true},
		{"report identifier", "report42", true},
		{"max length", strings.Repeat("a", 32), true},
		{"empty", "", false},
		{"too long", strings.Repeat("a", 33), false},
		{"hyphen", "LAB-001", false},
		{"space", "LAB 001", false},
		{"unicode", "LABé", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tag, err := ParseTag(tt.input)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, tt.input, tag.String())
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

// TestParseAccountID_SecurityInvariants validates trust-boundary rules for
// caller-supplied account identifiers.
func TestParseAccountID_SecurityInvariants(t *testing.T) {
	_, err := ParseAccountID("")
	assert.Error(t, err)

	_, err = ParseAccountID("   ")
	assert.Error(t, err)

	_, err = ParseAccountID("GABC\x00DEF")
	assert.Error(t, err)

	_, err = ParseAccountID(strings.Repeat("G", 257))
	assert.Error(t, err)

	id, err := ParseAccountID("GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H")
	require.NoError(t, err)
	assert.False(t, id.IsZero())
}
