package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomSecret(t *testing.T) {
	first, err := RandomSecret()
	require.NoError(t, err)
	second, err := RandomSecret()
	require.NoError(t, err)

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second, "two generated secrets should not collide")

	decoded, err := base64.URLEncoding.DecodeString(first)
	require.NoError(t, err)
	assert.Len(t, decoded, secretLength)
}

func TestHash(t *testing.T) {
	type tTestCase struct {
		name           string
		salt           string
		plaintext      string
		otherSalt      string
		otherPlaintext string
		wantEqual      bool
	}
	testCases := []tTestCase{
		{
			name:           "same_inputs_same_digest",
			salt:           "salt-1",
			plaintext:      "p1",
			otherSalt:      "salt-1",
			otherPlaintext: "p1",
			wantEqual:      true,
		},
		{
			name:           "different_salt_different_digest",
			salt:           "salt-1",
			plaintext:      "p1",
			otherSalt:      "salt-2",
			otherPlaintext: "p1",
			wantEqual:      false,
		},
		{
			name:           "different_plaintext_different_digest",
			salt:           "salt-1",
			plaintext:      "p1",
			otherSalt:      "salt-1",
			otherPlaintext: "p2",
			wantEqual:      false,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			first := Hash(testCase.salt, testCase.plaintext)
			second := Hash(testCase.otherSalt, testCase.otherPlaintext)

			assert.NotEmpty(t, first)
			if testCase.wantEqual {
				assert.Equal(t, first, second)
			} else {
				assert.NotEqual(t, first, second)
			}
		})
	}
}
