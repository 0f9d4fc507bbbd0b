package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactPII(t *testing.T) {
	input := "Write to nana@example.com or call +1 (555) 123-9876, card 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	require.True(t, changed)
	for _, marker := range []string{"[email]", "[phone]", "[card]"} {
		assert.Contains(t, out, marker)
	}
	assert.NotContains(t, out, "nana@example.com")
	assert.NotContains(t, out, "4242")

	_, changed = RedactPII("Where did you grow up in 1962?")
	assert.False(t, changed, "plain question should not be redacted")
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "Tell me ...", Preview("Tell me about the wedding", 8))
	assert.Equal(t, "mail me at [email]", Preview("mail me at a@b.io", 0))
}
