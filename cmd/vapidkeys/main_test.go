package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratesEnvLines(t *testing.T) {
	cmd := newCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--subject", "mailto:ops@example.com"})
	require.NoError(t, cmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "VAPID_PUBLIC_KEY="))
	assert.True(t, strings.HasPrefix(lines[1], "VAPID_PRIVATE_KEY="))
	assert.Equal(t, "VAPID_SUBJECT=mailto:ops@example.com", lines[2])
}
