package logger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitAcceptsUnknownLevel(t *testing.T) {
	require.NoError(t, Init("not-a-level"))
	require.NotNil(t, Logger())
	require.NotNil(t, WithModule("test"))
}
