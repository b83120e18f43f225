package errorsx_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/anacrolix/swarm/internal/errorsx"
	"github.com/stretchr/testify/require"
)

func TestFormatting(t *testing.T) {
	require.Equal(t, "derp", fmt.Sprintf("%s", errorsx.New("derp")))
	require.Equal(t, "derp: 5", fmt.Sprintf("%s", errorsx.Errorf("derp: %d", 5)))
	require.Equal(t, "failed: derp", fmt.Sprintf("%s", errorsx.Wrap(fmt.Errorf("derp"), "failed")))
	require.Nil(t, errorsx.Wrap(nil, "failed"))
	require.Nil(t, errorsx.Wrapf(nil, "failed %d", 1))
}

func TestIs(t *testing.T) {
	sentinel := errorsx.String("boom")
	wrapped := errorsx.Wrap(sentinel, "while doing a thing")

	require.True(t, errorsx.Is(wrapped, sentinel))
	require.False(t, errorsx.Is(wrapped, errors.New("boom")))
}
