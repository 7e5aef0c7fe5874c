package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersions(t *testing.T) {
	v, err := Versions()
	require.NoError(t, err)
	require.NotEmpty(t, v)
	assert.Equal(t, "0001_client_state", v[0])
	assert.IsNonDecreasing(t, v)
}
