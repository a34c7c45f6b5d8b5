package passphrase

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceReadsEnvOnce(t *testing.T) {
	t.Setenv("PLAYMINT_TEST_PASS", "first")
	src := NewSource("PLAYMINT_TEST_PASS", "test")

	got, err := src.Get()
	require.NoError(t, err)
	require.Equal(t, "first", got)

	t.Setenv("PLAYMINT_TEST_PASS", "second")
	got, err = src.Get()
	require.NoError(t, err)
	require.Equal(t, "first", got)
}

func TestSourceRejectsBlankEnv(t *testing.T) {
	t.Setenv("PLAYMINT_TEST_PASS", "   ")
	_, err := NewSource("PLAYMINT_TEST_PASS", "test").Get()
	require.ErrorContains(t, err, "PLAYMINT_TEST_PASS is set but empty")
}
