package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntArg(t *testing.T) {
	t.Parallel()

	n, err := intArg("steps", []string{"-2"})
	require.NoError(t, err)
	require.Equal(t, -2, n)

	_, err = intArg("force", nil)
	require.Error(t, err)

	_, err = intArg("force", []string{"abc"})
	require.Error(t, err)
}

func TestEffectiveConfigPath(t *testing.T) {
	require.Equal(t, "custom.yaml", effectiveConfigPath("custom.yaml"))

	t.Setenv("CONFIG_PATH", "env.yaml")
	require.Equal(t, "env.yaml", effectiveConfigPath(""))

	t.Setenv("CONFIG_PATH", "")
	require.Equal(t, "assets/local.yaml", effectiveConfigPath(""))
}
