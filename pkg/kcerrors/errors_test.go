package kcerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAndIs(t *testing.T) {
	err := New(ErrCodeManifest, "missing field %s", "name")
	require.True(t, Is(err, ErrCodeManifest))
	require.False(t, Is(err, ErrCodeIO))
	require.Equal(t, ErrCodeManifest, GetCode(err))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(ErrCodeIO, cause, "writing lock file")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "disk full")
	require.Contains(t, err.Error(), "writing lock file")
}

func TestGetCodeNonTaxonomyError(t *testing.T) {
	require.Equal(t, Code(""), GetCode(errors.New("plain")))
}
