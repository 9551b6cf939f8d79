package testing

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestUnknownID(t *testing.T) {
	a, b := UnknownID(), UnknownID()
	require.True(t, IsHexID(a))
	require.NotEqual(t, a, b)
}

func TestIsHexID(t *testing.T) {
	require.False(t, IsHexID(""))
	require.False(t, IsHexID("507F1F77BCF86CD799439011"))
	require.False(t, IsHexID("507f1f77bcf86cd79943901"))
	require.True(t, IsHexID("507f1f77bcf86cd799439011"))
}

func TestRandStringN(t *testing.T) {
	require.Equal(t, 5000, utf8.RuneCountInString(RandStringN(5000)))
	require.Empty(t, RandStringN(0))
	require.Len(t, RandString(), 10)
}
