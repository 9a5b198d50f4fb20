package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitSourceDefsTrimsAndDropsEmpty(t *testing.T) {
	got := splitSourceDefs(" wlan0:name=mon0 , , wlan1 ")
	require.Equal(t, []string{"wlan0:name=mon0", "wlan1"}, got)
}

func TestSplitSourceDefsEmptyInput(t *testing.T) {
	require.Nil(t, splitSourceDefs(""))
}
