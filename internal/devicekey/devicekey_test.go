package devicekey

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	mac, err := net.ParseMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, err)

	k := New("11111111-1111-1111-1111-111111111111", "IEEE802.11", mac)
	s := k.String()

	parsed, err := Parse(s)
	require.NoError(t, err)
	require.Equal(t, k, parsed)

	// stable across "restarts" with the same inputs
	k2 := New("11111111-1111-1111-1111-111111111111", "IEEE802.11", mac)
	require.Equal(t, k, k2)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-key",
		"AAAAAAAAAAAAAAAA",
		"aaaaaaaaaaaaaaaa_aaaaaaaaaaaaaaaa", // lowercase rejected: strict form
		"AAAAAAAAAAAAAAAA_AAAAAAAAAAAAAAA",  // short second word
		"AAAAAAAAAAAAAAAA_AAAAAAAAAAAAAAAAA_X",
	}
	for _, c := range cases {
		_, err := Parse(c)
		require.Errorf(t, err, "expected parse error for %q", c)
	}
}

func TestFormatIsFixedWidth(t *testing.T) {
	mac, _ := net.ParseMAC("00:00:00:00:00:01")
	k := New("", "", mac)
	s := k.String()
	require.Len(t, s, 33)
	require.Equal(t, byte('_'), s[16])
}
