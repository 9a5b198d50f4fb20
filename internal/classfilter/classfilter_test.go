package classfilter

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kismetcore/kismet/internal/eventbus"
)

func mustMAC(t *testing.T, s string) net.HardwareAddr {
	t.Helper()
	mac, err := net.ParseMAC(s)
	require.NoError(t, err)
	return mac
}

func TestFilterFallsBackToDefaultWhenNoEntry(t *testing.T) {
	f := NewMACFilter("test", "desc", nil)
	f.SetDefault(true)
	require.True(t, f.Filter(mustMAC(t, "aa:bb:cc:dd:ee:ff"), "linuxwifi"))
}

func TestSetFilterOverridesDefault(t *testing.T) {
	f := NewMACFilter("test", "desc", nil)
	f.SetDefault(true)
	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	f.SetFilter(mac, "linuxwifi", false, true)
	require.False(t, f.Filter(mac, "linuxwifi"))
}

func TestRemoveFilterRestoresDefault(t *testing.T) {
	f := NewMACFilter("test", "desc", nil)
	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	f.SetFilter(mac, "linuxwifi", true, true)
	f.RemoveFilter(mac, "linuxwifi")
	require.False(t, f.Filter(mac, "linuxwifi"))
}

func TestUnknownPhyEntryMigratesOnNewPhyEvent(t *testing.T) {
	bus := eventbus.New(8)
	defer bus.Close()

	f := NewMACFilter("test", "desc", bus)
	defer f.Close()

	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	f.SetFilter(mac, "linuxwifi", true, false)
	require.False(t, f.Filter(mac, "linuxwifi"), "entry filed under unknown phy must not apply yet")

	done := make(chan struct{})
	bus.RegisterListener([]string{NewPhyChannel}, func(eventbus.Event) { close(done) })
	bus.Publish(eventbus.Event{Channel: NewPhyChannel, Fields: map[string]any{"phyname": "linuxwifi"}})
	<-done

	require.Eventually(t, func() bool {
		return f.Filter(mac, "linuxwifi")
	}, time.Second, time.Millisecond)
}

func TestApplySetRejectsWholeRequestOnBadMAC(t *testing.T) {
	f := NewMACFilter("test", "desc", nil)
	err := f.ApplySet(SetRequest{
		PhyName: "linuxwifi",
		Entries: map[string]bool{"aa:bb:cc:dd:ee:ff": true, "not-a-mac": false},
	}, true)
	require.Error(t, err)
	require.False(t, f.Filter(mustMAC(t, "aa:bb:cc:dd:ee:ff"), "linuxwifi"), "valid entry must not be applied when request is rejected")
}

func TestApplySetAcceptsListFormWithSharedValue(t *testing.T) {
	f := NewMACFilter("test", "desc", nil)
	err := f.ApplySet(SetRequest{
		PhyName: "linuxwifi",
		MACs:    []string{"aa:bb:cc:dd:ee:ff", "11:22:33:44:55:66"},
		Value:   true,
	}, true)
	require.NoError(t, err)
	require.True(t, f.Filter(mustMAC(t, "aa:bb:cc:dd:ee:ff"), "linuxwifi"))
	require.True(t, f.Filter(mustMAC(t, "11:22:33:44:55:66"), "linuxwifi"))
}

func TestApplyRemoveRejectsWholeRequestOnBadMAC(t *testing.T) {
	f := NewMACFilter("test", "desc", nil)
	mac := mustMAC(t, "aa:bb:cc:dd:ee:ff")
	f.SetFilter(mac, "linuxwifi", true, true)

	err := f.ApplyRemove(RemoveRequest{PhyName: "linuxwifi", MACs: []string{"aa:bb:cc:dd:ee:ff", "garbage"}})
	require.Error(t, err)
	require.True(t, f.Filter(mac, "linuxwifi"), "entry must survive a rejected remove request")
}
