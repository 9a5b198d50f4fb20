package kismetdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kismetdb")
	d, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenAppliesMigrationsAndOpensTransaction(t *testing.T) {
	d := openTestDB(t)
	require.NotNil(t, d.tx)
}

func TestInsertDeviceThenQueryRow(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.InsertDevice(DeviceRecord{
		FirstTime: 1000, LastTime: 1001, DevKey: "abc", PhyName: "linuxwifi",
		DevMAC: "aa:bb:cc:dd:ee:ff", Type: "Wi-Fi AP",
	}))
	require.NoError(t, d.cycleTx())

	var devmac string
	require.NoError(t, d.Raw().QueryRow(`SELECT devmac FROM devices WHERE devkey = ?`, "abc").Scan(&devmac))
	require.Equal(t, "aa:bb:cc:dd:ee:ff", devmac)
}

func TestInsertDeviceUpsertsOnPhynameDevmacConflict(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.InsertDevice(DeviceRecord{DevKey: "a1", PhyName: "linuxwifi", DevMAC: "aa:bb:cc:dd:ee:ff", Type: "old"}))
	require.NoError(t, d.InsertDevice(DeviceRecord{DevKey: "a1", PhyName: "linuxwifi", DevMAC: "aa:bb:cc:dd:ee:ff", Type: "new"}))
	require.NoError(t, d.cycleTx())

	var count int
	require.NoError(t, d.Raw().QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&count))
	require.Equal(t, 1, count)

	var typ string
	require.NoError(t, d.Raw().QueryRow(`SELECT type FROM devices`).Scan(&typ))
	require.Equal(t, "new", typ)
}

func TestInsertAlertAndMessage(t *testing.T) {
	d := openTestDB(t)
	require.NoError(t, d.InsertAlert(AlertRecord{TsSec: 1, Header: "DEAUTHFLOOD"}))
	require.NoError(t, d.InsertMessage(MessageRecord{TsSec: 1, MsgType: "INFO", Text: "started"}))
	require.NoError(t, d.cycleTx())

	var header, msg string
	require.NoError(t, d.Raw().QueryRow(`SELECT header FROM alerts`).Scan(&header))
	require.Equal(t, "DEAUTHFLOOD", header)
	require.NoError(t, d.Raw().QueryRow(`SELECT message FROM messages`).Scan(&msg))
	require.Equal(t, "started", msg)
}

func TestBuildPcapngSQLAppliesFilters(t *testing.T) {
	query, args := buildPcapngSQL(PcapngQuery{DatasourceUUID: "u1", DLT: 127, Limit: 10})
	require.Contains(t, query, "datasource = ?")
	require.Contains(t, query, "dlt = ?")
	require.Contains(t, query, "LIMIT 10")
	require.Equal(t, []any{"u1", 127}, args)
}

func TestCycleTxCommitsAndReopens(t *testing.T) {
	d := openTestDB(t)
	first := d.tx
	require.NoError(t, d.cycleTx())
	require.NotSame(t, first, d.tx)
}
