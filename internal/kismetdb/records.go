package kismetdb

import (
	"database/sql"
	"fmt"
	"net"

	"github.com/kismetcore/kismet/internal/packetchain"
)

// preparedStatements holds one prepared INSERT per table, bound per call
// rather than rebuilt, matching the original's "everything through
// prepared statements" rule.
type preparedStatements struct {
	insertDevice     *sql.Stmt
	insertPacket     *sql.Stmt
	insertData       *sql.Stmt
	insertDatasource *sql.Stmt
	insertAlert      *sql.Stmt
	insertMessage    *sql.Stmt
	insertSnapshot   *sql.Stmt
}

func prepareStatements(db *sql.DB) (preparedStatements, error) {
	var s preparedStatements
	var err error

	stmts := []struct {
		dst **sql.Stmt
		sql string
	}{
		{&s.insertDevice, `INSERT INTO devices
			(first_time, last_time, devkey, phyname, devmac, strongest_signal,
			 min_lat, min_lon, max_lat, max_lon, avg_lat, avg_lon, bytes_data, type, device)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&s.insertPacket, `INSERT INTO packets
			(ts_sec, ts_usec, phyname, sourcemac, destmac, transmac, frequency, devkey,
			 lat, lon, alt, speed, heading, packet_len, signal, datasource, dlt, packet,
			 error, tags, datarate, hash, packetid, packet_full_len)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&s.insertData, `INSERT INTO data
			(ts_sec, ts_usec, phyname, devmac, lat, lon, alt, speed, heading, datasource, type, json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&s.insertDatasource, `INSERT INTO datasources
			(uuid, typestring, definition, name, interface, json)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(uuid) DO UPDATE SET
				typestring=excluded.typestring, definition=excluded.definition,
				name=excluded.name, interface=excluded.interface, json=excluded.json`},
		{&s.insertAlert, `INSERT INTO alerts
			(ts_sec, ts_usec, phyname, devmac, lat, lon, header, json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`},
		{&s.insertMessage, `INSERT INTO messages (ts_sec, lat, lon, msgtype, message) VALUES (?, ?, ?, ?, ?)`},
		{&s.insertSnapshot, `INSERT INTO snapshots (ts_sec, ts_usec, lat, lon, snaptype, json) VALUES (?, ?, ?, ?, ?, ?)`},
	}

	for _, st := range stmts {
		*st.dst, err = db.Prepare(st.sql)
		if err != nil {
			return preparedStatements{}, fmt.Errorf("kismetdb: prepare statement: %w", err)
		}
	}
	return s, nil
}

// DeviceRecord mirrors the devices table row.
type DeviceRecord struct {
	FirstTime, LastTime                       int64
	DevKey, PhyName, DevMAC                    string
	StrongestSignal                            int
	MinLat, MinLon, MaxLat, MaxLon             float64
	AvgLat, AvgLon                             float64
	BytesData                                  int64
	Type                                       string
	DeviceJSON                                 []byte
}

// InsertDevice upserts a device row (UNIQUE(phyname,devmac) ON CONFLICT
// REPLACE per schema).
func (d *DB) InsertDevice(r DeviceRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert device: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertDevice).Exec(
		r.FirstTime, r.LastTime, r.DevKey, r.PhyName, r.DevMAC, r.StrongestSignal,
		r.MinLat, r.MinLon, r.MaxLat, r.MaxLon, r.AvgLat, r.AvgLon, r.BytesData, r.Type, r.DeviceJSON,
	)
	if err != nil {
		return fmt.Errorf("kismetdb: insert device: %w", err)
	}
	return nil
}

// PacketRecord mirrors the packets table row.
type PacketRecord struct {
	TsSec, TsUsec                     int64
	PhyName                           string
	SourceMAC, DestMAC, TransMAC      string
	Frequency                         float64
	DevKey                            string
	Lat, Lon, Alt, Speed, Heading     float64
	PacketLen                         int
	Signal                            int
	Datasource                        string
	DLT                               int
	Packet                            []byte
	Error                             bool
	Tags                              string
	Datarate                          float64
	Hash                              uint32
	PacketID                          uint64
	PacketFullLen                     int
}

// RecordFromPacket builds a PacketRecord from a chain packet's attached
// components, filling in only what's present.
func RecordFromPacket(pkt *packetchain.Packet, devKey string, dlt int) PacketRecord {
	r := PacketRecord{
		TsSec:         pkt.Timestamp.Unix(),
		TsUsec:        int64(pkt.Timestamp.Nanosecond() / 1000),
		DevKey:        devKey,
		DLT:           dlt,
		PacketLen:     pkt.OriginalLen,
		Hash:          pkt.Hash,
		PacketID:      pkt.PacketNo,
		PacketFullLen: pkt.OriginalLen,
	}
	if lf, ok := pkt.LinkFrame(); ok {
		r.Packet = lf.Data
	}
	if v, ok := pkt.Component(packetchain.ComponentCommonInfo); ok {
		ci := v.(packetchain.CommonInfo)
		r.PhyName = fmt.Sprintf("phy%d", ci.PhyID)
		r.SourceMAC = macString(ci.Source)
		r.DestMAC = macString(ci.Dest)
		r.TransMAC = macString(ci.Transmitter)
		r.Frequency = float64(ci.FreqKhz)
	}
	if v, ok := pkt.Component(packetchain.ComponentGPS); ok {
		gps := v.(packetchain.GPSInfo)
		r.Lat, r.Lon, r.Alt, r.Speed, r.Heading = gps.Lat, gps.Lon, gps.Alt, gps.Speed, gps.Heading
	}
	if v, ok := pkt.Component(packetchain.ComponentSignal); ok {
		sig := v.(packetchain.SignalInfo)
		r.Signal = sig.SignalDBM
		r.Datarate = sig.Datarate
	}
	if v, ok := pkt.Tag("datasource_uuid"); ok {
		r.Datasource = v
	}
	return r
}

func macString(mac net.HardwareAddr) string {
	if len(mac) == 0 {
		return ""
	}
	return mac.String()
}

// InsertPacket writes a packet row, unless blocked by the device or
// packet MAC filters (C9), or it's a silently-skipped duplicate.
func (d *DB) InsertPacket(r PacketRecord, isDuplicate bool, common packetchain.CommonInfo) error {
	if isDuplicate && !d.logDuplicate {
		return nil
	}
	if d.packetFilter != nil && d.packetFilter.FilterPacket(common) {
		return nil
	}
	if d.deviceFilter != nil && len(common.Source) > 0 {
		if d.deviceFilter.Filter(common.Source, r.PhyName) {
			return nil
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert packet: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertPacket).Exec(
		r.TsSec, r.TsUsec, r.PhyName, r.SourceMAC, r.DestMAC, r.TransMAC, r.Frequency, r.DevKey,
		r.Lat, r.Lon, r.Alt, r.Speed, r.Heading, r.PacketLen, r.Signal, r.Datasource, r.DLT, r.Packet,
		r.Error, r.Tags, r.Datarate, r.Hash, r.PacketID, r.PacketFullLen,
	)
	if err != nil {
		return fmt.Errorf("kismetdb: insert packet: %w", err)
	}
	return nil
}

// DataRecord mirrors the data table row (arbitrary per-phy JSON
// sidecars, e.g. decoded beacons).
type DataRecord struct {
	TsSec, TsUsec                 int64
	PhyName, DevMAC                string
	Lat, Lon, Alt, Speed, Heading float64
	Datasource, Type              string
	JSON                          []byte
}

// InsertData writes a data row.
func (d *DB) InsertData(r DataRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert data: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertData).Exec(
		r.TsSec, r.TsUsec, r.PhyName, r.DevMAC, r.Lat, r.Lon, r.Alt, r.Speed, r.Heading,
		r.Datasource, r.Type, r.JSON,
	)
	if err != nil {
		return fmt.Errorf("kismetdb: insert data: %w", err)
	}
	return nil
}

// DatasourceRecord mirrors the datasources table row.
type DatasourceRecord struct {
	UUID, TypeString, Definition, Name, Interface string
	JSON                                          []byte
}

// InsertDatasource upserts a datasource row keyed by UUID.
func (d *DB) InsertDatasource(r DatasourceRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert datasource: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertDatasource).Exec(r.UUID, r.TypeString, r.Definition, r.Name, r.Interface, r.JSON)
	if err != nil {
		return fmt.Errorf("kismetdb: insert datasource: %w", err)
	}
	return nil
}

// AlertRecord mirrors the alerts table row.
type AlertRecord struct {
	TsSec, TsUsec   int64
	PhyName, DevMAC string
	Lat, Lon        float64
	Header          string
	JSON            []byte
}

// InsertAlert writes an alert row.
func (d *DB) InsertAlert(r AlertRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert alert: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertAlert).Exec(r.TsSec, r.TsUsec, r.PhyName, r.DevMAC, r.Lat, r.Lon, r.Header, r.JSON)
	if err != nil {
		return fmt.Errorf("kismetdb: insert alert: %w", err)
	}
	return nil
}

// MessageRecord mirrors the messages table row.
type MessageRecord struct {
	TsSec         int64
	Lat, Lon      float64
	MsgType, Text string
}

// InsertMessage writes a message row.
func (d *DB) InsertMessage(r MessageRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert message: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertMessage).Exec(r.TsSec, r.Lat, r.Lon, r.MsgType, r.Text)
	if err != nil {
		return fmt.Errorf("kismetdb: insert message: %w", err)
	}
	return nil
}

// SnapshotRecord mirrors the snapshots table row.
type SnapshotRecord struct {
	TsSec, TsUsec int64
	Lat, Lon      float64
	SnapType      string
	JSON          []byte
}

// InsertSnapshot writes a snapshot row.
func (d *DB) InsertSnapshot(r SnapshotRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tx == nil {
		return fmt.Errorf("kismetdb: insert snapshot: no open transaction")
	}
	_, err := d.tx.Stmt(d.stmts.insertSnapshot).Exec(r.TsSec, r.TsUsec, r.Lat, r.Lon, r.SnapType, r.JSON)
	if err != nil {
		return fmt.Errorf("kismetdb: insert snapshot: %w", err)
	}
	return nil
}
