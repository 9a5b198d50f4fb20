// Command kismetd is the ingest/classification/tracking daemon: it loads
// tuning config, wires the packet chain, alert tracker, MAC filters,
// kismetdb log, and system monitor together, then drives one Source per
// configured capture interface until told to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/kismetcore/kismet/internal/alerttracker"
	"github.com/kismetcore/kismet/internal/captureproto"
	"github.com/kismetcore/kismet/internal/classfilter"
	"github.com/kismetcore/kismet/internal/config"
	"github.com/kismetcore/kismet/internal/datasource"
	"github.com/kismetcore/kismet/internal/entrytracker"
	"github.com/kismetcore/kismet/internal/eventbus"
	"github.com/kismetcore/kismet/internal/kismetdb"
	"github.com/kismetcore/kismet/internal/monitoring"
	"github.com/kismetcore/kismet/internal/packetchain"
	"github.com/kismetcore/kismet/internal/sysmon"
)

var (
	configPath = flag.String("config", "", "path to the JSON tuning config (optional; defaults apply if omitted)")
	logPath    = flag.String("log-title", "kismet.kismetdb", "path to the kismetdb SQLite log file")
	sources    = flag.String("source", "", "comma-separated capture source definitions, e.g. 'wlan0:name=mon0,wlan1'")
	ephemeral  = flag.Bool("ephemeral-log", false, "don't persist the kismetdb log to disk")
)

func main() {
	flag.Parse()

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		loaded, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("kismetd: loading config: %v", err)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := eventbus.New(256)
	defer bus.Close()

	// Touch the field registry singleton early so its first use isn't on
	// the hot path of the first tracked element built from a packet.
	entrytracker.Global()

	alerts := alerttracker.New(bus, cfg.GetAlertBacklog())

	deviceFilter := classfilter.NewMACFilter("kis_log_device_filter", "device log filter", bus)
	deviceFilter.SetDefault(cfg.GetKisLogDeviceFilterDefault())
	packetFilter := classfilter.NewPacketMACFilter("kis_log_packet_filter", "packet log filter", bus)
	packetFilter.Block(classfilter.BlockAny).SetDefault(cfg.GetKisLogPacketFilterDefault())
	defer deviceFilter.Close()
	defer packetFilter.Close()

	monitor := sysmon.New(bus, nil, nil)
	monitor.Start()
	defer monitor.Stop()

	var db *kismetdb.DB
	if cfg.GetKisLogPackets() {
		opts := []kismetdb.Option{
			kismetdb.WithEventBus(bus),
			kismetdb.WithDeviceFilter(deviceFilter),
			kismetdb.WithPacketFilter(packetFilter),
			kismetdb.WithDuplicatePackets(cfg.GetKisLogDuplicatePackets()),
		}
		if *ephemeral || cfg.GetKisLogEphemeralDangerous() {
			opts = append(opts, kismetdb.Ephemeral())
		}
		opened, err := kismetdb.Open(*logPath, opts...)
		if err != nil {
			log.Fatalf("kismetd: opening kismetdb log: %v", err)
		}
		db = opened
		defer db.Close()

		stopRetention := db.RunRetention(kismetdb.RetentionConfig{
			Packets:   cfg.GetKisLogPacketTimeout(),
			Devices:   cfg.GetKisLogDeviceTimeout(),
			Alerts:    cfg.GetKisLogAlertTimeout(),
			Messages:  cfg.GetKisLogMessageTimeout(),
			Snapshots: cfg.GetKisLogSnapshotTimeout(),
		})
		defer stopRetention()
	}

	chainStats := packetchain.NewStats()
	chain := packetchain.NewChain(cfg.GetKismetPacketThreads(),
		packetchain.WithAlertRaiser(alerts),
		packetchain.WithStats(chainStats),
		packetchain.WithBacklogLimit(cfg.GetPacketBacklogLimit()),
		packetchain.WithLogWarning(cfg.GetPacketLogWarning()),
	)
	defer chain.Shutdown()

	registerLoggingStage(chain, db, cfg)

	var wg sync.WaitGroup
	for _, def := range splitSourceDefs(*sources) {
		parsed, err := datasource.ParseDefinition(def)
		if err != nil {
			log.Fatalf("kismetd: parsing source definition %q: %v", def, err)
		}
		src := newPipeSource(parsed, chain)
		wg.Add(1)
		go func(s *datasource.Source) {
			defer wg.Done()
			if err := s.Open(); err != nil {
				monitoring.Logf("kismetd: opening source: %v", err)
				return
			}
			s.WatchRetry(func() {
				if err := s.Open(); err != nil {
					monitoring.Logf("kismetd: reopening source: %v", err)
				}
			})
		}(src)
	}

	<-ctx.Done()
	monitoring.Logf("kismetd: shutting down")
	wg.Wait()
}

// registerLoggingStage wires kismetdb writes into the packet chain's
// final stage. When kis_log_data_packets is off, packets that carry a
// JSON sidecar component are not logged; frames are not otherwise sorted
// into management and data frames here.
func registerLoggingStage(chain *packetchain.Chain, db *kismetdb.DB, cfg *config.TuningConfig) {
	if db == nil {
		return
	}
	chain.RegisterHandler(packetchain.StageLogging, func(pkt *packetchain.Packet) {
		common, ok := pkt.Component(packetchain.ComponentCommonInfo)
		if !ok {
			return
		}
		info := common.(packetchain.CommonInfo)

		if !cfg.GetKisLogDataPackets() && pkt.HasComponent(packetchain.ComponentJSON) {
			return
		}

		frame, _ := pkt.LinkFrame()
		rec := kismetdb.RecordFromPacket(pkt, "", frame.DLT)
		if err := db.InsertPacket(rec, pkt.Duplicate, info); err != nil {
			monitoring.Logf("kismetd: logging packet: %v", err)
		}
	})
}

func splitSourceDefs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// pipeTransport wraps a locally spawned capture helper's stdio into the
// io.ReadWriteCloser a Source expects.
type pipeTransport struct {
	io.Reader
	io.Writer
	cmd *exec.Cmd
}

func (p *pipeTransport) Close() error {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	return p.cmd.Wait()
}

// launchHelper spawns the per-interface capture helper binary
// ("kismetd-cap-<interface>"), wiring its stdin/stdout as the capture
// protocol transport.
func launchHelper(def datasource.Definition) (datasource.Transport, error) {
	helperName := "kismetd-cap-" + def.Interface
	cmd := exec.Command(helperName, "--interface", def.Interface)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("kismetd: stdin pipe for %s: %w", helperName, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("kismetd: stdout pipe for %s: %w", helperName, err)
	}
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("kismetd: starting %s: %w", helperName, err)
	}
	return &pipeTransport{Reader: stdout, Writer: stdin, cmd: cmd}, nil
}

// newPipeSource builds a Source whose decoded KDS_PACKET reports are
// submitted directly into chain. A definition carrying a "host" option
// dials a remote capture helper over TCP instead of spawning a local
// child process.
func newPipeSource(def datasource.Definition, chain *packetchain.Chain) *datasource.Source {
	var src *datasource.Source
	onPacket := func(header captureproto.Header, body map[int]any) {
		msg := captureproto.PacketMsgFromBody(body)
		pkt := src.BuildPacket(msg, false, false, nil)
		frame, _ := pkt.LinkFrame()
		chain.Submit(pkt, frame.Data)
	}

	_, remote := def.Opt("host")
	launch := launchHelper
	if remote {
		launch = dialRemoteHelper
	}

	src = datasource.New(datasource.Config{
		Definition: def,
		Launch:     launch,
		OnPacket:   onPacket,
		Remote:     remote,
	})
	// Local capture helpers are expected to be restarted on a transport
	// error (a crashed or unplugged helper); remote-connected sources are
	// never retried locally (SetRetryable is a no-op for them).
	src.SetRetryable(true)
	return src
}

// dialRemoteHelper is a Launcher for remote-connected sources whose
// definition names a "host:port" endpoint rather than a local interface,
// used for inbound TCP-connected capture helpers.
func dialRemoteHelper(def datasource.Definition) (datasource.Transport, error) {
	host, ok := def.Opt("host")
	if !ok {
		return nil, fmt.Errorf("kismetd: remote source %q missing host option", def.Name)
	}
	port := "3501"
	if p, ok := def.Opt("port"); ok {
		if _, err := strconv.Atoi(p); err == nil {
			port = p
		}
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, port), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("kismetd: dialing remote source %s: %w", def.Name, err)
	}
	return conn, nil
}
