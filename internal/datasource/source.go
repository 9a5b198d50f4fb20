package datasource

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kismetcore/kismet/internal/captureproto"
	"github.com/kismetcore/kismet/internal/monitoring"
)

// pongTimeout is how long a connection may go without a pong before it is
// declared dead.
const (
	pingInterval   = 5 * time.Second
	pongTimeout    = 15 * time.Second
	retryDelay     = 5 * time.Second
	maxMissedPings = 3
)

// Transport is the bidirectional byte stream a Source speaks the capture
// protocol over: a pipe to a locally spawned child, or a TCP connection
// accepted from (or dialed to) a remote capture helper.
type Transport interface {
	io.ReadWriteCloser
}

// Launcher starts the child process (or establishes the remote
// connection) backing a non-passive source, returning its Transport.
type Launcher func(def Definition) (Transport, error)

// ReportHandler is invoked for every decoded v3 report the helper sends
// outside of request/reply correlation (notably KDS_PACKET datagrams).
type ReportHandler func(header captureproto.Header, body map[int]any)

// Source drives one capture source through its lifecycle.
type Source struct {
	mu sync.Mutex

	def        Definition
	launch     Launcher
	onPacket   ReportHandler
	passive    bool
	state      State
	retryable  bool
	remote     bool
	paused     bool

	uuidStr   string
	dlt       int
	capif     string
	hw        string
	channels  []string
	chanHop   *ChanHop

	transport  Transport
	correlator *captureproto.Correlator
	seqno      uint16

	lastPong time.Time
	missed   int

	stopCh    chan struct{}
	stateCh   chan State
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// ChanHop mirrors captureproto.ChanHop to avoid a hard dependency from
// callers that only need the datasource's view of hop parameters.
type ChanHop = captureproto.ChanHop

// Config configures a new Source.
type Config struct {
	Definition Definition
	Launch     Launcher
	OnPacket   ReportHandler
	// Passive marks a source that needs no IPC helper at all (e.g. a
	// remote feed that pushes data without a request/reply handshake).
	Passive bool
	// Remote marks an inbound-connected source, which is never retried
	// locally on error.
	Remote bool
	BaseChannels []string
}

// New constructs an idle Source from cfg.
func New(cfg Config) *Source {
	return &Source{
		def:        cfg.Definition,
		launch:     cfg.Launch,
		onPacket:   cfg.OnPacket,
		passive:    cfg.Passive,
		remote:     cfg.Remote,
		state:      StateIdle,
		correlator: captureproto.NewCorrelator(),
		channels:   MergeChannels(cfg.BaseChannels, cfg.Definition),
		stopCh:     make(chan struct{}),
		stateCh:    make(chan State, 1),
	}
}

// State returns the source's current lifecycle state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Source) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		monitoring.Logf("datasource(%s): %s -> %s", s.def.Name, prev, st)
		select {
		case s.stateCh <- st:
		default:
			// Drain the stale notification and replace it; WatchRetry
			// only ever cares about the latest state.
			select {
			case <-s.stateCh:
			default:
			}
			select {
			case s.stateCh <- st:
			default:
			}
		}
	}
}

// UUID returns the source's assigned UUID, if it has one yet.
func (s *Source) UUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uuidStr
}

// Open runs the full open sequence (steps 1-5 of the datasource open
// sequence): parse (already done at construction), decide passive vs IPC,
// launch and handshake if needed, record the opened parameters, and start
// the ping timer.
func (s *Source) Open() error {
	s.setState(StateOpening)

	if s.passive {
		if s.uuidStr == "" {
			s.mu.Lock()
			s.uuidStr = uuid.Must(uuid.NewUUID()).String()
			s.mu.Unlock()
		}
		s.setState(StateRunning)
		return nil
	}

	if s.launch == nil {
		s.setState(StateErroring)
		return fmt.Errorf("datasource(%s): no launcher configured for a non-passive source", s.def.Name)
	}

	transport, err := s.launch(s.def)
	if err != nil {
		s.setState(StateErroring)
		return fmt.Errorf("datasource(%s): launching capture helper: %w", s.def.Name, err)
	}
	s.mu.Lock()
	s.transport = transport
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(transport)

	if err := s.handshakeOpen(); err != nil {
		s.setState(StateErroring)
		return err
	}

	s.setState(StateRunning)
	s.mu.Lock()
	s.lastPong = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pingLoop()

	return nil
}

func (s *Source) nextSeqno() uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqno++
	return s.seqno
}

func (s *Source) handshakeOpen() error {
	seqno := s.nextSeqno()
	done := make(chan captureproto.OpenReport, 1)

	s.correlator.Track(seqno, func(h captureproto.Header, body map[int]any) {
		done <- captureproto.OpenReportFromBody(body)
	})

	req := captureproto.OpenReq{Seqno: uint32(seqno), Definition: s.def.Raw}
	frame, err := captureproto.EncodeV3(captureproto.Header{CommandID: captureproto.CmdOpenReq, SeqnoOrCode: seqno}, req.ToBody())
	if err != nil {
		return fmt.Errorf("datasource(%s): encoding OPENREQ: %w", s.def.Name, err)
	}
	if err := s.writeFrame(frame); err != nil {
		return fmt.Errorf("datasource(%s): sending OPENREQ: %w", s.def.Name, err)
	}

	select {
	case report := <-done:
		return s.applyOpenReport(report)
	case <-time.After(pongTimeout):
		s.correlator.Abandon(seqno)
		return fmt.Errorf("datasource(%s): timed out waiting for OPENREPORT", s.def.Name)
	}
}

func (s *Source) applyOpenReport(r captureproto.OpenReport) error {
	if !r.Success {
		return fmt.Errorf("datasource(%s): open failed: %s", s.def.Name, r.Message)
	}

	s.mu.Lock()
	if r.UUID != "" {
		s.uuidStr = r.UUID
	} else if s.uuidStr == "" {
		s.uuidStr = uuid.Must(uuid.NewUUID()).String()
	}
	s.dlt = r.DLT
	s.capif = r.Capif
	s.hw = r.HW
	if r.ChanHop != nil {
		s.chanHop = r.ChanHop
	}
	s.mu.Unlock()

	if r.Channel != "" {
		base := s.channels
		merged := MergeChannels(base, s.def)
		s.mu.Lock()
		s.channels = merged
		s.mu.Unlock()
	}

	return nil
}

func (s *Source) writeFrame(body []byte) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return fmt.Errorf("datasource(%s): no transport", s.def.Name)
	}
	return captureproto.WriteFrame(t, body)
}

func (s *Source) readLoop(t Transport) {
	defer s.wg.Done()
	for {
		body, err := captureproto.ReadFrame(t)
		if err != nil {
			s.handleIOError(err)
			return
		}

		header, msg, err := captureproto.DecodeV3(body)
		if err != nil {
			monitoring.Logf("datasource(%s): malformed v3 frame: %v", s.def.Name, err)
			s.triggerError(err)
			return
		}

		switch header.CommandID {
		case captureproto.CmdPong:
			s.mu.Lock()
			s.lastPong = time.Now()
			s.missed = 0
			s.mu.Unlock()
		case captureproto.CmdPacket:
			s.mu.Lock()
			paused := s.paused
			s.mu.Unlock()
			if !paused && s.onPacket != nil {
				s.onPacket(header, msg)
			}
		default:
			s.correlator.Resolve(header, msg)
		}
	}
}

func (s *Source) handleIOError(err error) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	monitoring.Logf("datasource(%s): transport closed: %v", s.def.Name, err)
	s.triggerError(err)
}

func (s *Source) triggerError(err error) {
	s.setState(StateErroring)
	if s.remote {
		go s.Close()
		return
	}
	s.mu.Lock()
	retryable := s.retryable
	s.mu.Unlock()
	if retryable {
		s.setState(StateRetry)
	} else {
		// Close blocks on s.wg, and triggerError is itself called from a
		// wg member (readLoop/pingLoop); waiting here would be a self-join
		// deadlock, so tear down from a goroutine outside the group.
		go s.Close()
	}
}

func (s *Source) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			seqno := s.nextSeqno()
			frame, err := captureproto.EncodePing(captureproto.CmdPing, seqno)
			if err == nil {
				_ = s.writeFrame(frame)
			}

			s.mu.Lock()
			stale := time.Since(s.lastPong) > pongTimeout
			s.mu.Unlock()
			if stale {
				s.triggerError(fmt.Errorf("datasource(%s): no pong within %s", s.def.Name, pongTimeout))
				return
			}
		}
	}
}

// Pause suppresses delivery of incoming data reports; pings continue.
func (s *Source) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume re-enables delivery of incoming data reports.
func (s *Source) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// SetRetryable controls whether a transport or pong-timeout error on an
// opened source moves it to StateRetry instead of closing it. Remote
// sources are never retryable. A failure inside Open itself leaves the
// source in StateErroring and schedules no retry.
func (s *Source) SetRetryable(retry bool) {
	s.mu.Lock()
	s.retryable = retry && !s.remote
	s.mu.Unlock()
}

// Close tears the source down: stop timers, close the transport, mark
// closed.
func (s *Source) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)

		s.mu.Lock()
		t := s.transport
		s.mu.Unlock()
		if t != nil {
			_ = t.Close()
		}

		s.wg.Wait()
		s.setState(StateClosed)
	})
}
