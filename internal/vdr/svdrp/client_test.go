package svdrp

import (
	"bufio"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/vdr"
)

// stubVDR is a minimal SVDRP endpoint: greeting, canned responses per
// command, QUIT handling.
type stubVDR struct {
	ln       net.Listener
	mu       sync.Mutex
	commands []string
	respond  func(cmd string) []string
}

// startStubVDR starts a stub whose respond func returns full response
// lines, codes included.
func startStubVDR(t *testing.T, respond func(cmd string) []string) *stubVDR {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &stubVDR{ln: ln, respond: respond}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *stubVDR) addr() string { return s.ln.Addr().String() }

func (s *stubVDR) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *stubVDR) setRespond(respond func(cmd string) []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.respond = respond
}

func (s *stubVDR) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *stubVDR) handle(conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	w.WriteString("220 vdr SVDRP VideoDiskRecorder 2.6.0; Sat Mar 14 23:30:00 2026; UTF-8\r\n")
	w.Flush()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		respond := s.respond
		s.mu.Unlock()

		if strings.EqualFold(cmd, "QUIT") {
			w.WriteString("221 vdr closing connection\r\n")
			w.Flush()
			return
		}
		for _, line := range respond(cmd) {
			w.WriteString(line + "\r\n")
		}
		w.Flush()
	}
}

func testClient(t *testing.T, stub *stubVDR) *Client {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	c := NewClient(stub.addr(), time.Second, time.Second, logger)
	if err := c.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientExecSingleLine(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{"250 1 0:C-1-2-3:2026-03-14:2330:0130:50:99:Pause:"}
	})
	c := testClient(t, stub)

	lines, err := c.Exec("LSTT 1")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "1 ") {
		t.Errorf("lines = %q", lines)
	}
}

func TestClientExecMultiline(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{
			"250-1 9:C-1-2-3:2026-03-14:2330:0130:-2:0:Pause:",
			"250-2 1:C-4-5-6:2026-03-15:2015:2200:50:99:Film:",
			"250 3 1:C-7-8-9:MTWTF--:2000:2100:50:99:News:",
		}
	})
	c := testClient(t, stub)

	lines, err := c.Exec("LSTT")
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("lines = %q, want 3", lines)
	}
}

func TestClientExecProtocolError(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{"550 No timers defined"}
	})
	c := testClient(t, stub)

	_, err := c.Exec("LSTT")
	var perr *textproto.Error
	if !errors.As(err, &perr) || perr.Code != 550 {
		t.Fatalf("err = %v, want textproto error 550", err)
	}

	// The connection must survive a protocol-level refusal.
	stub.setRespond(func(cmd string) []string {
		return []string{"250 1 0:C-1-2-3:2026-03-14:2330:0130:50:99:Pause:"}
	})
	if _, err := c.Exec("LSTT 1"); err != nil {
		t.Fatalf("Exec after refusal: %v", err)
	}
}

func TestSchedulerTimerRoundTrip(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		switch {
		case strings.HasPrefix(cmd, "LSTT 1"):
			return []string{"250 1 9:C-1-2-3:2026-03-14:2330:2330:50:99:Pause:"}
		case strings.HasPrefix(cmd, "MODT"):
			return []string{"250 1 9:C-1-2-3:2026-03-14:2330:0130:50:99:Pause:"}
		default:
			return []string{"501 unexpected"}
		}
	})
	c := testClient(t, stub)
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	s := NewScheduler(c, logger)

	timer, err := s.Timer(1)
	if err != nil {
		t.Fatalf("Timer: %v", err)
	}
	if timer.ID != 1 || !timer.Recording || !timer.SingleEvent {
		t.Errorf("timer = %+v", timer)
	}

	if err := s.SetTimerStop(1, 130); err != nil {
		t.Fatalf("SetTimerStop: %v", err)
	}

	var modt string
	for _, cmd := range stub.received() {
		if strings.HasPrefix(cmd, "MODT") {
			modt = cmd
		}
	}
	if want := "MODT 1 9:C-1-2-3:2026-03-14:2330:0130:50:99:Pause:"; modt != want {
		t.Errorf("MODT = %q, want %q", modt, want)
	}
}

func TestSchedulerTimerNotFound(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{"501 Timer \"9\" not defined"}
	})
	c := testClient(t, stub)
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	s := NewScheduler(c, logger)

	if _, err := s.Timer(9); !errors.Is(err, vdr.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, vdr.ErrNotFound)
	}
}

func TestSchedulerListTimersEmpty(t *testing.T) {
	stub := startStubVDR(t, func(cmd string) []string {
		return []string{"550 No timers defined"}
	})
	c := testClient(t, stub)
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	s := NewScheduler(c, logger)

	ids, err := s.ListTimers()
	if err != nil {
		t.Fatalf("ListTimers: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("ids = %v, want none", ids)
	}
}
