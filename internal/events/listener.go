// Package events receives status notifications from the VDR-side forwarder
// as newline-delimited JSON over TCP and feeds them to the timeshift
// controller, serialized on a single dispatch goroutine.
package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/permashift/internal/metrics"
	"github.com/goodtune/permashift/internal/vdr"
)

// Event is one forwarder notification.
type Event struct {
	Type string `json:"type"` // channel | timer | recording | key

	// channel switch
	Channel int  `json:"channel,omitempty"`
	Live    bool `json:"live,omitempty"`

	// timer change
	Change string        `json:"change,omitempty"` // add | del | mod
	Timer  *TimerPayload `json:"timer,omitempty"`

	// recording state
	Name string `json:"name,omitempty"`
	File string `json:"file,omitempty"`
	On   bool   `json:"on,omitempty"`

	// user activity
	Key string `json:"key,omitempty"`
}

// TimerPayload is the timer snapshot carried by timer events.
type TimerPayload struct {
	ID        int    `json:"id"`
	Day       string `json:"day"` // YYYY-MM-DD
	Start     int    `json:"start"`
	Stop      int    `json:"stop"`
	Priority  int    `json:"priority"`
	Lifetime  int    `json:"lifetime"`
	Single    bool   `json:"single"`
	Recording bool   `json:"recording"`
}

func (p *TimerPayload) toTimer() *vdr.Timer {
	day, _ := time.ParseInLocation("2006-01-02", p.Day, time.Local)
	return &vdr.Timer{
		ID:          vdr.TimerID(p.ID),
		Day:         day,
		Start:       vdr.PackedTime(p.Start),
		Stop:        vdr.PackedTime(p.Stop),
		Priority:    p.Priority,
		Lifetime:    p.Lifetime,
		SingleEvent: p.Single,
		Recording:   p.Recording,
	}
}

// Handler consumes dispatched events. The controller implements it.
type Handler interface {
	OnChannelSwitch(number int, liveView bool)
	OnTimerChange(t *vdr.Timer, change vdr.TimerChange)
	OnRecordingStateChange(name, fileName string, on bool)
}

// Listener accepts forwarder connections and dispatches their events.
// Dispatch and the heartbeat run on one goroutine, so the handler never
// sees concurrent calls.
type Listener struct {
	addr      string
	handler   Handler
	heartbeat func()
	sensor    *Sensor
	prompter  *Prompter
	logger    zerolog.Logger

	ln       net.Listener
	events   chan Event
	calls    chan func()
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewListener wires a listener. heartbeat is called about once a second
// from the dispatch goroutine; sensor and prompter may be nil.
func NewListener(addr string, handler Handler, heartbeat func(),
	sensor *Sensor, prompter *Prompter, logger zerolog.Logger) *Listener {
	return &Listener{
		addr:      addr,
		handler:   handler,
		heartbeat: heartbeat,
		sensor:    sensor,
		prompter:  prompter,
		logger:    logger.With().Str("component", "events").Logger(),
		events:    make(chan Event, 256),
		calls:     make(chan func(), 8),
		stopChan:  make(chan struct{}),
	}
}

// SetListener sets a pre-created listener for systemd socket activation.
func (l *Listener) SetListener(ln net.Listener) {
	l.ln = ln
}

// Start binds the socket and runs the accept and dispatch loops.
func (l *Listener) Start() error {
	if l.ln == nil {
		ln, err := net.Listen("tcp", l.addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", l.addr, err)
		}
		l.ln = ln
	}
	l.logger.Info().Str("addr", l.ln.Addr().String()).Msg("Event listener started")

	l.wg.Add(2)
	go l.acceptLoop()
	go l.dispatchLoop()
	return nil
}

// Stop closes the socket and waits for the loops to drain.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
		if l.ln != nil {
			_ = l.ln.Close()
		}
	})
	l.wg.Wait()
	l.logger.Info().Msg("Event listener stopped")
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			select {
			case <-l.stopChan:
				return
			default:
				l.logger.Error().Err(err).Msg("Accept failed")
				return
			}
		}
		l.wg.Add(1)
		go l.readConn(conn)
	}
}

// readConn parses one forwarder connection. Key events short-circuit here
// so the activity sensor and a blocked prompt see them even while the
// dispatch goroutine is busy.
func (l *Listener) readConn(conn net.Conn) {
	defer l.wg.Done()
	defer conn.Close()

	remote := conn.RemoteAddr().String()
	l.logger.Debug().Str("remote", remote).Msg("Forwarder connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			l.logger.Warn().Err(err).Str("remote", remote).Msg("Discarding malformed event")
			continue
		}
		metrics.EventsReceived.WithLabelValues(ev.Type).Inc()

		if ev.Type == "key" {
			if l.sensor != nil {
				l.sensor.Touch()
			}
			if l.prompter != nil {
				l.prompter.notifyKey(ev.Key)
			}
			continue
		}

		select {
		case l.events <- ev:
		case <-l.stopChan:
			return
		}
	}
	l.logger.Debug().Str("remote", remote).Msg("Forwarder disconnected")
}

func (l *Listener) dispatchLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			if l.heartbeat != nil {
				l.heartbeat()
			}
		case ev := <-l.events:
			l.dispatch(ev)
		case fn := <-l.calls:
			fn()
		}
	}
}

// Do runs fn on the dispatch goroutine, serialized with event handling.
func (l *Listener) Do(fn func()) {
	select {
	case l.calls <- fn:
	case <-l.stopChan:
	}
}

func (l *Listener) dispatch(ev Event) {
	switch ev.Type {
	case "channel":
		l.handler.OnChannelSwitch(ev.Channel, ev.Live)
	case "timer":
		if ev.Timer == nil {
			l.logger.Warn().Msg("Timer event without timer payload")
			return
		}
		change, ok := parseChange(ev.Change)
		if !ok {
			l.logger.Warn().Str("change", ev.Change).Msg("Unknown timer change")
			return
		}
		l.handler.OnTimerChange(ev.Timer.toTimer(), change)
	case "recording":
		l.handler.OnRecordingStateChange(ev.Name, ev.File, ev.On)
	default:
		l.logger.Warn().Str("type", ev.Type).Msg("Unknown event type")
	}
}

func parseChange(s string) (vdr.TimerChange, bool) {
	switch s {
	case "add":
		return vdr.TimerAdded, true
	case "del":
		return vdr.TimerDeleted, true
	case "mod":
		return vdr.TimerModified, true
	default:
		return 0, false
	}
}
