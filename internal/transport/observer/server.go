package observer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"logisim.dev/internal/protocol"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
	"logisim.dev/internal/sim/factory/kernel/model"
)

// Server streams STATUS frames to websocket observers and accepts
// construction commands over HTTP. It implements factory.StatusPublisher.
type Server struct {
	factory     *factory.Factory
	log         *log.Logger
	allowRemote bool

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu       sync.Mutex
	sessions map[string]*session

	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
}

type session struct {
	id  string
	out chan []byte

	mu     sync.Mutex
	filter map[uint32]bool
	every  int
}

type Options struct {
	// AllowRemote serves non-loopback clients. Off by default.
	AllowRemote bool
}

type Stats struct {
	Sessions      int
	FramesSent    uint64
	FramesDropped uint64
}

func NewServer(f *factory.Factory, logger *log.Logger, opts Options) *Server {
	return &Server{
		factory:     f,
		log:         logger,
		allowRemote: opts.AllowRemote,
		sessions:    map[string]*session{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Stats() Stats {
	s.mu.Lock()
	n := len(s.sessions)
	s.mu.Unlock()
	return Stats{Sessions: n, FramesSent: s.framesSent.Load(), FramesDropped: s.framesDropped.Load()}
}

// PublishStatus runs on the sim goroutine; slow sessions lose frames.
func (s *Server) PublishStatus(report factory.TickReport, statuses []factory.MachineStatus) {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	if len(sessions) == 0 {
		return
	}

	var full []byte
	for _, sess := range sessions {
		sess.mu.Lock()
		every, filter := sess.every, sess.filter
		sess.mu.Unlock()
		if every > 1 && report.Tick%uint64(every) != 0 {
			continue
		}

		var b []byte
		if len(filter) == 0 {
			if full == nil {
				full = marshalStatus(report, statuses, nil)
			}
			b = full
		} else {
			b = marshalStatus(report, statuses, filter)
		}
		select {
		case sess.out <- b:
			s.framesSent.Add(1)
		default:
			s.framesDropped.Add(1)
		}
	}
}

func marshalStatus(report factory.TickReport, statuses []factory.MachineStatus, filter map[uint32]bool) []byte {
	msg := protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            report.Tick,
		Transfers:       report.Transfers,
		Warnings:        report.Warnings,
		Digest:          report.Digest,
		Machines:        make([]protocol.MachineState, 0, len(statuses)),
	}
	for _, st := range statuses {
		if filter != nil && !filter[st.ID] {
			continue
		}
		msg.Machines = append(msg.Machines, machineState(st))
	}
	b, _ := json.Marshal(msg)
	return b
}

func machineState(st factory.MachineStatus) protocol.MachineState {
	ms := protocol.MachineState{
		ID:              st.ID,
		Template:        st.Template,
		Recipe:          st.Recipe,
		Processing:      st.Processing,
		Disabled:        st.Disabled,
		Tags:            st.Tags,
		PercentComplete: st.PercentComplete,
		Stored:          st.Stored,
	}
	if ms.Tags == nil {
		ms.Tags = []string{}
	}
	for _, b := range st.Bins {
		ms.Bins = append(ms.Bins, protocol.BinState{Props: b.Props, Current: b.Current, Capacity: b.Capacity})
	}
	return ms
}

func (s *Server) allowed(r *http.Request) bool {
	return s.allowRemote || isLoopbackRemote(r.RemoteAddr)
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		cfg := s.factory.Config()
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			FactoryID:       cfg.ID,
			Params: protocol.FactoryParams{
				TickRateHz:         cfg.TickRateHz,
				Workers:            cfg.Workers,
				SnapshotEveryTicks: cfg.SnapshotEveryTicks,
				StatusEveryTicks:   cfg.StatusEveryTicks,
			},
		}
		if cats := s.factory.Catalogs(); cats != nil {
			resp.Catalogs = catalogDigests(cats)
			resp.ItemPalette = cats.Items.Palette
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		err := s.factory.Do(ctx, func(f *factory.Factory) {
			resp.Tick = f.CurrentTick()
			for _, st := range f.Statuses() {
				resp.Machines = append(resp.Machines, machineState(st))
			}
		})
		if err != nil {
			http.Error(rw, "factory busy", http.StatusServiceUnavailable)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}

func catalogDigests(c *catalogs.Catalogs) protocol.CatalogDigests {
	return protocol.CatalogDigests{Items: c.Items.Digest, Recipes: c.Recipes.Digest, Machines: c.Machines.Digest}
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sess := &session{
			id:  fmt.Sprintf("O%d", s.nextID.Add(1)),
			out: make(chan []byte, 16),
		}
		sess.apply(sub)
		s.mu.Lock()
		s.sessions[sess.id] = sess
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.sessions, sess.id)
			s.mu.Unlock()
		}()
		if s.log != nil {
			s.log.Printf("observer %s subscribed machines=%d every=%d", sess.id, len(sub.Machines), sub.EveryTicks)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-sess.out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				sess.apply(sub)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(b []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(b, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	if sub.EveryTicks < 0 {
		sub.EveryTicks = 0
	}
	if sub.EveryTicks > 10000 {
		sub.EveryTicks = 10000
	}
	return sub, true
}

func (sess *session) apply(sub protocol.SubscribeMsg) {
	var filter map[uint32]bool
	if len(sub.Machines) > 0 {
		filter = make(map[uint32]bool, len(sub.Machines))
		for _, id := range sub.Machines {
			filter[id] = true
		}
	}
	sess.mu.Lock()
	sess.filter = filter
	sess.every = sub.EveryTicks
	sess.mu.Unlock()
}

// CommandHandler applies one construction command between ticks.
func (s *Server) CommandHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(r) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		res := protocol.CommandResultMsg{Type: protocol.TypeCommandResult, ProtocolVersion: protocol.Version}
		var cmd protocol.CommandMsg
		if err := json.NewDecoder(http.MaxBytesReader(rw, r.Body, 64*1024)).Decode(&cmd); err != nil ||
			cmd.Type != protocol.TypeCommand || cmd.ProtocolVersion != protocol.Version {
			res.Code = protocol.ErrProtoBadRequest
			res.Message = "expected COMMAND"
			writeResult(rw, http.StatusBadRequest, res)
			return
		}
		res.ReqID = cmd.ReqID

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		var cmdErr error
		err := s.factory.Do(ctx, func(f *factory.Factory) {
			var id model.MachineID
			id, cmdErr = Execute(f, cmd)
			res.Machine = uint32(id)
			res.Tick = f.CurrentTick()
		})
		if err != nil {
			res.Code = protocol.ErrBusy
			res.Message = err.Error()
			writeResult(rw, http.StatusServiceUnavailable, res)
			return
		}
		if cmdErr != nil {
			res.Code = ErrorCode(cmdErr)
			res.Message = cmdErr.Error()
			status := http.StatusConflict
			if res.Code == protocol.ErrBadRequest {
				status = http.StatusBadRequest
			}
			writeResult(rw, status, res)
			return
		}
		res.OK = true
		writeResult(rw, http.StatusOK, res)
	}
}

func writeResult(rw http.ResponseWriter, status int, res protocol.CommandResultMsg) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(res)
}

var errUnknownOp = errors.New("unknown op")

// Execute maps a command onto the construction API. The returned id is the
// machine the command created or addressed.
func Execute(f *factory.Factory, cmd protocol.CommandMsg) (model.MachineID, error) {
	id := model.MachineID(cmd.Machine)
	switch cmd.Op {
	case factory.OpCreate:
		return f.CreateMachine(cmd.Template, cmd.Recipe)
	case factory.OpAssign:
		return id, f.AssignRecipe(id, cmd.Recipe)
	case factory.OpConnect:
		return id, f.Connect(id, model.MachineID(cmd.Target), cmd.Item)
	case factory.OpDestroy:
		return id, f.Destroy(id)
	case factory.OpDisable:
		return id, f.SetDisabled(id, cmd.Disabled)
	case factory.OpInject:
		return id, f.Inject(id, cmd.Item, cmd.Quantity)
	default:
		return id, fmt.Errorf("%w: %q", errUnknownOp, cmd.Op)
	}
}

func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errUnknownOp), errors.Is(err, factory.ErrBadQuantity):
		return protocol.ErrBadRequest
	case errors.Is(err, factory.ErrUnknownMachine):
		return protocol.ErrUnknownMachine
	case errors.Is(err, factory.ErrUnknownTemplate):
		return protocol.ErrUnknownTemplate
	case errors.Is(err, factory.ErrUnknownRecipe):
		return protocol.ErrUnknownRecipe
	case errors.Is(err, catalogs.ErrUnknownItem):
		return protocol.ErrUnknownItem
	case errors.Is(err, factory.ErrIncompatibleRecipe):
		return protocol.ErrIncompatible
	case errors.Is(err, factory.ErrNoFreePort):
		return protocol.ErrNoFreePort
	default:
		return protocol.ErrInternal
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
