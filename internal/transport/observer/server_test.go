package observer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"logisim.dev/internal/protocol"
	"logisim.dev/internal/sim/catalogs"
	"logisim.dev/internal/sim/factory"
)

func startFactory(t *testing.T) (*factory.Factory, *Server, *httptest.Server) {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	f := factory.New(factory.Config{TickRateHz: 50}, cats)
	srv := NewServer(f, nil, Options{})
	f.SetStatusPublisher(srv)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = f.Run(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/observer/bootstrap", srv.BootstrapHandler())
	mux.HandleFunc("/v1/observer/ws", srv.WSHandler())
	mux.HandleFunc("/v1/commands", srv.CommandHandler())
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-done
	})
	return f, srv, ts
}

func postCommand(t *testing.T, ts *httptest.Server, cmd protocol.CommandMsg) (int, protocol.CommandResultMsg) {
	t.Helper()
	cmd.Type = protocol.TypeCommand
	cmd.ProtocolVersion = protocol.Version
	b, _ := json.Marshal(cmd)
	resp, err := http.Post(ts.URL+"/v1/commands", "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	var res protocol.CommandResultMsg
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return resp.StatusCode, res
}

func TestCommandsAndBootstrap(t *testing.T) {
	_, _, ts := startFactory(t)

	code, res := postCommand(t, ts, protocol.CommandMsg{ReqID: "c1", Op: factory.OpCreate, Template: "generator_1", Recipe: "generator"})
	if code != http.StatusOK || !res.OK || res.Machine != 1 || res.ReqID != "c1" {
		t.Fatalf("create: status=%d res=%+v", code, res)
	}
	code, res = postCommand(t, ts, protocol.CommandMsg{Op: factory.OpCreate, Template: "miner_1", Recipe: "miner"})
	if code != http.StatusOK || res.Machine != 2 {
		t.Fatalf("create miner: status=%d res=%+v", code, res)
	}

	// Generators cannot feed ore.
	code, res = postCommand(t, ts, protocol.CommandMsg{Op: factory.OpConnect, Machine: 1, Target: 2, Item: "ore"})
	if code != http.StatusConflict || res.OK || res.Code != protocol.ErrNoFreePort {
		t.Fatalf("connect: status=%d res=%+v", code, res)
	}
	code, res = postCommand(t, ts, protocol.CommandMsg{Op: factory.OpDestroy, Machine: 99})
	if code != http.StatusConflict || res.Code != protocol.ErrUnknownMachine {
		t.Fatalf("destroy: status=%d res=%+v", code, res)
	}
	code, res = postCommand(t, ts, protocol.CommandMsg{Op: "TELEPORT"})
	if code != http.StatusBadRequest || res.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown op: status=%d res=%+v", code, res)
	}

	resp, err := http.Get(ts.URL + "/v1/observer/bootstrap")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	defer resp.Body.Close()
	var boot protocol.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode bootstrap: %v", err)
	}
	if boot.FactoryID != "plant_1" || len(boot.Machines) != 2 || boot.Catalogs.Items == "" || boot.Params.TickRateHz != 50 {
		t.Fatalf("bootstrap=%+v", boot)
	}
}

func TestWSStreamsFilteredStatus(t *testing.T) {
	_, srv, ts := startFactory(t)
	for _, tmpl := range []string{"generator_1", "conduit_1"} {
		recipe := strings.TrimSuffix(tmpl, "_1")
		if code, res := postCommand(t, ts, protocol.CommandMsg{Op: factory.OpCreate, Template: tmpl, Recipe: recipe}); code != http.StatusOK {
			t.Fatalf("create %s: %+v", tmpl, res)
		}
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := protocol.SubscribeMsg{Type: protocol.TypeSubscribe, ProtocolVersion: protocol.Version, Machines: []uint32{2}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var st protocol.StatusMsg
	if err := conn.ReadJSON(&st); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if st.Type != protocol.TypeStatus || st.Digest == "" {
		t.Fatalf("status=%+v", st)
	}
	if len(st.Machines) != 1 || st.Machines[0].ID != 2 || st.Machines[0].Template != "conduit_1" {
		t.Fatalf("filtered machines=%+v", st.Machines)
	}
	if srv.Stats().Sessions != 1 {
		t.Fatalf("stats=%+v", srv.Stats())
	}
}

func TestWSRejectsMissingSubscribe(t *testing.T) {
	_, _, ts := startFactory(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/observer/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.WriteJSON(map[string]string{"type": "HELLO"})
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("err=%v want policy violation close", err)
	}
}

func TestPublishStatusDropsWhenSessionBacklogged(t *testing.T) {
	srv := NewServer(nil, nil, Options{})
	sess := &session{id: "O1", out: make(chan []byte, 1)}
	srv.sessions[sess.id] = sess

	report := factory.TickReport{Tick: 1, Digest: "x"}
	srv.PublishStatus(report, nil)
	srv.PublishStatus(report, nil)
	st := srv.Stats()
	if st.FramesSent != 1 || st.FramesDropped != 1 {
		t.Fatalf("stats=%+v", st)
	}

	sess.apply(protocol.SubscribeMsg{EveryTicks: 5})
	<-sess.out
	srv.PublishStatus(factory.TickReport{Tick: 3}, nil)
	if len(sess.out) != 0 {
		t.Fatalf("frame sent off-interval")
	}
}
