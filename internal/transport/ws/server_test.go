package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"halitebot.ai/internal/persistence/archive"
	"halitebot.ai/internal/persistence/indexdb"
	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/tuning"
)

type testConn struct {
	t *testing.T
	c *websocket.Conn
}

func dial(t *testing.T, srv *httptest.Server) *testConn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return &testConn{t: t, c: c}
}

func (tc *testConn) send(v any) {
	tc.t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		tc.t.Fatalf("marshal: %v", err)
	}
	if err := tc.c.WriteMessage(websocket.TextMessage, b); err != nil {
		tc.t.Fatalf("write: %v", err)
	}
}

func (tc *testConn) sendRaw(s string) {
	tc.t.Helper()
	if err := tc.c.WriteMessage(websocket.TextMessage, []byte(s)); err != nil {
		tc.t.Fatalf("write: %v", err)
	}
}

// recv reads one message, checks its type and decodes it into v.
func (tc *testConn) recv(wantType string, v any) {
	tc.t.Helper()
	_ = tc.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := tc.c.ReadMessage()
	if err != nil {
		tc.t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		tc.t.Fatalf("decode: %v", err)
	}
	if base.Type != wantType {
		tc.t.Fatalf("got %s want %s: %s", base.Type, wantType, msg)
	}
	if v != nil {
		if err := json.Unmarshal(msg, v); err != nil {
			tc.t.Fatalf("unmarshal: %v", err)
		}
	}
}

func (tc *testConn) expectError(code string) {
	tc.t.Helper()
	var e protocol.ErrorMsg
	tc.recv(protocol.TypeError, &e)
	if e.Code != code {
		tc.t.Fatalf("error code=%s want %s (%s)", e.Code, code, e.Message)
	}
}

func hello(id string) protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		GameID:          id,
		Player:          0,
		Config:          protocol.GameConfig{Size: 5, EpisodeSteps: 20, SpawnCost: 500},
	}
}

func obs(step int, held float64, yards map[string]int, ships map[string]protocol.ShipObs) protocol.ObsMsg {
	halite := make([]float64, 25)
	halite[12] = 300
	return protocol.ObsMsg{
		Type:            protocol.TypeObs,
		ProtocolVersion: protocol.Version,
		Step:            step,
		Player:          protocol.PlayerObs{Halite: held, Shipyards: yards, Ships: ships},
		Halite:          halite,
	}
}

func newTestServer(t *testing.T, opts Options) *httptest.Server {
	t.Helper()
	if opts.Tuning.EpisodeSteps == 0 {
		opts.Tuning = tuning.Defaults()
	}
	v, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	opts.Validator = v
	srv := httptest.NewServer(NewServer(opts, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_PlaysOneGame(t *testing.T) {
	dataDir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	srv := newTestServer(t, Options{DataDir: dataDir, Index: idx})
	c := dial(t, srv)

	c.send(hello("g1"))
	var w protocol.WelcomeMsg
	c.recv(protocol.TypeWelcome, &w)
	if w.GameID != "g1" || w.Policy != "planner" {
		t.Fatalf("welcome=%+v", w)
	}

	c.send(obs(0, 600, map[string]int{"b1": 0}, map[string]protocol.ShipObs{}))
	var act protocol.ActMsg
	c.recv(protocol.TypeAct, &act)
	if act.Step != 0 || act.Actions["b1"] != protocol.ActionSpawn {
		t.Fatalf("act=%+v want b1 SPAWN", act)
	}

	c.send(obs(1, 100, map[string]int{"b1": 0}, map[string]protocol.ShipObs{"u1": {Index: 0}}))
	act = protocol.ActMsg{}
	c.recv(protocol.TypeAct, &act)
	if act.Step != 1 || act.Actions == nil {
		t.Fatalf("act=%+v", act)
	}
	for id, tok := range act.Actions {
		if _, err := protocol.ParseAction(tok); err != nil || id != "u1" {
			t.Fatalf("bad action %s=%s: %v", id, tok, err)
		}
	}

	win, lose := 900.0, 100.0
	c.send(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		GameID:          "g1",
		Rewards:         []*float64{&win, &lose},
	})
	_ = c.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := c.c.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after RESULT, got %v", err)
	}

	turns, err := persistlog.ReadGame(persistlog.GameDir(dataDir, "g1"))
	if err != nil {
		t.Fatalf("ReadGame: %v", err)
	}
	if len(turns) != 2 || turns[0].Act.Actions["b1"] != protocol.ActionSpawn {
		t.Fatalf("turn log=%+v", turns)
	}
	if tu := turns[0].Tuning; tu == nil || tu.EpisodeSteps != 20 || tu.SpawnCost != 500 || tu.Planner.Depth != tuning.Defaults().Planner.Depth {
		t.Fatalf("first record tuning=%+v", turns[0].Tuning)
	}
	if turns[1].Tuning != nil {
		t.Fatalf("tuning repeated on step 1")
	}
	if turns[1].Tasks["u1"] == "" {
		t.Fatalf("step 1 tasks=%v", turns[1].Tasks)
	}

	meta, err := archive.ReadMeta(filepath.Join(dataDir, "archives", "win", "g1"))
	if err != nil {
		t.Fatalf("archive meta: %v", err)
	}
	if meta.Turns != 2 || meta.Policy != "planner" {
		t.Fatalf("archive meta=%+v", meta)
	}

	ctx := context.Background()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if n, _ := idx.TurnCount(ctx, "g1"); n != 2 {
		t.Fatalf("indexed turns=%d want 2", n)
	}
	r, err := idx.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if r.Games != 1 || r.Wins != 1 {
		t.Fatalf("summary=%+v", r)
	}
}

func TestServer_ReplayIsNotScored(t *testing.T) {
	dataDir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dataDir, "index.sqlite"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer idx.Close()

	srv := newTestServer(t, Options{DataDir: dataDir, Index: idx})
	c := dial(t, srv)

	h := hello("g1-replay")
	h.Replay = true
	c.send(h)
	c.recv(protocol.TypeWelcome, nil)

	c.send(obs(0, 600, map[string]int{"b1": 0}, map[string]protocol.ShipObs{}))
	c.recv(protocol.TypeAct, nil)

	zero := 0.0
	c.send(protocol.ResultMsg{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		GameID:          "g1-replay",
		Rewards:         []*float64{&zero, &zero},
	})
	_ = c.c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := c.c.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close after RESULT, got %v", err)
	}

	ctx := context.Background()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	r, err := idx.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if r.Games != 0 {
		t.Fatalf("replay counted in summary: %+v", r)
	}
	if n, _ := idx.TurnCount(ctx, "g1-replay"); n != 0 {
		t.Fatalf("replay turns indexed: %d", n)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("replay archived: %v", err)
	}
	turns, err := persistlog.ReadGame(persistlog.GameDir(dataDir, "g1-replay"))
	if err != nil || len(turns) != 1 {
		t.Fatalf("replay turn log: %d turns, %v", len(turns), err)
	}
}

func TestServer_RequiresHello(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := dial(t, srv)
	c.send(obs(0, 0, map[string]int{}, map[string]protocol.ShipObs{}))
	c.expectError(protocol.ErrGameNotStarted)
}

func TestServer_RejectsProtocolVersion(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := dial(t, srv)
	h := hello("g1")
	h.ProtocolVersion = "0.9"
	c.send(h)
	c.expectError(protocol.ErrProtoVersion)
}

func TestServer_TurnErrors(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := dial(t, srv)
	c.send(hello("g1"))
	c.recv(protocol.TypeWelcome, nil)

	c.sendRaw(`{"type":"OBS","protocol_version":"1.0","step":0,"player":{"halite":0,"shipyards":{},"ships":{"u1":[3]}},"halite":[0]}`)
	c.expectError(protocol.ErrProtoBadRequest)

	c.sendRaw(`not json`)
	c.expectError(protocol.ErrProtoBadRequest)

	o := obs(3, 0, map[string]int{"b1": 0}, map[string]protocol.ShipObs{})
	o.ProtocolVersion = "2.0"
	c.send(o)
	c.expectError(protocol.ErrProtoVersion)

	c.send(obs(3, 0, map[string]int{"b1": 0}, map[string]protocol.ShipObs{}))
	c.recv(protocol.TypeAct, nil)

	c.send(obs(3, 0, map[string]int{"b1": 0}, map[string]protocol.ShipObs{}))
	c.expectError(protocol.ErrStale)

	c.send(obs(20, 0, map[string]int{"b1": 0}, map[string]protocol.ShipObs{}))
	c.expectError(protocol.ErrGameOver)

	bad := obs(4, 0, map[string]int{"b1": 0}, map[string]protocol.ShipObs{})
	bad.Halite = bad.Halite[:24]
	c.send(bad)
	c.expectError(protocol.ErrBadRequest)

	c.send(hello("g2"))
	c.expectError(protocol.ErrBadRequest)
}
