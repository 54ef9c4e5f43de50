// Package ws serves the agent over a websocket: one game per connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"halitebot.ai/internal/agent"
	"halitebot.ai/internal/persistence/archive"
	"halitebot.ai/internal/persistence/indexdb"
	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/tuning"
)

// PolicyFactory builds the policy for one game.
type PolicyFactory func(cfg agent.Config, logger *log.Logger) agent.Policy

// PlannerPolicy is the default factory.
func PlannerPolicy(cfg agent.Config, logger *log.Logger) agent.Policy {
	return agent.New(cfg, logger)
}

type Options struct {
	Tuning    tuning.Tuning
	NewPolicy PolicyFactory
	AgentName string

	// Optional sinks. An empty DataDir disables the turn log.
	DataDir   string
	Index     *indexdb.SQLiteIndex
	Validator *protocol.Validator

	HelloTimeout time.Duration
	ReadTimeout  time.Duration
}

type Server struct {
	opts Options
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if opts.NewPolicy == nil {
		opts.NewPolicy = PlannerPolicy
	}
	if opts.AgentName == "" {
		opts.AgentName = "halitebot"
	}
	if opts.HelloTimeout <= 0 {
		opts.HelloTimeout = 5 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 60 * time.Second
	}
	return &Server{
		opts: opts,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // engine runs locally
		},
	}
}

// game is the per-connection state. It is owned by the reader loop.
type game struct {
	id           string
	player       int
	size         int
	episodeSteps int
	spawnCost    float64
	tuning       tuning.Tuning
	replay       bool

	policy agent.Policy
	sess   *agent.Session
	turns  *persistlog.TurnLogger

	lastStep     int
	tuningLogged bool
}

func (g *game) close() {
	if g.turns != nil {
		_ = g.turns.Close()
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		g := s.handshake(conn)
		if g == nil {
			return
		}
		defer g.close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 8)
		writerDone := make(chan struct{})

		// Writer goroutine.
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		send := func(v any) {
			b, err := json.Marshal(v)
			if err != nil {
				s.log.Printf("game %s: marshal reply: %v", g.id, err)
				return
			}
			select {
			case out <- b:
			case <-ctx.Done():
			}
		}

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.log.Printf("game %s: read: %v", g.id, err)
				}
				break
			}
			reply, done := s.handle(g, msg)
			if reply != nil {
				send(reply)
			}
			if done {
				break
			}
		}

		// Let queued replies drain and the turn log flush before closing.
		close(out)
		<-writerDone
		g.close()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game over"),
			time.Now().Add(time.Second))
	}
}

func (s *Server) handshake(conn *websocket.Conn) *game {
	_ = conn.SetReadDeadline(time.Now().Add(s.opts.HelloTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		s.reject(conn, protocol.ErrGameNotStarted, "expected HELLO")
		return nil
	}
	if base.ProtocolVersion != protocol.Version {
		s.reject(conn, protocol.ErrProtoVersion, fmt.Sprintf("want protocol_version %s", protocol.Version))
		return nil
	}
	if err := s.validate(protocol.TypeHello, msg); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		s.reject(conn, protocol.ErrProtoBadRequest, err.Error())
		return nil
	}
	if hello.GameID == "" {
		s.reject(conn, protocol.ErrProtoBadRequest, "empty game_id")
		return nil
	}

	g, cfg := s.newGame(hello)
	g.policy = s.opts.NewPolicy(cfg, log.New(s.log.Writer(), s.log.Prefix()+"["+hello.GameID+"] ", s.log.Flags()))

	if s.opts.DataDir != "" {
		g.turns = persistlog.NewTurnLogger(persistlog.GameDir(s.opts.DataDir, g.id))
	}
	if !g.replay {
		if err := s.opts.Index.RecordGame(indexdb.GameRow{
			GameID:       g.id,
			Player:       g.player,
			Policy:       g.policy.Name(),
			Size:         g.size,
			EpisodeSteps: g.episodeSteps,
		}); err != nil {
			s.log.Printf("game %s: index: %v", g.id, err)
		}
	}

	if err := writeJSON(conn, protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		GameID:          g.id,
		AgentName:       s.opts.AgentName,
		Policy:          g.policy.Name(),
	}); err != nil {
		g.close()
		return nil
	}
	s.log.Printf("game %s: started as player %d with %s (replay=%v)", g.id, g.player, g.policy.Name(), g.replay)
	return g
}

// newGame applies the HELLO config over the server tuning.
func (s *Server) newGame(hello protocol.HelloMsg) (*game, agent.Config) {
	t := s.opts.Tuning
	if hello.Config.EpisodeSteps > 0 {
		t.EpisodeSteps = hello.Config.EpisodeSteps
	}
	if hello.Config.SpawnCost > 0 {
		t.SpawnCost = hello.Config.SpawnCost
	}
	g := &game{
		id:           hello.GameID,
		player:       hello.Player,
		size:         hello.Config.Size,
		episodeSteps: t.EpisodeSteps,
		spawnCost:    t.SpawnCost,
		tuning:       t,
		replay:       hello.Replay,
		sess:         agent.NewSession(),
		lastStep:     -1,
	}
	return g, agent.ConfigFromTuning(t)
}

// handle answers one message after the handshake. done ends the connection.
func (s *Server) handle(g *game, msg []byte) (reply any, done bool) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, "bad json", 0), false
	}
	if base.ProtocolVersion != protocol.Version {
		return protocol.NewError(protocol.ErrProtoVersion, fmt.Sprintf("want protocol_version %s", protocol.Version), 0), false
	}
	if err := s.validate(base.Type, msg); err != nil {
		return protocol.NewError(protocol.ErrProtoBadRequest, err.Error(), 0), false
	}

	switch base.Type {
	case protocol.TypeObs:
		var obs protocol.ObsMsg
		if err := json.Unmarshal(msg, &obs); err != nil {
			return protocol.NewError(protocol.ErrProtoBadRequest, err.Error(), 0), false
		}
		return s.turn(g, obs), false
	case protocol.TypeResult:
		var res protocol.ResultMsg
		if err := json.Unmarshal(msg, &res); err != nil {
			return protocol.NewError(protocol.ErrProtoBadRequest, err.Error(), 0), false
		}
		if res.GameID != g.id {
			return protocol.NewError(protocol.ErrInvalidTarget, fmt.Sprintf("result for game %q on game %q", res.GameID, g.id), 0), false
		}
		s.finish(g, res)
		return nil, true
	case protocol.TypeHello:
		return protocol.NewError(protocol.ErrBadRequest, "game already started", 0), false
	default:
		return protocol.NewError(protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type), 0), false
	}
}

func (s *Server) turn(g *game, obs protocol.ObsMsg) any {
	if obs.Step <= g.lastStep {
		return protocol.NewError(protocol.ErrStale, fmt.Sprintf("step %d after step %d", obs.Step, g.lastStep), obs.Step)
	}
	if obs.Step >= g.episodeSteps {
		return protocol.NewError(protocol.ErrGameOver, fmt.Sprintf("step %d beyond %d episode steps", obs.Step, g.episodeSteps), obs.Step)
	}
	g.lastStep = obs.Step

	started := time.Now()
	snap := agent.SnapshotFromObs(obs, g.size, g.episodeSteps)
	acts, err := s.decide(g, snap)
	if err != nil {
		s.log.Printf("game %s: step %d: %v", g.id, obs.Step, err)
		code := protocol.ErrBadRequest
		if errors.Is(err, errPanic) {
			code = protocol.ErrInternal
		}
		return protocol.NewError(code, err.Error(), obs.Step)
	}
	act := protocol.NewAct(obs.Step, acts)
	elapsed := time.Since(started).Microseconds()

	if g.turns != nil {
		rec := persistlog.TurnRecord{
			GameID:    g.id,
			Policy:    g.policy.Name(),
			Step:      obs.Step,
			Size:      g.size,
			Episode:   g.episodeSteps,
			SpawnCost: g.spawnCost,
			Obs:       obs,
			Act:       act,
			Tasks:     g.sess.TaskKinds(),
			ElapsedUs: elapsed,
		}
		if !g.tuningLogged {
			t := g.tuning
			rec.Tuning = &t
		}
		if err := g.turns.WriteTurn(rec); err != nil {
			s.log.Printf("game %s: turn log: %v", g.id, err)
		} else {
			g.tuningLogged = true
		}
	}
	if g.replay {
		return act
	}
	s.opts.Index.RecordTurn(indexdb.TurnRow{
		GameID:    g.id,
		Step:      obs.Step,
		Units:     len(obs.Player.Ships),
		Bases:     len(obs.Player.Shipyards),
		Held:      obs.Player.Halite,
		Act:       act,
		ElapsedUs: elapsed,
	})
	return act
}

var errPanic = errors.New("policy panic")

// decide runs the policy, turning a panic into an error so one bad turn does
// not take the connection down.
func (s *Server) decide(g *game, snap agent.Snapshot) (acts agent.Actions, err error) {
	defer func() {
		if r := recover(); r != nil {
			acts, err = nil, fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return g.policy.Turn(g.sess, snap)
}

func (s *Server) finish(g *game, res protocol.ResultMsg) {
	if g.replay {
		s.log.Printf("game %s: replay ended after %d turns, result not recorded", g.id, g.lastStep+1)
		return
	}
	_, _, out, err := indexdb.Score(res.Rewards, g.player)
	if err != nil {
		s.log.Printf("game %s: result: %v", g.id, err)
		return
	}
	if _, err := s.opts.Index.RecordResult(g.id, g.player, res.Rewards); err != nil {
		s.log.Printf("game %s: index: %v", g.id, err)
	}
	s.log.Printf("game %s: %s after %d turns (spawned=%d converted=%d)",
		g.id, out, g.lastStep+1, g.sess.Spawned, g.sess.Converted)

	if g.turns == nil {
		return
	}
	g.close()
	dir, err := archive.ArchiveGame(s.opts.DataDir, archive.GameMeta{
		GameID:  g.id,
		Player:  g.player,
		Policy:  g.policy.Name(),
		Turns:   g.lastStep + 1,
		Rewards: res.Rewards,
		Outcome: string(out),
	})
	if err != nil {
		s.log.Printf("game %s: archive: %v", g.id, err)
		return
	}
	s.log.Printf("game %s: archived to %s", g.id, dir)
}

func (s *Server) validate(typ string, raw []byte) error {
	if s.opts.Validator == nil {
		return nil
	}
	return s.opts.Validator.Validate(typ, raw)
}

func (s *Server) reject(conn *websocket.Conn, code, msg string) {
	_ = writeJSON(conn, protocol.NewError(code, msg, 0))
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
