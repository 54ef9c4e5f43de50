package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	persistlog "halitebot.ai/internal/persistence/log"
	"halitebot.ai/internal/protocol"
)

// probe plays the engine side against a running agent, feeding it the
// observations of a recorded game.
func main() {
	var (
		url     = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		gameDir = flag.String("game", "", "game dir containing turns-*.jsonl.zst")
		gameID  = flag.String("game_id", "", "game id to announce (default: recorded id + \"-probe\")")
		player  = flag.Int("player", 0, "player index to announce")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	if *gameDir == "" {
		fmt.Fprintln(os.Stderr, "missing -game")
		os.Exit(2)
	}
	turns, err := persistlog.ReadGame(*gameDir)
	if err != nil {
		logger.Fatalf("read game: %v", err)
	}

	id := *gameID
	if id == "" {
		id = turns[0].GameID + "-probe"
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(helloFor(id, *player, turns[0])); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var w protocol.WelcomeMsg
	if err := readTyped(conn, protocol.TypeWelcome, &w); err != nil {
		logger.Fatalf("WELCOME: %v", err)
	}
	logger.Printf("WELCOME game_id=%s agent=%s policy=%s", w.GameID, w.AgentName, w.Policy)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var diverged int
	for _, rec := range turns {
		select {
		case <-stop:
			return
		default:
		}

		started := time.Now()
		if err := conn.WriteJSON(rec.Obs); err != nil {
			logger.Fatalf("send OBS %d: %v", rec.Step, err)
		}
		var act protocol.ActMsg
		if err := readTyped(conn, protocol.TypeAct, &act); err != nil {
			logger.Fatalf("step %d: %v", rec.Step, err)
		}
		same := sameActions(act.Actions, rec.Act.Actions)
		if !same {
			diverged++
		}
		logger.Printf("step=%d actions=%d rtt=%s recorded_match=%v", act.Step, len(act.Actions), time.Since(started).Round(time.Microsecond), same)
	}

	// No rewards to report: end the session with a close frame, not a RESULT.
	if err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay done"),
		time.Now().Add(time.Second)); err != nil {
		logger.Printf("close: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	logger.Printf("done: turns=%d diverged=%d", len(turns), diverged)
}

// helloFor announces a replay of the game first recorded in rec, with the
// recorded game config.
func helloFor(id string, player int, rec persistlog.TurnRecord) protocol.HelloMsg {
	return protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		GameID:          id,
		Player:          player,
		Config: protocol.GameConfig{
			Size:         rec.Size,
			EpisodeSteps: rec.Episode,
			SpawnCost:    rec.SpawnCost,
		},
		Replay: true,
	}
}

// readTyped reads one message; an ERROR reply is returned as an error.
func readTyped(conn *websocket.Conn, want string, v any) error {
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return err
	}
	if base.Type == protocol.TypeError {
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		return fmt.Errorf("%s: %s", e.Code, e.Message)
	}
	if base.Type != want {
		return fmt.Errorf("got %s want %s", base.Type, want)
	}
	return json.Unmarshal(msg, v)
}

func sameActions(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
