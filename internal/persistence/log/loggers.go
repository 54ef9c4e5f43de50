package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"halitebot.ai/internal/protocol"
	"halitebot.ai/internal/tuning"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TurnRecord is one decided turn: what the engine showed and what we answered.
// Tuning is the effective tuning of the game, set on its first record only.
// Tasks holds each unit's task kind after the turn.
type TurnRecord struct {
	GameID    string            `json:"game_id"`
	Policy    string            `json:"policy"`
	Step      int               `json:"step"`
	Size      int               `json:"size"`
	Episode   int               `json:"episode_steps"`
	SpawnCost float64           `json:"spawn_cost"`
	Tuning    *tuning.Tuning    `json:"tuning,omitempty"`
	Obs       protocol.ObsMsg   `json:"obs"`
	Act       protocol.ActMsg   `json:"act"`
	Tasks     map[string]string `json:"tasks,omitempty"`
	ElapsedUs int64             `json:"elapsed_us"`
}

// TurnLogger writes one compressed JSONL entry per turn of one game.
type TurnLogger struct{ w *JSONLZstdWriter }

// GameDir is where a game's turn log lives under dataDir.
func GameDir(dataDir, gameID string) string {
	return filepath.Join(dataDir, "games", gameID)
}

func NewTurnLogger(gameDir string) *TurnLogger {
	return &TurnLogger{w: NewJSONLZstdWriter(gameDir, "turns")}
}

func (l *TurnLogger) WriteTurn(v TurnRecord) error { return l.w.Write(v) }
func (l *TurnLogger) Close() error                 { return l.w.Close() }
