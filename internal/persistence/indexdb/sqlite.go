package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"halitebot.ai/internal/protocol"
)

// SQLiteIndex is a queryable secondary index of played games. The compressed
// turn log stays the source of truth; turn rows are dropped when the writer
// falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTurnTotal atomic.Uint64
}

type reqKind int

const (
	reqTurn reqKind = iota + 1
	reqFlush
)

type req struct {
	kind reqKind

	turn TurnRow
	done chan struct{}
}

// GameRow is written once per HELLO.
type GameRow struct {
	GameID       string
	Player       int
	Policy       string
	Size         int
	EpisodeSteps int
}

// TurnRow summarizes one decided turn.
type TurnRow struct {
	GameID    string
	Step      int
	Units     int
	Bases     int
	Held      float64
	Act       protocol.ActMsg
	ElapsedUs int64
}

type Stats struct {
	QueueDepth    int
	QueueCapacity int
	DropTurnTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS games (
			game_id TEXT PRIMARY KEY,
			player INTEGER NOT NULL,
			policy TEXT NOT NULL,
			size INTEGER NOT NULL,
			episode_steps INTEGER NOT NULL,
			started_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS turns (
			game_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			units INTEGER NOT NULL,
			bases INTEGER NOT NULL,
			held REAL NOT NULL,
			actions INTEGER NOT NULL,
			elapsed_us INTEGER NOT NULL,
			act_json TEXT NOT NULL,
			PRIMARY KEY (game_id, step)
		);`,
		`CREATE TABLE IF NOT EXISTS results (
			game_id TEXT PRIMARY KEY,
			player INTEGER NOT NULL,
			reward REAL NOT NULL,
			best_other REAL NOT NULL,
			outcome TEXT NOT NULL,
			rewards_json TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_outcome ON results(outcome);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTurnTotal: s.dropTurnTotal.Load(),
	}
}

func (s *SQLiteIndex) RecordGame(g GameRow) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	if g.GameID == "" {
		return fmt.Errorf("game: empty id")
	}
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO games(game_id,player,policy,size,episode_steps,started_at) VALUES(?,?,?,?,?,?)`,
		g.GameID, g.Player, g.Policy, g.Size, g.EpisodeSteps, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// RecordTurn queues a turn row; it never blocks the caller.
func (s *SQLiteIndex) RecordTurn(row TurnRow) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqTurn, turn: row}:
	default:
		s.dropTurnTotal.Add(1)
	}
}

// Flush waits until every turn queued before the call is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordResult stores the final rewards of a game as seen by player.
func (s *SQLiteIndex) RecordResult(gameID string, player int, rewards []*float64) (Outcome, error) {
	if s == nil || s.closed.Load() {
		return "", nil
	}
	own, other, out, err := Score(rewards, player)
	if err != nil {
		return "", fmt.Errorf("game %s: %w", gameID, err)
	}
	raw, _ := json.Marshal(rewards)
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO results(game_id,player,reward,best_other,outcome,rewards_json,recorded_at) VALUES(?,?,?,?,?,?,?)`,
		gameID, player, own, other, string(out), string(raw), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Summary counts recorded results by outcome.
func (s *SQLiteIndex) Summary(ctx context.Context) (Rates, error) {
	var r Rates
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM results GROUP BY outcome`)
	if err != nil {
		return r, err
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return r, err
		}
		r.add(Outcome(outcome), n)
	}
	return r, rows.Err()
}

// TurnCount is the number of indexed turns of one game.
func (s *SQLiteIndex) TurnCount(ctx context.Context, gameID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE game_id=?`, gameID).Scan(&n)
	return n, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTurn, _ := s.db.Prepare(`INSERT OR REPLACE INTO turns(game_id,step,units,bases,held,actions,elapsed_us,act_json) VALUES(?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTurn != nil {
			_ = insertTurn.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
	}

	for r := range s.ch {
		switch r.kind {
		case reqFlush:
			commit()
			close(r.done)
			continue
		case reqTurn:
			begin()
			if tx == nil || insertTurn == nil {
				continue
			}
			t := r.turn
			b, _ := json.Marshal(t.Act)
			if _, err := tx.Stmt(insertTurn).Exec(
				t.GameID,
				t.Step,
				t.Units,
				t.Bases,
				t.Held,
				len(t.Act.Actions),
				t.ElapsedUs,
				string(b),
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		// Commit on batch size or once the queue drains, so synchronous
		// writers never wait on an idle open transaction.
		if opCount >= commitEvery || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
