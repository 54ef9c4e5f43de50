package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	persistlog "halitebot.ai/internal/persistence/log"
)

type GameMeta struct {
	GameID    string     `json:"game_id"`
	Player    int        `json:"player"`
	Policy    string     `json:"policy"`
	Turns     int        `json:"turns"`
	Rewards   []*float64 `json:"rewards"`
	Outcome   string     `json:"outcome"`
	Files     []string   `json:"files"`
	CreatedAt string     `json:"created_at"`
}

// ArchiveGame copies a finished game's turn log into
// `dataDir/archives/<outcome>/<game_id>/` next to a meta.json, so games can be
// picked out by result for replay. It returns the archive directory.
func ArchiveGame(dataDir string, meta GameMeta) (string, error) {
	if meta.GameID == "" || meta.Outcome == "" {
		return "", fmt.Errorf("archive: game id and outcome required")
	}
	src := persistlog.GameDir(dataDir, meta.GameID)
	files, err := persistlog.ListTurnFiles(src)
	if err != nil {
		return "", err
	}

	archiveDir := filepath.Join(dataDir, "archives", meta.Outcome, meta.GameID)
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", err
	}
	meta.Files = meta.Files[:0]
	for _, path := range files {
		dst := filepath.Join(archiveDir, filepath.Base(path))
		if err := copyFile(path, dst); err != nil {
			return "", err
		}
		meta.Files = append(meta.Files, filepath.Base(dst))
	}
	meta.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return "", err
	}
	return archiveDir, nil
}

// ReadMeta loads the meta.json of an archived game.
func ReadMeta(archiveDir string) (GameMeta, error) {
	var m GameMeta
	b, err := os.ReadFile(filepath.Join(archiveDir, "meta.json"))
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(b, &m)
	return m, err
}

// List loads the meta.json of every archived game under dataDir, ordered by
// outcome then game id.
func List(dataDir string) ([]GameMeta, error) {
	paths, err := filepath.Glob(filepath.Join(dataDir, "archives", "*", "*", "meta.json"))
	if err != nil {
		return nil, err
	}
	out := make([]GameMeta, 0, len(paths))
	for _, path := range paths {
		m, err := ReadMeta(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
