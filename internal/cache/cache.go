// Package cache stores compiled program images in SQLite, keyed by a hash of
// the source text, the opcode table version and the compile mode.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/funvibe/funscript/internal/bytecode"
)

var log = commonlog.GetLogger("funscript.cache")

// ErrMiss is returned by Get when no usable entry exists.
var ErrMiss = errors.New("cache miss")

// Cache is a compiled-program store. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Entry describes one cached program.
type Entry struct {
	ID      string
	Key     string
	Name    string
	Mode    bytecode.Mode
	Size    int
	Hits    int
	Created time.Time
}

// Key hashes what a compiled image depends on.
func Key(source string, mode bytecode.Mode) string {
	h := sha256.New()
	h.Write([]byte{bytecode.TableVersion, byte(mode)})
	h.Write([]byte(source))
	return hex.EncodeToString(h.Sum(nil))
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory store.
func Open(path string) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	// one connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS programs (
		key     TEXT PRIMARY KEY,
		id      TEXT NOT NULL,
		name    TEXT NOT NULL,
		mode    INTEGER NOT NULL,
		image   BLOB NOT NULL,
		hits    INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}
	log.Debugf("opened %s", path)
	return &Cache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path is the database file.
func (c *Cache) Path() string { return c.path }

// Get loads and decodes the program stored under key. Entries that no
// longer decode are dropped and reported as misses.
func (c *Cache) Get(key string) (*bytecode.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var image []byte
	err := c.db.QueryRow("SELECT image FROM programs WHERE key = ?", key).Scan(&image)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("querying program: %w", err)
	}
	prog, err := bytecode.Unmarshal(image)
	if err != nil {
		log.Warningf("dropping %s: %s", short(key), err)
		if _, derr := c.db.Exec("DELETE FROM programs WHERE key = ?", key); derr != nil {
			return nil, fmt.Errorf("dropping stale program: %w", derr)
		}
		return nil, ErrMiss
	}
	if _, err := c.db.Exec("UPDATE programs SET hits = hits + 1 WHERE key = ?", key); err != nil {
		return nil, fmt.Errorf("counting hit: %w", err)
	}
	log.Debugf("hit %s", short(key))
	return prog, nil
}

// Put stores prog under key, replacing any previous entry, and returns the
// new entry's id.
func (c *Cache) Put(key, name string, prog *bytecode.Program) (string, error) {
	image, err := prog.Marshal()
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO programs (key, id, name, mode, image, hits, created) VALUES (?, ?, ?, ?, ?, 0, ?)",
		key, id, name, int(prog.Mode), image, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("saving program: %w", err)
	}
	log.Debugf("stored %s as %s (%d bytes)", short(key), id, len(image))
	return id, nil
}

// Entries lists the cached programs, newest first.
func (c *Cache) Entries() ([]Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rows, err := c.db.Query("SELECT id, key, name, mode, length(image), hits, created FROM programs ORDER BY created DESC, rowid DESC")
	if err != nil {
		return nil, fmt.Errorf("listing programs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var mode int
		var created int64
		if err := rows.Scan(&e.ID, &e.Key, &e.Name, &mode, &e.Size, &e.Hits, &created); err != nil {
			return nil, fmt.Errorf("reading program row: %w", err)
		}
		e.Mode = bytecode.Mode(mode)
		e.Created = time.Unix(created, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Clear removes every entry and returns how many there were.
func (c *Cache) Clear() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.db.Exec("DELETE FROM programs")
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	return res.RowsAffected()
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
