package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// diskStore is the durable tier: one file per artifact under dir/data plus
// a SQLite index at dir/index.db holding size, cost and access metadata.
//
// The index uses a write-ahead log with a single connection. Artifact files
// are written to a temporary name and renamed into place before the index
// row is committed, so a crash leaves at worst an orphan file, which
// reconcile removes on the next start.
type diskStore struct {
	db        *sql.DB
	dir       string
	dataDir   string
	maxBytes  int64
	done      chan struct{}
	closeOnce sync.Once

	// mu serializes writers so capacity enforcement sees a consistent total.
	mu sync.Mutex

	getStmt    *sql.Stmt
	touchStmt  *sql.Stmt
	putStmt    *sql.Stmt
	deleteStmt *sql.Stmt
	usageStmt  *sql.Stmt
	victimStmt *sql.Stmt
}

// diskRow is one index row.
type diskRow struct {
	key         uint64
	meaning     string
	size        int64
	cost        int64
	accessCount uint32
	createdAt   time.Time
}

type diskConfig struct {
	Dir                string
	MaxBytes           int64
	BusyTimeout        time.Duration
	CheckpointInterval time.Duration
}

func openDiskStore(cfg diskConfig) (*diskStore, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("disk path cannot be empty")
	}
	if cfg.MaxBytes <= 0 {
		return nil, fmt.Errorf("disk capacity must be positive")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	dataDir := filepath.Join(cfg.Dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		filepath.Join(cfg.Dir, "index.db"), cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &diskStore{
		db:       db,
		dir:      cfg.Dir,
		dataDir:  dataDir,
		maxBytes: cfg.MaxBytes,
		done:     make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		s.closeStatements()
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go s.checkpointLoop(cfg.CheckpointInterval)

	return s, nil
}

func (s *diskStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		key TEXT PRIMARY KEY,
		meaning TEXT NOT NULL,
		size INTEGER NOT NULL,
		cost INTEGER NOT NULL,
		access_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		last_access INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_eviction ON entries(cost DESC, last_access ASC);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *diskStore) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT meaning, size, cost, access_count, created_at
		FROM entries
		WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.touchStmt, err = s.db.Prepare(`
		UPDATE entries
		SET access_count = access_count + 1, last_access = ?
		WHERE key = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare touch statement: %w", err)
	}

	s.putStmt, err = s.db.Prepare(`
		INSERT INTO entries (key, meaning, size, cost, access_count, created_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			meaning = excluded.meaning,
			size = excluded.size,
			cost = excluded.cost,
			access_count = excluded.access_count,
			created_at = excluded.created_at,
			last_access = excluded.last_access
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM entries WHERE key = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.usageStmt, err = s.db.Prepare(`SELECT COALESCE(SUM(size), 0), COUNT(*) FROM entries`)
	if err != nil {
		return fmt.Errorf("failed to prepare usage statement: %w", err)
	}

	s.victimStmt, err = s.db.Prepare(`
		SELECT key, size
		FROM entries
		WHERE key != ?
		ORDER BY cost DESC, last_access ASC
		LIMIT 32
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare victim statement: %w", err)
	}

	return nil
}

// keyString is the index and file name form of a key.
func keyString(key uint64) string {
	return fmt.Sprintf("%016x", key)
}

func (s *diskStore) path(key uint64) string {
	name := keyString(key)
	return filepath.Join(s.dataDir, name[:2], name+".bin")
}

// Get loads an artifact. A row whose file has disappeared is removed and
// reported as a miss.
func (s *diskStore) Get(ctx context.Context, key uint64) (*diskRow, []byte, error) {
	k := keyString(key)

	var (
		row       = diskRow{key: key}
		createdAt int64
	)
	err := s.getStmt.QueryRowContext(ctx, k).Scan(&row.meaning, &row.size, &row.cost, &row.accessCount, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load index row: %w", err)
	}
	row.createdAt = time.Unix(0, createdAt)

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("cache file missing, dropping index row", "key", k)
		_, _ = s.deleteStmt.ExecContext(ctx, k)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read cache file: %w", err)
	}

	if _, err := s.touchStmt.ExecContext(ctx, time.Now().UnixNano(), k); err != nil {
		slog.Debug("failed to update cache access time", "key", k, "error", err)
	}
	row.accessCount++
	return &row, data, nil
}

// Put writes an artifact and evicts other entries until the tier fits its
// capacity. Artifacts larger than the whole tier are not stored. It returns
// the number of evicted entries.
func (s *diskStore) Put(ctx context.Context, row diskRow, data []byte) (int, error) {
	if int64(len(data)) > s.maxBytes {
		return 0, fmt.Errorf("artifact of %d bytes exceeds disk capacity %d", len(data), s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(row.key)
	if err := writeFileAtomic(path, data); err != nil {
		return 0, err
	}

	now := time.Now().UnixNano()
	_, err := s.putStmt.ExecContext(ctx,
		keyString(row.key),
		row.meaning,
		int64(len(data)),
		row.cost,
		row.accessCount,
		row.createdAt.UnixNano(),
		now,
	)
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("failed to save index row: %w", err)
	}

	return s.enforceCapacityLocked(ctx, row.key)
}

// enforceCapacityLocked evicts the highest-cost, least recently accessed
// entries, never keep, until the total size fits. Caller must hold mu.
func (s *diskStore) enforceCapacityLocked(ctx context.Context, keep uint64) (int, error) {
	evicted := 0
	for {
		total, _, err := s.usage(ctx)
		if err != nil {
			return evicted, err
		}
		if total <= s.maxBytes {
			return evicted, nil
		}

		victims, err := s.victims(ctx, keyString(keep))
		if err != nil {
			return evicted, err
		}
		if len(victims) == 0 {
			return evicted, nil
		}

		for _, v := range victims {
			if total <= s.maxBytes {
				break
			}
			if err := s.removeLocked(ctx, v.key); err != nil {
				return evicted, err
			}
			total -= v.size
			evicted++
		}
	}
}

type victim struct {
	key  string
	size int64
}

func (s *diskStore) victims(ctx context.Context, keep string) ([]victim, error) {
	rows, err := s.victimStmt.QueryContext(ctx, keep)
	if err != nil {
		return nil, fmt.Errorf("failed to select eviction victims: %w", err)
	}
	defer rows.Close()

	var out []victim
	for rows.Next() {
		var v victim
		if err := rows.Scan(&v.key, &v.size); err != nil {
			return nil, fmt.Errorf("failed to scan victim: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *diskStore) removeLocked(ctx context.Context, key string) error {
	if _, err := s.deleteStmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("failed to delete index row: %w", err)
	}
	k, err := strconv.ParseUint(key, 16, 64)
	if err != nil {
		return nil
	}
	if err := os.Remove(s.path(k)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cache file: %w", err)
	}
	return nil
}

// Delete removes one entry.
func (s *diskStore) Delete(ctx context.Context, key uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(ctx, keyString(key))
}

// usage returns total bytes and entry count.
func (s *diskStore) usage(ctx context.Context) (int64, int, error) {
	var (
		total int64
		count int
	)
	if err := s.usageStmt.QueryRowContext(ctx).Scan(&total, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to read disk usage: %w", err)
	}
	return total, count, nil
}

// Usage returns total bytes and entry count.
func (s *diskStore) Usage(ctx context.Context) (int64, int, error) {
	return s.usage(ctx)
}

// pruneOlderThan removes entries created before cutoff.
func (s *diskStore) pruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to select expired entries: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan expired entry: %w", err)
		}
		keys = append(keys, k)
	}
	rows.Close()

	for _, k := range keys {
		if err := s.removeLocked(ctx, k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// reconcile makes the index and the data directory agree after a restart
// or crash: rows without a file are dropped, files without a row and
// leftover temporary files are deleted.
func (s *diskStore) reconcile(ctx context.Context) (droppedRows, removedFiles int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list index: %w", err)
	}
	known := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return 0, 0, fmt.Errorf("failed to scan index row: %w", err)
		}
		known[k] = struct{}{}
	}
	rows.Close()

	onDisk := make(map[string]struct{})
	err = filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() {
			return walkErr
		}
		name := d.Name()
		k, isArtifact := strings.CutSuffix(name, ".bin")
		if _, indexed := known[k]; !isArtifact || !indexed {
			if rmErr := os.Remove(path); rmErr == nil {
				removedFiles++
			}
			return nil
		}
		onDisk[k] = struct{}{}
		return nil
	})
	if err != nil {
		return 0, removedFiles, fmt.Errorf("failed to scan cache directory: %w", err)
	}

	for k := range known {
		if _, ok := onDisk[k]; ok {
			continue
		}
		if _, err := s.deleteStmt.ExecContext(ctx, k); err != nil {
			return droppedRows, removedFiles, fmt.Errorf("failed to drop dangling row: %w", err)
		}
		droppedRows++
	}
	return droppedRows, removedFiles, nil
}

// checkpoint truncates the write-ahead log.
func (s *diskStore) checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Ping verifies the index is reachable and the data directory writable.
func (s *diskStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("index unreachable: %w", err)
	}
	f, err := os.CreateTemp(s.dataDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("cache directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// Close releases the index. Close is idempotent.
func (s *diskStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)
		s.closeStatements()
		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

func (s *diskStore) closeStatements() {
	for _, stmt := range []*sql.Stmt{s.getStmt, s.touchStmt, s.putStmt, s.deleteStmt, s.usageStmt, s.victimStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// checkpointLoop runs periodic passive WAL checkpoints.
func (s *diskStore) checkpointLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache shard: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move cache file into place: %w", err)
	}
	return nil
}
