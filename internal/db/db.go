package db

import (
	"compress/gzip"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tailscale/tailsql/server/tailsql"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"
)

// pragmas are applied to every pooled connection through the DSN.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)" +
	"&_pragma=synchronous(NORMAL)&_pragma=temp_store(MEMORY)&_pragma=foreign_keys(1)"

type DB struct {
	*sql.DB
	path string
}

// OpenDB opens the sqlite database at path without touching the schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to connect to database: %w", err), sqlDB.Close())
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens the database at path and applies all embedded migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrations, err := getMigrationsFS()
	if err != nil {
		return nil, multierr.Append(err, db.DB.Close())
	}
	if err := db.MigrateUp(migrations); err != nil {
		return nil, multierr.Append(err, db.DB.Close())
	}

	return db, nil
}

// Close checkpoints the write-ahead log and closes the pool.
func (db *DB) Close() error {
	var err error
	if _, cerr := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); cerr != nil {
		err = multierr.Append(err, fmt.Errorf("wal checkpoint: %w", cerr))
	}
	return multierr.Append(err, db.DB.Close())
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Squat DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	debug.Handle("db-stats", "Row counts and size of the results database", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.Stats()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			logrus.Errorf("failed to encode db stats: %v", err)
		}
	}))
	return nil
}

// DatabaseStats summarizes table sizes for the admin page.
type DatabaseStats struct {
	Results      int64   `json:"results"`
	DepthSamples int64   `json:"depth_samples"`
	TotalSizeMB  float64 `json:"total_size_mb"`
}

// Stats returns row counts and the on-disk page footprint.
func (db *DB) Stats() (DatabaseStats, error) {
	var s DatabaseStats
	if err := db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&s.Results); err != nil {
		return s, fmt.Errorf("failed to count results: %w", err)
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM depth_samples`).Scan(&s.DepthSamples); err != nil {
		return s, fmt.Errorf("failed to count depth samples: %w", err)
	}
	var pageCount, pageSize int64
	if err := db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		return s, fmt.Errorf("failed to read page_count: %w", err)
	}
	if err := db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return s, fmt.Errorf("failed to read page_size: %w", err)
	}
	s.TotalSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	return s, nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupName := fmt.Sprintf("backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), backupName)
	if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}

	// close the backup file after sending it
	// and remove it from the filesystem
	defer func() {
		if err := multierr.Append(backupFile.Close(), os.Remove(backupPath)); err != nil {
			logrus.Warnf("failed to clean up backup file: %v", err)
		}
	}()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupName))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()

	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		logrus.Errorf("failed to stream backup: %v", err)
	}
}
