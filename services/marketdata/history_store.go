package marketdata

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"marketpulse-backend/models"
)

// HistoryStore persists daily OHLCV bars in a local SQLite database. It
// is a read-through cache for provider history and the last-resort
// source when every provider fails.
type HistoryStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewHistoryStore opens (creating if needed) the local history database
func NewHistoryStore(path string) (*HistoryStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping history db: %w", err)
	}

	store := &HistoryStore{db: db}
	if err := store.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// Close closes the underlying database
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *HistoryStore) createTables() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := `
		CREATE TABLE IF NOT EXISTS price_history (
			symbol VARCHAR NOT NULL,
			date VARCHAR NOT NULL,
			open DOUBLE,
			high DOUBLE,
			low DOUBLE,
			close DOUBLE,
			volume DOUBLE,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (symbol, date)
		)
	`
	if _, err := s.db.Exec(table); err != nil {
		return fmt.Errorf("failed to create price_history table: %w", err)
	}
	return nil
}

// SaveHistory upserts a bar series for a symbol
func (s *HistoryStore) SaveHistory(symbol string, points []models.HistoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO price_history (symbol, date, open, high, low, close, volume, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.Exec(symbol, p.Date.Format("2006-01-02"),
			p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert bar for %s: %w", symbol, err)
		}
	}

	return tx.Commit()
}

// LoadHistory returns up to limit bars for a symbol, oldest first
func (s *HistoryStore) LoadHistory(symbol string, limit int) ([]models.HistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT date, open, high, low, close, volume
		FROM price_history
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT ?
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var points []models.HistoryPoint
	for rows.Next() {
		var dateStr string
		var p models.HistoryPoint
		if err := rows.Scan(&dateStr, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		p.Date = date
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; reverse to chronological order
	for i := 0; i < len(points)/2; i++ {
		points[i], points[len(points)-1-i] = points[len(points)-1-i], points[i]
	}
	return points, nil
}
