// Package store keeps the most recent weather snapshot in an in-memory SQLite
// database that can be exported to, and rebuilt from, a single binary image.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bbernstein/weatherdash/internal/models"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	memoryDSN  = ":memory:"
	timeLayout = time.RFC3339
)

// ErrNotInitialized is returned when the store is used before Open
var ErrNotInitialized = errors.New("store is not initialized")

// serializer is implemented by the modernc.org/sqlite driver connection
type serializer interface {
	Serialize() ([]byte, error)
	Deserialize(buf []byte) error
}

// Store is an explicit handle on the embedded snapshot database. The zero
// value is not usable, create one with New.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	conn *sql.Conn
}

func New() *Store {
	return &Store{}
}

// Open makes the store live. With a non-empty image the database is rebuilt
// from it, otherwise empty tables are created. Calling Open on a store that
// is already open does nothing.
func (s *Store) Open(ctx context.Context, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return nil
	}

	db, err := sql.Open(driverName, memoryDSN)
	if err != nil {
		return fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database, so the store pins one.
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("acquiring database connection: %w", err)
	}

	if len(image) > 0 {
		err = conn.Raw(func(driverConn any) error {
			ser, ok := driverConn.(serializer)
			if !ok {
				return fmt.Errorf("driver connection %T does not support deserialization", driverConn)
			}
			return ser.Deserialize(image)
		})
		if err != nil {
			_ = conn.Close()
			_ = db.Close()
			return fmt.Errorf("deserializing image: %w", err)
		}
	}

	// Also validates a restored image: a corrupt one fails here.
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return fmt.Errorf("creating tables: %w", err)
	}

	s.db = db
	s.conn = conn

	log.Debug().Int("image_bytes", len(image)).Msg("Embedded store opened")
	return nil
}

// InsertHourly appends hourly rows
func (s *Store) InsertHourly(ctx context.Context, records []models.HourlyRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertHourly(ctx, tx, records)
	})
}

// InsertDaily appends daily rows
func (s *Store) InsertDaily(ctx context.Context, records []models.DailyRecord) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertDaily(ctx, tx, records)
	})
}

// ReplaceSnapshot clears both tables and writes the snapshot in a single
// transaction, so a previously partial store never ends up with duplicates.
func (s *Store) ReplaceSnapshot(ctx context.Context, snapshot models.WeatherSnapshot) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM hourly_row`); err != nil {
			return fmt.Errorf("clearing hourly rows: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM daily_row`); err != nil {
			return fmt.Errorf("clearing daily rows: %w", err)
		}
		if err := insertHourly(ctx, tx, snapshot.Hourly); err != nil {
			return err
		}
		return insertDaily(ctx, tx, snapshot.Daily)
	})
}

// ScanAll rebuilds the snapshot from every row in insertion order. It
// returns nil without an error when either table is empty.
func (s *Store) ScanAll(ctx context.Context) (*models.WeatherSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrNotInitialized
	}

	hourly, err := s.scanHourly(ctx)
	if err != nil {
		return nil, err
	}
	daily, err := s.scanDaily(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &models.WeatherSnapshot{Hourly: hourly, Daily: daily}
	if !snapshot.Valid() {
		log.Debug().
			Int("hourly_rows", len(hourly)).
			Int("daily_rows", len(daily)).
			Msg("Embedded store has no complete snapshot")
		return nil, nil
	}

	return snapshot, nil
}

// Counts returns the number of hourly and daily rows
func (s *Store) Counts(ctx context.Context) (hourly, daily int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return 0, 0, ErrNotInitialized
	}

	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM hourly_row`).Scan(&hourly); err != nil {
		return 0, 0, fmt.Errorf("counting hourly rows: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_row`).Scan(&daily); err != nil {
		return 0, 0, fmt.Errorf("counting daily rows: %w", err)
	}
	return hourly, daily, nil
}

// ExportImage serializes the whole database into a binary image that Open accepts
func (s *Store) ExportImage(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, ErrNotInitialized
	}

	var image []byte
	err := s.conn.Raw(func(driverConn any) error {
		ser, ok := driverConn.(serializer)
		if !ok {
			return fmt.Errorf("driver connection %T does not support serialization", driverConn)
		}
		var err error
		image, err = ser.Serialize()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serializing database: %w", err)
	}

	return image, nil
}

// Close frees the database. The store can be opened again afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}

	connErr := s.conn.Close()
	dbErr := s.db.Close()
	s.conn = nil
	s.db = nil

	if connErr != nil {
		return fmt.Errorf("closing connection: %w", connErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing database: %w", dbErr)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrNotInitialized
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func insertHourly(ctx context.Context, tx *sql.Tx, records []models.HourlyRecord) error {
	stmt, err := tx.PrepareContext(ctx, insertHourlySQL)
	if err != nil {
		return fmt.Errorf("preparing hourly insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Time.Format(timeLayout), r.RelativeHumidity, r.DirectRadiation); err != nil {
			return fmt.Errorf("inserting hourly row %d: %w", i, err)
		}
	}
	return nil
}

func insertDaily(ctx context.Context, tx *sql.Tx, records []models.DailyRecord) error {
	stmt, err := tx.PrepareContext(ctx, insertDailySQL)
	if err != nil {
		return fmt.Errorf("preparing daily insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Time.Format(timeLayout), r.MaxTemp, r.MinTemp); err != nil {
			return fmt.Errorf("inserting daily row %d: %w", i, err)
		}
	}
	return nil
}

func (s *Store) scanHourly(ctx context.Context) ([]models.HourlyRecord, error) {
	rows, err := s.conn.QueryContext(ctx, selectHourlySQL)
	if err != nil {
		return nil, fmt.Errorf("querying hourly rows: %w", err)
	}
	defer rows.Close()

	var records []models.HourlyRecord
	for rows.Next() {
		var (
			timeStr   string
			humidity  sql.NullFloat64
			radiation sql.NullFloat64
		)
		if err := rows.Scan(&timeStr, &humidity, &radiation); err != nil {
			return nil, fmt.Errorf("scanning hourly row: %w", err)
		}
		t, err := time.Parse(timeLayout, timeStr)
		if err != nil {
			return nil, fmt.Errorf("parsing hourly time %q: %w", timeStr, err)
		}
		records = append(records, models.HourlyRecord{
			Time:             t,
			RelativeHumidity: humidity.Float64,
			DirectRadiation:  radiation.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hourly rows: %w", err)
	}
	return records, nil
}

func (s *Store) scanDaily(ctx context.Context) ([]models.DailyRecord, error) {
	rows, err := s.conn.QueryContext(ctx, selectDailySQL)
	if err != nil {
		return nil, fmt.Errorf("querying daily rows: %w", err)
	}
	defer rows.Close()

	var records []models.DailyRecord
	for rows.Next() {
		var (
			timeStr string
			maxTemp sql.NullFloat64
			minTemp sql.NullFloat64
		)
		if err := rows.Scan(&timeStr, &maxTemp, &minTemp); err != nil {
			return nil, fmt.Errorf("scanning daily row: %w", err)
		}
		t, err := time.Parse(timeLayout, timeStr)
		if err != nil {
			return nil, fmt.Errorf("parsing daily time %q: %w", timeStr, err)
		}
		records = append(records, models.DailyRecord{
			Time:    t,
			MaxTemp: maxTemp.Float64,
			MinTemp: minTemp.Float64,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating daily rows: %w", err)
	}
	return records, nil
}
