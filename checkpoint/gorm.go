package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/stemtutor/tutorflow/types"
)

// checkpointRow is the GORM model backing SQLiteStore.
type checkpointRow struct {
	SessionID string `gorm:"primaryKey;size:64"`
	State     []byte
	LastStep  string `gorm:"size:64"`
	Status    string `gorm:"size:32;index"`
	Version   int
	UpdatedAt time.Time
}

func (checkpointRow) TableName() string { return "checkpoints" }

// SQLiteStore is a SQLite-backed checkpoint store for single-node
// deployments that need durability without an external service.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database file and migrates the
// checkpoint table. Use ":memory:" for an ephemeral store in tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to open checkpoint database").WithCause(err)
	}

	if err := db.AutoMigrate(&checkpointRow{}); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to migrate checkpoint schema").WithCause(err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save upserts the session's row.
func (s *SQLiteStore) Save(ctx context.Context, cp *Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}

	row := checkpointRow{
		SessionID: cp.SessionID,
		State:     append([]byte(nil), cp.State...),
		LastStep:  cp.LastStep,
		Status:    string(cp.Status),
		Version:   cp.Version,
		UpdatedAt: cp.UpdatedAt,
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to save checkpoint").WithCause(err)
	}
	return nil
}

// Load retrieves the session's row.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (*Checkpoint, error) {
	var row checkpointRow
	err := s.db.WithContext(ctx).First(&row, "session_id = ?", sessionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound(sessionID)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load checkpoint").WithCause(err)
	}

	return &Checkpoint{
		SessionID: row.SessionID,
		State:     row.State,
		LastStep:  row.LastStep,
		Status:    Status(row.Status),
		Version:   row.Version,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Delete removes the session's row.
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	err := s.db.WithContext(ctx).Delete(&checkpointRow{}, "session_id = ?", sessionID).Error
	if err != nil {
		return types.NewError(types.ErrInternalError, "failed to delete checkpoint").WithCause(err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
