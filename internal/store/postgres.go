package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const pgUniqueViolation = "23505"

type eventRow struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Stream    string    `gorm:"not null;uniqueIndex:idx_stream_event"`
	EventID   string    `gorm:"not null;uniqueIndex:idx_stream_event"`
	Payload   []byte    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (eventRow) TableName() string { return "score_events" }

type snapshotRow struct {
	Stream    string    `gorm:"primaryKey"`
	Payload   []byte    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (snapshotRow) TableName() string { return "snapshots" }

type Postgres struct {
	db *gorm.DB
}

// OpenPostgres connects with gorm's postgres driver and migrates the two
// tables.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&eventRow{}, &snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Append(ctx context.Context, stream, eventID string, payload []byte) error {
	row := eventRow{Stream: stream, EventID: eventID, Payload: payload, CreatedAt: time.Now().UTC()}
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (p *Postgres) Events(ctx context.Context, stream string) ([][]byte, error) {
	var rows []eventRow
	err := p.db.WithContext(ctx).
		Where("stream = ?", stream).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	out := make([][]byte, len(rows))
	for i, r := range rows {
		out[i] = r.Payload
	}
	return out, nil
}

func (p *Postgres) PutSnapshot(ctx context.Context, stream string, payload []byte) error {
	row := snapshotRow{Stream: stream, Payload: payload, UpdatedAt: time.Now().UTC()}
	err := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "stream"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) Snapshot(ctx context.Context, stream string) ([]byte, error) {
	var row snapshotRow
	err := p.db.WithContext(ctx).Where("stream = ?", stream).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	return row.Payload, nil
}

func (p *Postgres) Clear(ctx context.Context, stream string) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("stream = ?", stream).Delete(&eventRow{}).Error; err != nil {
			return fmt.Errorf("delete events: %w", err)
		}
		if err := tx.Where("stream = ?", stream).Delete(&snapshotRow{}).Error; err != nil {
			return fmt.Errorf("delete snapshot: %w", err)
		}
		return nil
	})
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
