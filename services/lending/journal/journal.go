package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"poolledger/core/events"
)

// Record is one committed ledger event. Counterparty holds the receiving side
// of two-party events.
type Record struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	Sequence     uint64            `gorm:"uniqueIndex;not null" json:"sequence"`
	Type         string            `gorm:"index;not null" json:"type"`
	Pool         *uint64           `gorm:"index" json:"pool,omitempty"`
	Account      string            `gorm:"index" json:"account,omitempty"`
	Counterparty string            `gorm:"index" json:"counterparty,omitempty"`
	Amount       string            `json:"amount,omitempty"`
	Attributes   map[string]string `gorm:"serializer:json" json:"attributes"`
	CreatedAt    time.Time         `json:"created_at"`
}

// TableName pins the table name independent of the Go type.
func (Record) TableName() string { return "lending_events" }

// Journal persists committed events and serves them back by pool or account.
// It satisfies events.Emitter so the runtime can publish into it directly.
type Journal struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	mu  sync.Mutex
	seq uint64
}

// Open connects to dsn. postgres:// URLs use the postgres driver; anything
// else is treated as a sqlite DSN.
func Open(dsn string, log *slog.Logger) (*Journal, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("journal: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	return New(db, log)
}

// New wraps an existing connection and migrates the schema.
func New(db *gorm.DB, log *slog.Logger) (*Journal, error) {
	if db == nil {
		return nil, errors.New("journal: db required")
	}
	if log == nil {
		log = slog.Default()
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("journal: migrate: %w", err)
	}
	var last uint64
	if err := db.Model(&Record{}).Select("COALESCE(MAX(sequence), 0)").Scan(&last).Error; err != nil {
		return nil, fmt.Errorf("journal: load sequence: %w", err)
	}
	return &Journal{db: db, logger: log, now: time.Now, seq: last}, nil
}

// Emit implements events.Emitter. Events are already committed to the ledger
// when they arrive here, so a failed insert is logged rather than returned.
func (j *Journal) Emit(evt events.Event) {
	if err := j.Append(context.Background(), evt); err != nil {
		j.logger.Error("journal append failed", "type", evt.EventType(), "error", err)
	}
}

// Append stores evt with the next sequence number.
func (j *Journal) Append(ctx context.Context, evt events.Event) error {
	if j == nil || evt == nil {
		return nil
	}
	payload := evt.Event()
	if payload == nil {
		return nil
	}
	rec := Record{
		ID:           uuid.New(),
		Type:         payload.Type,
		Account:      payload.Attr(events.AttrAccount),
		Counterparty: payload.Attr(events.AttrCounterparty),
		Amount:       payload.Attr(events.AttrAmount),
		Attributes:   payload.Clone().Attributes,
	}
	if raw := payload.Attr(events.AttrPool); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("journal: pool attribute %q: %w", raw, err)
		}
		rec.Pool = &id
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	rec.Sequence = j.seq + 1
	rec.CreatedAt = j.now().UTC()
	if err := j.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return err
	}
	j.seq = rec.Sequence
	return nil
}

// PoolEvents returns the newest events for pool, newest first.
func (j *Journal) PoolEvents(ctx context.Context, pool uint64, limit int) ([]Record, error) {
	return j.query(ctx, limit, "pool = ?", pool)
}

// AccountEvents returns the newest events naming account on either side,
// newest first.
func (j *Journal) AccountEvents(ctx context.Context, account string, limit int) ([]Record, error) {
	account = strings.TrimSpace(account)
	return j.query(ctx, limit, "account = ? OR counterparty = ?", account, account)
}

func (j *Journal) query(ctx context.Context, limit int, where string, args ...interface{}) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []Record
	err := j.db.WithContext(ctx).Where(where, args...).Order("sequence DESC").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
