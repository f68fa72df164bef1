package storage

import (
	"context"
	"fmt"
	"time"

	"rate_server/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Rate is the persisted form of a domain.RateQuote. The composite primary
// key enforces the cache invariant: at most one row per (date, symbol).
type Rate struct {
	ClosingDate string          `gorm:"primaryKey;column:closing_date;size:10"`
	Symbol      string          `gorm:"primaryKey;column:symbol;size:16"`
	Rate        decimal.Decimal `gorm:"column:rate;type:numeric"`
	CreatedAt   time.Time       `gorm:"column:created_at"`
}

// TableName maps the model to the rates table.
func (Rate) TableName() string {
	return "rates"
}

// Config controls which database backend the store opens.
type Config struct {
	Driver string // "sqlite" or "postgres"
	DSN    string
}

// Store is the persistent rate cache. All methods are safe for concurrent
// use from multiple sessions; concurrency control is delegated to the
// database itself.
type Store struct {
	db *gorm.DB
}

// Open connects to the configured backend and migrates the rates table.
func Open(cfg Config) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&Rate{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// LookupMany returns the cached quotes for the given date, keyed by symbol.
// Symbols absent from the store are simply absent from the result; only a
// transport failure is an error.
func (s *Store) LookupMany(ctx context.Context, date time.Time, symbols []string) (map[string]domain.RateQuote, error) {
	if len(symbols) == 0 {
		return map[string]domain.RateQuote{}, nil
	}

	var rows []Rate
	err := s.db.WithContext(ctx).
		Where("closing_date = ? AND symbol IN ?", date.Format(domain.DateLayout), symbols).
		Order("symbol").
		Find(&rows).Error
	if err != nil {
		return nil, domain.NewStoreError("lookup", err)
	}

	result := make(map[string]domain.RateQuote, len(rows))
	for _, r := range rows {
		result[r.Symbol] = domain.RateQuote{Date: date, Symbol: r.Symbol, Rate: r.Rate}
	}
	return result, nil
}

// InsertMany writes newly fetched quotes in a single batch. Conflicting
// rows are left untouched: two sessions racing on the same uncached key
// both insert the same semantic value, so either write winning is fine.
func (s *Store) InsertMany(ctx context.Context, quotes []domain.RateQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	rows := make([]Rate, 0, len(quotes))
	for _, q := range quotes {
		rows = append(rows, Rate{
			ClosingDate: q.DateString(),
			Symbol:      q.Symbol,
			Rate:        q.Rate,
		})
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	if err != nil {
		return domain.NewStoreError("insert", err)
	}
	return nil
}

// ClearAll deletes every cached rate. Used by the operator console.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("DELETE FROM rates").Error; err != nil {
		return domain.NewStoreError("clear", err)
	}
	return nil
}

// Count reports how many rates are cached.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&Rate{}).Count(&n).Error; err != nil {
		return 0, domain.NewStoreError("count", err)
	}
	return n, nil
}
