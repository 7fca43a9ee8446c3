package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront/pkg/db/models"
)

// SQL stores values in the kv_entries table through gorm.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQL(conn *gorm.DB) (*SQL, error) {
	if conn == nil {
		return nil, fmt.Errorf("gorm connection required")
	}
	return &SQL{db: conn, now: time.Now}, nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, error) {
	var entry models.KVEntry
	err := s.db.WithContext(ctx).Where(keyEq(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	entry := models.KVEntry{Key: key, Value: value, UpdatedAt: s.now().UTC()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where(keyEq(key)).Delete(&models.KVEntry{}).Error
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func keyEq(key string) clause.Eq {
	return clause.Eq{Column: clause.Column{Name: "key"}, Value: key}
}
