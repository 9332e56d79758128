// Package store persists the decision journal so past ticks can be
// inspected through the status API after a restart.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"helmsman/internal/engine"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DecisionRecord is one journaled evaluation outcome.
type DecisionRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	Instrument string    `gorm:"index;size:32" json:"instrument"`
	Action     string    `gorm:"size:16" json:"action"`
	Side       string    `gorm:"size:8" json:"side"`
	Stake      float64   `json:"stake"`
	StopLevel  float64   `json:"stop_level"`
	Tag        string    `gorm:"size:32" json:"tag"`
	LadderLvl  int       `json:"ladder_level"`
	Price      float64   `json:"price"`
	Reason     string    `gorm:"size:128" json:"reason"`
}

func (DecisionRecord) TableName() string { return "decisions" }

// Journal is the SQLite-backed decision log.
type Journal struct {
	db *gorm.DB
}

func NewJournal(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: path is required")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	if err := db.AutoMigrate(&DecisionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	return &Journal{db: db}, nil
}

// Append records one decision. Ticks that resolve to no action are
// journaled too when they carry a reason worth keeping.
func (j *Journal) Append(d engine.Decision, price float64) error {
	rec := DecisionRecord{
		CreatedAt:  time.Now().UTC(),
		Instrument: d.Instrument,
		Action:     string(d.Action),
		Side:       string(d.Side),
		Stake:      d.Stake,
		StopLevel:  d.StopLevel,
		Tag:        d.Tag,
		LadderLvl:  d.LadderLevel,
		Price:      price,
		Reason:     d.Reason,
	}
	return j.db.Create(&rec).Error
}

// Recent returns the newest records, newest first.
func (j *Journal) Recent(limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []DecisionRecord
	err := j.db.Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

// RecentFor filters the journal by instrument.
func (j *Journal) RecentFor(instrument string, limit int) ([]DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []DecisionRecord
	err := j.db.Where("instrument = ?", instrument).Order("id DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (j *Journal) Close() error {
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
