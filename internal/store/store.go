package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRecordNotFound = errors.New("record not found")

// JobRun is the persisted history of one processed job. The store exists so
// the status API can answer "what ran lately and how did it go" without
// scraping result files.
type JobRun struct {
	ID               string    `gorm:"column:id;primaryKey"`
	JobID            string    `gorm:"column:job_id"`
	HubName          string    `gorm:"column:hub_name"`
	ProjectName      string    `gorm:"column:project_name"`
	ModelName        string    `gorm:"column:model_name"`
	Status           string    `gorm:"column:status"`
	TotalSheets      int       `gorm:"column:total_sheets"`
	SuccessfulSheets int       `gorm:"column:successful_sheets"`
	FailedSheets     int       `gorm:"column:failed_sheets"`
	PartialSheets    int       `gorm:"column:partial_sheets"`
	DurationSeconds  float64   `gorm:"column:duration_seconds"`
	ResultFile       string    `gorm:"column:result_file"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (JobRun) TableName() string {
	return "job_runs"
}

// Store records and lists job runs.
type Store interface {
	CreateRun(ctx context.Context, run *JobRun) error
	ListRuns(ctx context.Context, limit int) ([]JobRun, error)
	LatestRun(ctx context.Context) (*JobRun, error)
	Close() error
}

// InitDB opens (or creates) the worker's sqlite history database and runs the
// schema migration.
func InitDB(databaseFile string) (*gorm.DB, error) {
	newLogger := logger.New(
		logrus.New(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(databaseFile), &gorm.Config{Logger: newLogger, TranslateError: true})
	if err != nil {
		zap.S().Named("store").Errorf("failed to open history database: %v", err)
		return nil, err
	}

	if err := db.AutoMigrate(&JobRun{}); err != nil {
		return nil, fmt.Errorf("migrating job_runs: %w", err)
	}
	return db, nil
}

type gormStore struct {
	db *gorm.DB
}

// Make sure we conform to Store interface
var _ Store = (*gormStore)(nil)

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateRun(ctx context.Context, run *JobRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	result := s.db.WithContext(ctx).Create(run)
	if result.Error != nil {
		return fmt.Errorf("creating job run: %w", result.Error)
	}
	return nil
}

func (s *gormStore) ListRuns(ctx context.Context, limit int) ([]JobRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []JobRun
	result := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&runs)
	if result.Error != nil {
		return nil, fmt.Errorf("querying job runs: %w", result.Error)
	}
	return runs, nil
}

func (s *gormStore) LatestRun(ctx context.Context) (*JobRun, error) {
	var run JobRun
	result := s.db.WithContext(ctx).Order("created_at desc").First(&run)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("querying latest job run: %w", result.Error)
	}
	return &run, nil
}

func (s *gormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
