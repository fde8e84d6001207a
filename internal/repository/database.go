package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fadilmartias/aca-radar/internal/apperror"
	"github.com/fadilmartias/aca-radar/internal/config"
	"github.com/fadilmartias/aca-radar/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the database selected by dbConfig.Driver. sqlite uses
// DB_NAME as the file path; memory keeps papers in a private in-memory
// SQLite database.
func Connect(dbConfig *config.DBConfig, production bool) (*gorm.DB, error) {
	switch dbConfig.Driver {
	case "postgres", "":
		return Open(dbConfig, production)
	case "sqlite", "memory":
		dsn := dbConfig.Name
		if dbConfig.Driver == "memory" || dsn == "" {
			dsn = "file::memory:"
		}
		db, err := OpenDialector(sqlite.Open(dsn))
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("could not get database instance: %w", err)
		}
		// a single connection serializes writers and keeps :memory: alive
		sqlDB.SetMaxOpenConns(1)
		if err := Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", dbConfig.Driver)
	}
}

// NewEmbeddingJobStore returns the in-memory store for DB_DRIVER=memory and
// the gorm store otherwise.
func NewEmbeddingJobStore(dbConfig *config.DBConfig, db *gorm.DB) EmbeddingJobStore {
	if dbConfig.Driver == "memory" {
		return NewMemoryEmbeddingJobRepository()
	}
	return NewEmbeddingJobRepository(db)
}

// Open connects to Postgres, tunes the pool and migrates the schema.
func Open(dbConfig *config.DBConfig, production bool) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		dbConfig.Host,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Name,
		dbConfig.Port,
		dbConfig.SSLMode,
		dbConfig.TimeZone,
	)

	db, err := OpenDialector(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("could not get database instance: %w", err)
	}
	if production {
		sqlDB.SetMaxIdleConns(max(dbConfig.MaxIdleConns, 20))
		sqlDB.SetMaxOpenConns(max(dbConfig.MaxOpenConns, 200))
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenDialector opens any gorm dialector with the settings the repositories
// rely on: translated driver errors and UTC timestamps.
func OpenDialector(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if db.Dialector.Name() == "postgres" {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("enable pgvector: %w", err)
		}
	}
	if err := db.AutoMigrate(&model.EmbeddingJob{}, &model.Paper{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func storageError(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.Wrap(apperror.KindNotFound, op, err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.Wrap(apperror.KindDuplicateIdentifier, op, err)
	default:
		return apperror.Wrap(apperror.KindStorageUnavailable, op, err)
	}
}
