// Package calllog persists FAX call-detail records: one row per completed
// T.30 session, covering both terminal and gateway roles. Modelled on the
// teacher's internal/database package (same GORM-over-pure-Go-SQLite
// wiring, same repository-over-DB split), repurposed from DMR user lookups
// to FAX call history.
package calllog

import (
	"database/sql"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Config holds database configuration.
type Config struct {
	Path string // path to the SQLite database file
}

// DB wraps the GORM database instance.
type DB struct {
	db *gorm.DB
}

// NewDB opens (creating if necessary) the call-log database with the pure
// Go SQLite driver and migrates the schema.
func NewDB(cfg Config, l *log.Logger) (*DB, error) {
	var gormLog logger.Interface
	if l != nil {
		gormLog = logger.New(l, logger.Config{
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		})
	} else {
		gormLog = logger.Default.LogMode(logger.Silent)
	}

	dialector := sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        cfg.Path,
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := configureSQLite(sqlDB); err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&CallRecord{}, &PageRecord{}); err != nil {
		return nil, err
	}

	if l != nil {
		l.Printf("call log database initialized: %s", cfg.Path)
	}
	return &DB{db: db}, nil
}

func configureSQLite(sqlDB *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Repository returns a CallRepository bound to this connection.
func (d *DB) Repository() *CallRepository {
	return NewCallRepository(d.db)
}
