// Package db opens the task store and manages its schema.
package db

import (
	"context"
	"fmt"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/zulandar/planyard/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Printer is the subset of a structured logger the gorm logger writes to.
type Printer interface {
	Printf(format string, args ...interface{})
}

// Options tunes a connection.
type Options struct {
	// Log receives gorm's SQL diagnostics. Nil silences them.
	Log Printer
	// Debug logs every statement instead of only slow ones and errors.
	Debug bool
}

// DSN builds a MySQL DSN for the configured server. When withDatabase is
// false the DSN selects no schema, for CREATE/DROP DATABASE.
func DSN(cfg config.DatabaseConfig, withDatabase bool) string {
	mc := mysqldrv.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password()
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if withDatabase {
		mc.DBName = cfg.Name
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = cfg.Timeout()
	return mc.FormatDSN()
}

// SQLitePath returns the sqlite DSN for path with a busy timeout so
// concurrent writers wait instead of failing immediately.
func SQLitePath(path string) string {
	return path + "?_busy_timeout=5000"
}

// Connect opens a GORM connection to the configured task store.
func Connect(cfg config.DatabaseConfig, opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	target := ""
	switch cfg.Driver {
	case config.DriverMySQL:
		dialector = mysql.Open(DSN(cfg, true))
		target = fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
	case config.DriverSQLite, "":
		dialector = sqlite.Open(SQLitePath(cfg.Path))
		target = cfg.Path
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:  newLogger(opts),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", target, err)
	}
	return gdb, nil
}

// ConnectAdmin opens a GORM connection to the MySQL server without selecting
// a database, used for CREATE DATABASE operations.
func ConnectAdmin(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver != config.DriverMySQL {
		return nil, fmt.Errorf("db: admin connection requires the mysql driver, got %q", cfg.Driver)
	}
	gdb, err := gorm.Open(mysql.Open(DSN(cfg, false)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: admin connect to %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return gdb, nil
}

// DropDatabase drops the named database if it exists.
func DropDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: drop database %s: %w", name, err)
	}
	return nil
}

// CreateDatabase creates the named database if it doesn't already exist.
func CreateDatabase(adminDB *gorm.DB, name string) error {
	sql := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)
	if err := adminDB.Exec(sql).Error; err != nil {
		return fmt.Errorf("db: create database %s: %w", name, err)
	}
	return nil
}

// Scoped returns gdb bound to a child of ctx that expires after timeout.
// Every statement issued through the returned handle carries the deadline.
func Scoped(ctx context.Context, gdb *gorm.DB, timeout time.Duration) (*gorm.DB, context.CancelFunc) {
	if timeout <= 0 {
		timeout = config.DefaultStatementTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return gdb.WithContext(ctx), cancel
}

func newLogger(opts Options) logger.Interface {
	if opts.Log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	return logger.New(opts.Log, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
