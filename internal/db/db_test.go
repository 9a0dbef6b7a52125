package db

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/planyard/internal/config"
	"github.com/zulandar/planyard/internal/models"
	"gorm.io/gorm"
)

func mysqlConfig(host string, port int, name string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:           config.DriverMySQL,
		Host:             host,
		Port:             port,
		Name:             name,
		User:             "root",
		StatementTimeout: "2s",
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		withDB   bool
		contains []string
	}{
		{
			name:     "default local",
			cfg:      mysqlConfig("127.0.0.1", 3306, "planyard"),
			withDB:   true,
			contains: []string{"root@tcp(127.0.0.1:3306)/planyard?", "parseTime=true", "timeout=2s"},
		},
		{
			name:     "custom host and port",
			cfg:      mysqlConfig("10.0.0.5", 3307, "plans_bob"),
			withDB:   true,
			contains: []string{"root@tcp(10.0.0.5:3307)/plans_bob?"},
		},
		{
			name:     "admin has no schema",
			cfg:      mysqlConfig("db.internal", 3306, "planyard"),
			withDB:   false,
			contains: []string{"root@tcp(db.internal:3306)/?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.withDB)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("DSN() = %q, want to contain %q", got, want)
				}
			}
		})
	}
}

func TestDSN_Password(t *testing.T) {
	t.Setenv("PLANYARD_DSN_PW", "hunter2")
	cfg := mysqlConfig("127.0.0.1", 3306, "planyard")
	cfg.PasswordEnv = "PLANYARD_DSN_PW"
	dsn := DSN(cfg, true)
	if !strings.HasPrefix(dsn, "root:hunter2@tcp(") {
		t.Errorf("DSN = %q, want user:password prefix", dsn)
	}
}

func TestSQLitePath(t *testing.T) {
	if got := SQLitePath("plans.db"); got != "plans.db?_busy_timeout=5000" {
		t.Errorf("SQLitePath = %q", got)
	}
}

func TestConnect_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.db")
	gdb, err := Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, Options{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T missing after migrate", m)
		}
	}

	plan := models.Plan{ID: "p1", ProjectID: "acme", Title: "Rollout", Version: 1, IsActive: true}
	if err := gdb.Create(&plan).Error; err != nil {
		t.Fatalf("create plan: %v", err)
	}
	var got models.Plan
	if err := gdb.First(&got, "id = ?", "p1").Error; err != nil {
		t.Fatalf("reload plan: %v", err)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	if err := DropAll(gdb); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if gdb.Migrator().HasTable(&models.Task{}) {
		t.Error("tasks table still present after DropAll")
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"}, Options{})
	if err == nil || !strings.Contains(err.Error(), `unsupported driver "oracle"`) {
		t.Errorf("err = %v, want unsupported driver", err)
	}
}

func TestConnect_MySQLError(t *testing.T) {
	// Port 1 is unlikely to have a MySQL server; expect connection error.
	_, err := Connect(mysqlConfig("127.0.0.1", 1, "nonexistent"), Options{})
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: connect to")
	}
}

func TestConnectAdmin_RequiresMySQL(t *testing.T) {
	_, err := ConnectAdmin(config.DatabaseConfig{Driver: config.DriverSQLite})
	if err == nil || !strings.Contains(err.Error(), "requires the mysql driver") {
		t.Errorf("err = %v, want mysql requirement", err)
	}
}

func TestConnectAdmin_Error(t *testing.T) {
	_, err := ConnectAdmin(mysqlConfig("127.0.0.1", 1, "x"))
	if err == nil {
		t.Fatal("expected error connecting to invalid port")
	}
	if !strings.Contains(err.Error(), "db: admin connect to") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "db: admin connect to")
	}
}

func TestCreateDatabase_Signature(t *testing.T) {
	var create func(*gorm.DB, string) error = CreateDatabase
	var drop func(*gorm.DB, string) error = DropDatabase
	if create == nil || drop == nil {
		t.Fatal("database helpers are nil")
	}
}

func TestAllModels_Count(t *testing.T) {
	if n := len(AllModels()); n != 4 {
		t.Errorf("AllModels() returned %d models, want 4", n)
	}
}

func TestScoped_Deadline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoped.db")
	gdb, err := Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, Options{})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	scoped, cancel := Scoped(context.Background(), gdb, time.Minute)
	defer cancel()
	deadline, ok := scoped.Statement.Context.Deadline()
	if !ok {
		t.Fatal("scoped context has no deadline")
	}
	if time.Until(deadline) > time.Minute {
		t.Errorf("deadline %v too far out", deadline)
	}

	// A non-positive timeout falls back to the default rather than none.
	fallback, cancel2 := Scoped(context.Background(), gdb, 0)
	defer cancel2()
	if _, ok := fallback.Statement.Context.Deadline(); !ok {
		t.Error("fallback scoped context has no deadline")
	}
}

type recordingPrinter struct{ lines []string }

func (r *recordingPrinter) Printf(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func TestConnect_LogsErrorsThroughPrinter(t *testing.T) {
	rec := &recordingPrinter{}
	path := filepath.Join(t.TempDir(), "log.db")
	gdb, err := Connect(config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, Options{Log: rec})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	_ = gdb.Exec("SELECT * FROM no_such_table").Error
	if len(rec.lines) == 0 {
		t.Error("expected the failing statement to be logged")
	}
}
