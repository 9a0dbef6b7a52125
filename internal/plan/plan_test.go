package plan

import (
	"testing"
	"time"

	"github.com/zulandar/planyard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const project = "proj-1"

var fixedNow = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

// testDB opens an in-memory SQLite database with the plan tables and pins
// the engine clock to fixedNow.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Plan{}, &models.Task{}, &models.TaskDep{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	prev := timeNow
	timeNow = func() time.Time { return fixedNow }
	t.Cleanup(func() { timeNow = prev })
	return db
}

func seedPlan(t *testing.T, db *gorm.DB) *models.Plan {
	t.Helper()
	p, err := CreatePlan(db, CreatePlanOpts{ProjectID: project, Title: "Launch"})
	if err != nil {
		t.Fatalf("CreatePlan: %v", err)
	}
	return p
}

// seedTask inserts a task straight into the store. mut may adjust defaults.
func seedTask(t *testing.T, db *gorm.DB, p *models.Plan, id string, orderIndex int, mut func(*models.Task)) {
	t.Helper()
	task := models.Task{
		ID:         id,
		ProjectID:  p.ProjectID,
		PlanID:     p.ID,
		Title:      "Task " + id,
		Module:     "core",
		Status:     models.StatusPlanned,
		Priority:   models.DefaultPriority,
		OrderIndex: orderIndex,
		Source:     "manual",
		Version:    1,
	}
	if mut != nil {
		mut(&task)
	}
	if err := db.Create(&task).Error; err != nil {
		t.Fatalf("create task %s: %v", id, err)
	}
}

func seedDep(t *testing.T, db *gorm.DB, taskID, dependsOn string) {
	t.Helper()
	if err := db.Create(&models.TaskDep{TaskID: taskID, DependsOnID: dependsOn}).Error; err != nil {
		t.Fatalf("create dep %s -> %s: %v", taskID, dependsOn, err)
	}
}

func reload(t *testing.T, db *gorm.DB, id string) models.Task {
	t.Helper()
	var task models.Task
	if err := db.Preload("Deps").First(&task, "id = ?", id).Error; err != nil {
		t.Fatalf("reload %s: %v", id, err)
	}
	task.FillDependsOn()
	return task
}

func day(s string) *time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &d
}

func str(s string) *string { return &s }
func num(n int) *int       { return &n }

func sameDay(got *time.Time, want string) bool {
	return got != nil && got.UTC().Format(time.DateOnly) == want
}
