package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"complyhq/sentinel/pkg/rules"
	"complyhq/sentinel/pkg/violations"
)

// createTempDB creates a temporary SQLite database for testing.
func createTempDB(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "violations.db")
	store, err := NewSQLiteStorage(&SQLiteConfig{
		Path:         dbPath,
		MaxOpenConns: 5,
		MaxIdleConns: 2,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create SQLite storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store, dbPath
}

func backends(t *testing.T) map[string]violations.Repository {
	sqlite, _ := createTempDB(t)
	return map[string]violations.Repository{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sample(id, tenant, ruleID string, level rules.RiskLevel, offset time.Duration) *rules.Violation {
	return &rules.Violation{
		ID:       id,
		TenantID: tenant,
		RuleID:   ruleID,
		RuleName: "rule " + ruleID,
		Rule: &rules.Rule{
			ID:      ruleID,
			Name:    "rule " + ruleID,
			Pattern: rules.Pattern{Type: rules.PatternSOD, ConflictingRoles: []string{"A", "B"}},
			Risk:    rules.Risk{Level: level, Score: 80},
		},
		Data:      map[string]any{"userId": "u1", "roles": []any{"A", "B"}},
		Risk:      rules.Risk{Level: level, Score: 80},
		Timestamp: base.Add(offset),
		Status:    rules.StatusDetected,
	}
}

func TestSQLiteStorage_Initialize(t *testing.T) {
	_, dbPath := createTempDB(t)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}

	// Reopening an existing database must accept the stored schema version.
	again, err := NewSQLiteStorage(&SQLiteConfig{Path: dbPath, WALMode: true, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	again.Close()
}

func TestRepository_SaveAndGet(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v := sample("v1", "t1", "r1", rules.RiskCritical, 0)
			if err := repo.Save(ctx, v); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			got, err := repo.Get(ctx, "v1")
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got.RuleID != "r1" || got.TenantID != "t1" || got.Risk.Level != rules.RiskCritical {
				t.Errorf("unexpected violation: %+v", got)
			}
			if !got.Timestamp.Equal(v.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, v.Timestamp)
			}
			if got.Data["userId"] != "u1" {
				t.Errorf("Data = %v", got.Data)
			}
			if got.Rule == nil || len(got.Rule.Pattern.ConflictingRoles) != 2 {
				t.Errorf("rule snapshot not restored: %+v", got.Rule)
			}

			if err := repo.Save(ctx, v); !errors.Is(err, violations.ErrDuplicate) {
				t.Errorf("second Save() error = %v, want ErrDuplicate", err)
			}

			var nf *violations.NotFoundError
			if _, err := repo.Get(ctx, "missing"); !errors.As(err, &nf) {
				t.Errorf("Get(missing) error = %v, want NotFoundError", err)
			}
		})
	}
}

func TestRepository_ListByTenant(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, v := range []*rules.Violation{
				sample("a", "t1", "r1", rules.RiskHigh, 1*time.Minute),
				sample("b", "t1", "r2", rules.RiskLow, 3*time.Minute),
				sample("c", "t1", "r1", rules.RiskCritical, 2*time.Minute),
				sample("d", "t2", "r1", rules.RiskCritical, 4*time.Minute),
			} {
				if err := repo.Save(ctx, v); err != nil {
					t.Fatal(err)
				}
			}

			all, err := repo.ListByTenant(ctx, "t1", nil)
			if err != nil {
				t.Fatalf("ListByTenant() error = %v", err)
			}
			if ids := idsOf(all); ids != "b,c,a" {
				t.Errorf("order = %s, want b,c,a", ids)
			}

			tests := []struct {
				name   string
				filter *violations.Filter
				want   string
			}{
				{"rule", &violations.Filter{RuleID: "r1"}, "c,a"},
				{"risk", &violations.Filter{RiskLevels: []rules.RiskLevel{rules.RiskLow, rules.RiskCritical}}, "b,c"},
				{"since", &violations.Filter{Since: base.Add(2 * time.Minute)}, "b,c"},
				{"until", &violations.Filter{Until: base.Add(2 * time.Minute)}, "a"},
				{"limit", &violations.Filter{Limit: 1}, "b"},
				{"status", &violations.Filter{Statuses: []rules.Status{rules.StatusResolved}}, ""},
			}
			for _, tt := range tests {
				got, err := repo.ListByTenant(ctx, "t1", tt.filter)
				if err != nil {
					t.Fatalf("%s: error = %v", tt.name, err)
				}
				if ids := idsOf(got); ids != tt.want {
					t.Errorf("%s: got %q, want %q", tt.name, ids, tt.want)
				}
			}
		})
	}
}

func TestRepository_UpdateStatus(t *testing.T) {
	for name, repo := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := repo.Save(ctx, sample("v1", "t1", "r1", rules.RiskHigh, 0)); err != nil {
				t.Fatal(err)
			}

			if err := repo.UpdateStatus(ctx, "v1", rules.StatusAcknowledged); err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			got, _ := repo.Get(ctx, "v1")
			if got.Status != rules.StatusAcknowledged {
				t.Errorf("Status = %s, want ACKNOWLEDGED", got.Status)
			}

			if err := repo.UpdateStatus(ctx, "v1", "CLOSED"); !errors.Is(err, violations.ErrInvalidStatus) {
				t.Errorf("invalid status error = %v", err)
			}
			var nf *violations.NotFoundError
			if err := repo.UpdateStatus(ctx, "nope", rules.StatusResolved); !errors.As(err, &nf) {
				t.Errorf("missing id error = %v", err)
			}
		})
	}
}

func TestMemoryStorage_CopiesRecords(t *testing.T) {
	repo := NewMemoryStorage()
	ctx := context.Background()
	v := sample("v1", "t1", "r1", rules.RiskHigh, 0)
	if err := repo.Save(ctx, v); err != nil {
		t.Fatal(err)
	}
	v.Data["userId"] = "mutated"

	got, _ := repo.Get(ctx, "v1")
	if got.Data["userId"] != "u1" {
		t.Errorf("stored record was mutated through caller reference")
	}
}

func idsOf(vs []*rules.Violation) string {
	s := ""
	for i, v := range vs {
		if i > 0 {
			s += ","
		}
		s += v.ID
	}
	return s
}
