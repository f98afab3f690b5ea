package tenant

import (
	"strings"
	"testing"

	"github.com/therealutkarshpriyadarshi/dci/pkg/dci"
)

func testConfig() dci.Config {
	return dci.Config{Dim: 16, NumCompIndices: 2, NumSimpIndices: 5}
}

// TestCreateAndGet tests namespace creation and retrieval
func TestCreateAndGet(t *testing.T) {
	m := NewManager(10)

	tenant, err := m.Create("prod", testConfig(), DefaultQuota())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if tenant.ID == "" {
		t.Error("tenant has empty ID")
	}
	if tenant.Index == nil || tenant.Index.Dimensions() != 16 {
		t.Error("tenant index not initialized")
	}

	got, err := m.Get("prod")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != tenant {
		t.Error("Get returned a different tenant")
	}

	if _, err := m.Get("missing"); err == nil {
		t.Error("expected error for unknown namespace")
	}
}

// TestCreateDuplicate tests that duplicate namespaces are rejected
func TestCreateDuplicate(t *testing.T) {
	m := NewManager(10)

	if _, err := m.Create("a", testConfig(), DefaultQuota()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Create("a", testConfig(), DefaultQuota()); err == nil {
		t.Error("expected error for duplicate namespace")
	}
}

// TestNamespaceLimit tests the namespace count limit
func TestNamespaceLimit(t *testing.T) {
	m := NewManager(2)

	if _, err := m.Create("a", testConfig(), DefaultQuota()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Create("b", testConfig(), DefaultQuota()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := m.Create("c", testConfig(), DefaultQuota()); err == nil {
		t.Error("expected error beyond namespace limit")
	}

	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}
}

// TestGetOrCreate tests lazy namespace creation
func TestGetOrCreate(t *testing.T) {
	m := NewManager(10)

	a, err := m.GetOrCreate("ns", testConfig(), DefaultQuota())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	b, err := m.GetOrCreate("ns", testConfig(), DefaultQuota())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if a != b {
		t.Error("GetOrCreate created a second tenant for the same namespace")
	}
}

// TestDelete tests namespace removal
func TestDelete(t *testing.T) {
	m := NewManager(10)

	if _, err := m.Create("a", testConfig(), DefaultQuota()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := m.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := m.Get("a"); err == nil {
		t.Error("deleted namespace still present")
	}
	if err := m.Delete("a"); err == nil {
		t.Error("expected error deleting absent namespace")
	}
}

// TestDimensionQuota tests the dimension quota at creation
func TestDimensionQuota(t *testing.T) {
	m := NewManager(10)

	quota := DefaultQuota()
	quota.MaxDimensions = 8

	_, err := m.Create("big", testConfig(), quota)
	if err == nil || !strings.Contains(err.Error(), "dimension quota") {
		t.Errorf("expected dimension quota error, got %v", err)
	}
}

// TestPointQuota tests the point count quota
func TestPointQuota(t *testing.T) {
	m := NewManager(10)

	quota := DefaultQuota()
	quota.MaxPoints = 100

	tenant, err := m.Create("ns", testConfig(), quota)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := tenant.CheckPointQuota(100); err != nil {
		t.Errorf("within-quota add rejected: %v", err)
	}
	if err := tenant.CheckPointQuota(101); err == nil {
		t.Error("expected point quota error")
	}

	// Unlimited quota never rejects
	tenant.Quota = UnlimitedQuota()
	if err := tenant.CheckPointQuota(1 << 30); err != nil {
		t.Errorf("unlimited quota rejected add: %v", err)
	}
}

// TestRateLimit tests the per-namespace QPS limit
func TestRateLimit(t *testing.T) {
	m := NewManager(10)

	quota := DefaultQuota()
	quota.RateLimitQPS = 3

	tenant, err := m.Create("ns", testConfig(), quota)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := tenant.CheckRateLimit(); err != nil {
			t.Fatalf("query %d rejected: %v", i, err)
		}
	}
	if err := tenant.CheckRateLimit(); err == nil {
		t.Error("expected rate limit error on fourth query within a second")
	}
}

// TestList tests listing namespaces
func TestList(t *testing.T) {
	m := NewManager(10)

	names := []string{"a", "b", "c"}
	for _, name := range names {
		if _, err := m.Create(name, testConfig(), DefaultQuota()); err != nil {
			t.Fatalf("Create(%s) failed: %v", name, err)
		}
	}

	list := m.List()
	if len(list) != len(names) {
		t.Errorf("List returned %d tenants, want %d", len(list), len(names))
	}
}
