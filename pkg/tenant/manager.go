package tenant

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/therealutkarshpriyadarshi/dci/pkg/dci"
)

// Quota represents resource limits for a namespace
type Quota struct {
	MaxPoints     int64 // Maximum number of indexed points
	MaxDimensions int   // Maximum vector dimensions
	RateLimitQPS  int   // Queries per second limit
}

// Tenant represents a namespace owning one DCI index
type Tenant struct {
	ID        string
	Namespace string
	Quota     Quota
	Index     *dci.Index
	CreatedAt time.Time
	UpdatedAt time.Time

	mu            sync.Mutex
	lastQueryTime time.Time
	queryCount    int64
}

// Manager handles namespace lifecycle and resource enforcement
type Manager struct {
	maxNamespaces int
	tenants       map[string]*Tenant
	mu            sync.RWMutex
}

// NewManager creates a new namespace manager
func NewManager(maxNamespaces int) *Manager {
	return &Manager{
		maxNamespaces: maxNamespaces,
		tenants:       make(map[string]*Tenant),
	}
}

// Create creates a new namespace with its own index and quota
func (m *Manager) Create(namespace string, cfg dci.Config, quota Quota) (*Tenant, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tenants[namespace]; exists {
		return nil, fmt.Errorf("namespace '%s' already exists", namespace)
	}
	if m.maxNamespaces > 0 && len(m.tenants) >= m.maxNamespaces {
		return nil, fmt.Errorf("namespace limit reached (%d)", m.maxNamespaces)
	}
	if quota.MaxDimensions > 0 && cfg.Dim > quota.MaxDimensions {
		return nil, fmt.Errorf("dimension quota exceeded: requested=%d, max=%d",
			cfg.Dim, quota.MaxDimensions)
	}

	index, err := dci.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	tenant := &Tenant{
		ID:        uuid.NewString(),
		Namespace: namespace,
		Quota:     quota,
		Index:     index,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	m.tenants[namespace] = tenant
	return tenant, nil
}

// Get retrieves a namespace
func (m *Manager) Get(namespace string) (*Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenant, exists := m.tenants[namespace]
	if !exists {
		return nil, fmt.Errorf("namespace '%s' not found", namespace)
	}

	return tenant, nil
}

// GetOrCreate retrieves a namespace, creating it on first use
func (m *Manager) GetOrCreate(namespace string, cfg dci.Config, quota Quota) (*Tenant, error) {
	if tenant, err := m.Get(namespace); err == nil {
		return tenant, nil
	}

	tenant, err := m.Create(namespace, cfg, quota)
	if err != nil {
		// Lost a race with a concurrent creator
		if existing, getErr := m.Get(namespace); getErr == nil {
			return existing, nil
		}
		return nil, err
	}

	return tenant, nil
}

// Delete removes a namespace and releases its index
func (m *Manager) Delete(namespace string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tenant, exists := m.tenants[namespace]
	if !exists {
		return fmt.Errorf("namespace '%s' not found", namespace)
	}

	tenant.Index.Clear()
	delete(m.tenants, namespace)
	return nil
}

// List returns all namespaces
func (m *Manager) List() []*Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tenants := make([]*Tenant, 0, len(m.tenants))
	for _, tenant := range m.tenants {
		tenants = append(tenants, tenant)
	}

	return tenants
}

// Count returns the number of active namespaces
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tenants)
}

// UpdateQuota updates the quota for a namespace
func (m *Manager) UpdateQuota(namespace string, quota Quota) error {
	tenant, err := m.Get(namespace)
	if err != nil {
		return err
	}

	tenant.mu.Lock()
	defer tenant.mu.Unlock()

	tenant.Quota = quota
	tenant.UpdatedAt = time.Now()

	return nil
}

// CheckPointQuota checks if indexing count points would exceed quota
func (t *Tenant) CheckPointQuota(count int64) error {
	if t.Quota.MaxPoints > 0 && count > t.Quota.MaxPoints {
		return fmt.Errorf("point quota exceeded: requested=%d, max=%d",
			count, t.Quota.MaxPoints)
	}

	return nil
}

// CheckRateLimit checks if the query rate limit is exceeded
func (t *Tenant) CheckRateLimit() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Quota.RateLimitQPS <= 0 {
		return nil
	}

	now := time.Now()
	if now.Sub(t.lastQueryTime) < time.Second {
		if t.queryCount >= int64(t.Quota.RateLimitQPS) {
			return fmt.Errorf("rate limit exceeded: %d queries per second (max: %d)",
				t.queryCount, t.Quota.RateLimitQPS)
		}
	} else {
		t.queryCount = 0
		t.lastQueryTime = now
	}

	t.queryCount++
	return nil
}

// Touch records a mutation time on the namespace
func (t *Tenant) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.UpdatedAt = time.Now()
}

// DefaultQuota returns a default quota configuration
func DefaultQuota() Quota {
	return Quota{
		MaxPoints:     1000000, // 1M points
		MaxDimensions: 4096,
		RateLimitQPS:  1000,
	}
}

// UnlimitedQuota returns an unlimited quota configuration
func UnlimitedQuota() Quota {
	return Quota{
		MaxPoints:     -1,
		MaxDimensions: -1,
		RateLimitQPS:  -1,
	}
}
