package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryRegistry is a concurrency-safe in-memory Registry, used in tests
// and as the degraded-mode store when no database is configured.
type MemoryRegistry struct {
	mu         sync.RWMutex
	devices    map[uuid.UUID]*Device
	branches   map[uuid.UUID]*Branch
	items      map[uuid.UUID][]*MonitoringItem
	creds      map[uuid.UUID]*SNMPCredential
	interfaces map[uuid.UUID][]*Interface
}

// NewMemoryRegistry returns an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		devices:    make(map[uuid.UUID]*Device),
		branches:   make(map[uuid.UUID]*Branch),
		items:      make(map[uuid.UUID][]*MonitoringItem),
		creds:      make(map[uuid.UUID]*SNMPCredential),
		interfaces: make(map[uuid.UUID][]*Interface),
	}
}

var _ Registry = (*MemoryRegistry)(nil)
var _ transactionalRegistry = (*MemoryRegistry)(nil)

func (r *MemoryRegistry) ListEnabled(_ context.Context) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		if d.Enabled {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRegistry) List(_ context.Context, f Filter) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		if f.DeviceType != "" && d.DeviceType != f.DeviceType {
			continue
		}
		if f.BranchID != nil && (d.BranchID == nil || *d.BranchID != *f.BranchID) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	return applyStatusFilter(out, f), nil
}

func (r *MemoryRegistry) Get(_ context.Context, id uuid.UUID) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s not found", id)
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryRegistry) GetByIP(_ context.Context, ip string) ([]*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Device
	for _, d := range r.devices {
		if d.IP == ip {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MemoryRegistry) Create(_ context.Context, d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *MemoryRegistry) CreateBatch(_ context.Context, devices []*Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range devices {
		cp := *d
		r.devices[d.ID] = &cp
	}
	return nil
}

func (r *MemoryRegistry) Update(_ context.Context, d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[d.ID]; !ok {
		return fmt.Errorf("device %s not found", d.ID)
	}
	cp := *d
	r.devices[d.ID] = &cp
	return nil
}

func (r *MemoryRegistry) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, id)
	delete(r.items, id)
	delete(r.creds, id)
	delete(r.interfaces, id)
	return nil
}

func (r *MemoryRegistry) ItemsForDevice(_ context.Context, deviceID uuid.UUID) ([]*MonitoringItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*MonitoringItem(nil), r.items[deviceID]...), nil
}

func (r *MemoryRegistry) CredentialForDevice(_ context.Context, deviceID uuid.UUID) (*SNMPCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creds[deviceID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRegistry) UpsertCredential(_ context.Context, cred *SNMPCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cred
	r.creds[cred.DeviceID] = &cp
	return nil
}

func (r *MemoryRegistry) InterfacesForDevice(_ context.Context, deviceID uuid.UUID) ([]*Interface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Interface(nil), r.interfaces[deviceID]...), nil
}

func (r *MemoryRegistry) UpsertInterfaces(_ context.Context, deviceID uuid.UUID, ifaces []*Interface) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interfaces[deviceID] = append([]*Interface(nil), ifaces...)
	return nil
}

func (r *MemoryRegistry) ListBranches(_ context.Context) ([]*Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Branch, 0, len(r.branches))
	for _, b := range r.branches {
		cp := *b
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MemoryRegistry) GetBranch(_ context.Context, id uuid.UUID) (*Branch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.branches[id]
	if !ok {
		return nil, fmt.Errorf("branch %s not found", id)
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRegistry) CreateBranch(_ context.Context, b *Branch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	cp := *b
	r.branches[b.ID] = &cp
	return nil
}

func (r *MemoryRegistry) DeleteBranch(_ context.Context, id uuid.UUID, cascade bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	hasDevices := false
	for _, d := range r.devices {
		if d.BranchID != nil && *d.BranchID == id {
			hasDevices = true
			if cascade {
				d.BranchID = nil
			}
		}
	}
	if hasDevices && !cascade {
		return fmt.Errorf("branch %s still referenced by devices", id)
	}
	delete(r.branches, id)
	return nil
}

func (r *MemoryRegistry) ApplyProbeResult(_ context.Context, id uuid.UUID, d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.devices[id]; !ok {
		return fmt.Errorf("device %s not found", id)
	}
	cp := *d
	r.devices[id] = &cp
	return nil
}
