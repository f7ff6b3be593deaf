package depsys

// AccessMap is a task's small address→AccessState container (§4.1).
// Below linearCutoff entries it is a linearly-scanned array pair; above
// it, a hash map. Both branches expose the same GetOrAllocate contract.
type AccessMap struct {
	linearCutoff int

	addrs []uintptr
	descs []*AccessState

	hashed map[uintptr]*AccessState
}

// NewAccessMap creates an empty AccessMap that switches from linear scan
// to a hash map once it would exceed linearCutoff entries.
func NewAccessMap(linearCutoff int) *AccessMap {
	if linearCutoff <= 0 {
		linearCutoff = 20
	}
	return &AccessMap{linearCutoff: linearCutoff}
}

// Find returns the access registered at addr, or nil.
func (m *AccessMap) Find(addr uintptr) *AccessState {
	if m.hashed != nil {
		return m.hashed[addr]
	}
	for i, a := range m.addrs {
		if a == addr {
			return m.descs[i]
		}
	}
	return nil
}

// GetOrAllocate returns (access, existed) for addr: if an access already
// exists, the caller is expected to upgrade it in place via Upgrade; else
// a new entry is appended and existed is false. Iteration order is
// unspecified, matching §4.1.
func (m *AccessMap) GetOrAllocate(addr uintptr, alloc func() *AccessState) (access *AccessState, existed bool) {
	if existing := m.Find(addr); existing != nil {
		return existing, true
	}

	a := alloc()

	if m.hashed != nil {
		m.hashed[addr] = a
		return a, false
	}

	if len(m.addrs) >= m.linearCutoff {
		m.promoteToHash()
		m.hashed[addr] = a
		return a, false
	}

	m.addrs = append(m.addrs, addr)
	m.descs = append(m.descs, a)
	return a, false
}

func (m *AccessMap) promoteToHash() {
	m.hashed = make(map[uintptr]*AccessState, len(m.addrs)*2)
	for i, addr := range m.addrs {
		m.hashed[addr] = m.descs[i]
	}
	m.addrs = nil
	m.descs = nil
}

// Len returns the number of registered accesses.
func (m *AccessMap) Len() int {
	if m.hashed != nil {
		return len(m.hashed)
	}
	return len(m.addrs)
}

// ForAll calls fn for every (address, access) pair. Iteration order is
// unspecified; correctness does not depend on it (§4.1).
func (m *AccessMap) ForAll(fn func(addr uintptr, a *AccessState)) {
	if m.hashed != nil {
		for addr, a := range m.hashed {
			fn(addr, a)
		}
		return
	}
	for i, addr := range m.addrs {
		fn(addr, m.descs[i])
	}
}
