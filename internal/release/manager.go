package release

import "sync"

// Manager accumulates the per-domain outcome of one release run.
// Reading the messages for a domain never creates an entry for it, so
// peeking at a clean domain cannot inflate the error domain count.
type Manager struct {
	mu                sync.Mutex
	errorsByDomain    map[string][]string
	successesByDomain map[string][]string
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{
		errorsByDomain:    make(map[string][]string),
		successesByDomain: make(map[string][]string),
	}
}

// AddError records one error message for a domain.
func (m *Manager) AddError(domain, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsByDomain[domain] = append(m.errorsByDomain[domain], message)
}

// AddSuccess records one success message for a domain.
func (m *Manager) AddSuccess(domain, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successesByDomain[domain] = append(m.successesByDomain[domain], message)
}

// ErrorsForDomain returns a copy of the error messages for a domain.
func (m *Manager) ErrorsForDomain(domain string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyMessages(m.errorsByDomain[domain])
}

// SuccessesForDomain returns a copy of the success messages for a
// domain.
func (m *Manager) SuccessesForDomain(domain string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyMessages(m.successesByDomain[domain])
}

// ErrorDomainCount returns how many domains recorded at least one
// error.
func (m *Manager) ErrorDomainCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, messages := range m.errorsByDomain {
		if len(messages) > 0 {
			count++
		}
	}
	return count
}

// Domains returns every domain that recorded any outcome.
func (m *Manager) Domains() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool, len(m.errorsByDomain)+len(m.successesByDomain))
	domains := make([]string, 0, len(seen))
	for domain := range m.successesByDomain {
		if !seen[domain] {
			seen[domain] = true
			domains = append(domains, domain)
		}
	}
	for domain := range m.errorsByDomain {
		if !seen[domain] {
			seen[domain] = true
			domains = append(domains, domain)
		}
	}
	return domains
}

func copyMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, len(messages))
	copy(out, messages)
	return out
}
