// Package memory is a fully in-memory store backend. Safe for
// concurrent access; intended for unit testing and development. Every
// mutation happens under one mutex, so the atomicity contracts the
// subsystem interfaces demand (conditional claim, guarded inserts,
// idempotent expiry) hold trivially.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/alteration"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/lock"
	"github.com/tank-bohr/baza/tenant"
	"github.com/tank-bohr/baza/valve"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ tenant.Store     = (*Store)(nil)
	_ job.Store        = (*Store)(nil)
	_ lock.Store       = (*Store)(nil)
	_ valve.Store      = (*Store)(nil)
	_ alteration.Store = (*Store)(nil)
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	mu sync.RWMutex

	tenants     map[string]*tenant.Tenant
	tokens      map[string]*tenant.Token
	secrets     map[string]*tenant.Secret
	jobs        map[string]*job.Job
	results     map[string]*job.Result // key: job ID
	trails      map[string][]*job.Trail
	locks       map[string]*lock.Lock // key: "tenantID/name"
	valves      map[string]*valve.Valve
	alterations map[string]*alteration.Alteration
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		tenants:     make(map[string]*tenant.Tenant),
		tokens:      make(map[string]*tenant.Token),
		secrets:     make(map[string]*tenant.Secret),
		jobs:        make(map[string]*job.Job),
		results:     make(map[string]*job.Result),
		trails:      make(map[string][]*job.Trail),
		locks:       make(map[string]*lock.Lock),
		valves:      make(map[string]*valve.Valve),
		alterations: make(map[string]*alteration.Alteration),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Tenant Store
// ──────────────────────────────────────────────────

// EnsureTenant creates the tenant for login if it is missing.
func (m *Store) EnsureTenant(_ context.Context, login string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	login = strings.ToLower(login)
	for _, t := range m.tenants {
		if t.Login == login {
			cp := *t
			return &cp, nil
		}
	}

	t := &tenant.Tenant{
		Entity: baza.NewEntity(),
		ID:     id.NewTenantID(),
		Login:  login,
	}
	m.tenants[t.ID.String()] = t
	cp := *t
	return &cp, nil
}

// GetTenant retrieves a tenant by ID.
func (m *Store) GetTenant(_ context.Context, tenantID id.TenantID) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tenants[tenantID.String()]
	if !ok {
		return nil, baza.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

// FindTenant retrieves a tenant by login.
func (m *Store) FindTenant(_ context.Context, login string) (*tenant.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	login = strings.ToLower(login)
	for _, t := range m.tenants {
		if t.Login == login {
			cp := *t
			return &cp, nil
		}
	}
	return nil, baza.ErrTenantNotFound
}

// CreateToken persists a new API token.
func (m *Store) CreateToken(_ context.Context, t *tenant.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *t
	m.tokens[t.ID.String()] = &cp
	return nil
}

// GetToken retrieves a token by ID.
func (m *Store) GetToken(_ context.Context, tokenID id.TokenID) (*tenant.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tokens[tokenID.String()]
	if !ok {
		return nil, baza.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

// TokenByText retrieves a token by its secret text.
func (m *Store) TokenByText(_ context.Context, text string) (*tenant.Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.tokens {
		if t.Text == text {
			cp := *t
			return &cp, nil
		}
	}
	return nil, baza.ErrTokenNotFound
}

// DeactivateToken marks a token inactive.
func (m *Store) DeactivateToken(_ context.Context, tokenID id.TokenID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[tokenID.String()]
	if !ok {
		return baza.ErrTokenNotFound
	}
	t.Active = false
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// AddSecret persists a new secret, rejecting duplicates of the
// (tenant, name, key) triple.
func (m *Store) AddSecret(_ context.Context, s *tenant.Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.secrets {
		if existing.TenantID == s.TenantID && existing.Name == s.Name && existing.Key == s.Key {
			return baza.ErrSecretExists
		}
	}
	cp := *s
	m.secrets[s.ID.String()] = &cp
	return nil
}

// SecretsFor returns the tenant's secrets for the job name, by key.
func (m *Store) SecretsFor(_ context.Context, tenantID id.TenantID, name string) ([]*tenant.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*tenant.Secret
	for _, s := range m.secrets {
		if s.TenantID == tenantID && s.Name == name {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ShareableSecrets returns every shareable secret across all tenants.
func (m *Store) ShareableSecrets(_ context.Context) ([]*tenant.Secret, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*tenant.Secret
	for _, s := range m.secrets {
		if s.Shareable {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// DeleteSecret removes a secret owned by the tenant.
func (m *Store) DeleteSecret(_ context.Context, tenantID id.TenantID, secretID id.SecretID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.secrets[secretID.String()]
	if !ok || s.TenantID != tenantID {
		return baza.ErrSecretNotFound
	}
	delete(m.secrets, secretID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Job Store
// ──────────────────────────────────────────────────

// SubmitJob persists a new job.
func (m *Store) SubmitJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return baza.ErrJobAlreadyExists
	}
	cp := copyJob(j)
	m.jobs[key] = cp
	return nil
}

// GetJob retrieves a job by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, baza.ErrJobNotFound
	}
	return copyJob(j), nil
}

// RecentJob returns the newest non-expired job with the given name.
func (m *Store) RecentJob(_ context.Context, tenantID id.TenantID, name string) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var recent *job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || j.Name != name || j.Expired() {
			continue
		}
		if recent == nil || j.CreatedAt.After(recent.CreatedAt) {
			recent = j
		}
	}
	if recent == nil {
		return nil, baza.ErrJobNotFound
	}
	return copyJob(recent), nil
}

// NameBusy reports whether an un-expired, unfinished job holds the name.
func (m *Store) NameBusy(_ context.Context, tenantID id.TenantID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.TenantID != tenantID || j.Name != name || j.Expired() {
			continue
		}
		if _, finished := m.results[j.ID.String()]; !finished {
			return true, nil
		}
	}
	return false, nil
}

// NameExists reports whether any un-expired job holds the name.
func (m *Store) NameExists(_ context.Context, tenantID id.TenantID, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, j := range m.jobs {
		if j.TenantID == tenantID && j.Name == name && !j.Expired() {
			return true, nil
		}
	}
	return false, nil
}

// UnclaimedJobs returns unclaimed, unfinished jobs in FIFO order.
func (m *Store) UnclaimedJobs(_ context.Context) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*job.Job
	for _, j := range m.jobs {
		if j.Expired() || j.Taken != "" {
			continue
		}
		if _, finished := m.results[j.ID.String()]; finished {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// TakeJob claims the job for owner iff it is still unclaimed.
func (m *Store) TakeJob(_ context.Context, jobID id.JobID, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return false, baza.ErrJobNotFound
	}
	if j.Taken != "" || j.Expired() {
		return false, nil
	}
	if _, finished := m.results[jobID.String()]; finished {
		return false, nil
	}

	now := time.Now().UTC()
	j.Taken = owner
	j.TakenAt = &now
	j.UpdatedAt = now
	return true, nil
}

// ReleaseJob clears the claim iff owner holds it.
func (m *Store) ReleaseJob(_ context.Context, jobID id.JobID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return baza.ErrJobNotFound
	}
	if j.Taken != owner {
		return nil
	}
	j.Taken = ""
	j.TakenAt = nil
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// FinishJob attaches the result, refusing a duplicate.
func (m *Store) FinishJob(_ context.Context, r *job.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.JobID.String()
	if _, ok := m.jobs[key]; !ok {
		return baza.ErrJobNotFound
	}
	if _, exists := m.results[key]; exists {
		return baza.ErrResultExists
	}
	cp := *r
	m.results[key] = &cp
	return nil
}

// FailJob records a failed run: inserts or amends the result and writes
// the note into the job's Taken field.
func (m *Store) FailJob(_ context.Context, jobID id.JobID, text, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	j, ok := m.jobs[key]
	if !ok {
		return baza.ErrJobNotFound
	}

	now := time.Now().UTC()
	if r, exists := m.results[key]; exists {
		r.Stdout = text + "\n" + r.Stdout
		r.Exit = 1
		r.UpdatedAt = now
	} else {
		m.results[key] = &job.Result{
			Entity: baza.NewEntity(),
			ID:     id.NewResultID(),
			JobID:  jobID,
			Stdout: text,
			Exit:   1,
			Msec:   1,
		}
	}

	j.Taken = truncate(note, 255)
	j.UpdatedAt = now
	return nil
}

// ResultFor returns the job's result.
func (m *Store) ResultFor(_ context.Context, jobID id.JobID) (*job.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.results[jobID.String()]
	if !ok {
		return nil, baza.ErrResultNotFound
	}
	cp := *r
	return &cp, nil
}

// CleanStreak counts consecutive recent clean runs of the name before
// the given job.
func (m *Store) CleanStreak(_ context.Context, tenantID id.TenantID, name string, before id.JobID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var chain []*job.Job
	for _, j := range m.jobs {
		if j.TenantID != tenantID || j.Name != name || j.Expired() || j.ID == before {
			continue
		}
		chain = append(chain, j)
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].CreatedAt.After(chain[j].CreatedAt) })

	streak := 0
	for _, j := range chain {
		r, finished := m.results[j.ID.String()]
		if !finished || r.Exit != 0 || r.Errors > 0 {
			break
		}
		streak++
	}
	return streak, nil
}

// ExpireJob stamps the expiry iff it is not set yet.
func (m *Store) ExpireJob(_ context.Context, jobID id.JobID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return baza.ErrJobNotFound
	}
	if j.Expired() {
		return nil
	}
	at = at.UTC()
	j.ExpiredAt = &at
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// ExpirableJobs returns un-expired jobs whose result is older than the
// threshold.
func (m *Store) ExpirableJobs(_ context.Context, olderThan time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*job.Job
	for _, j := range m.jobs {
		if j.Expired() {
			continue
		}
		r, finished := m.results[j.ID.String()]
		if !finished || r.CreatedAt.After(cutoff) {
			continue
		}
		out = append(out, copyJob(j))
	}
	sortByCreated(out)
	return out, nil
}

// StuckJobs returns un-expired jobs claimed longer ago than the
// threshold with no result.
func (m *Store) StuckJobs(_ context.Context, olderThan time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*job.Job
	for _, j := range m.jobs {
		if j.Expired() || j.Taken == "" || j.TakenAt == nil || j.TakenAt.After(cutoff) {
			continue
		}
		if _, finished := m.results[j.ID.String()]; finished {
			continue
		}
		out = append(out, copyJob(j))
	}
	sortByCreated(out)
	return out, nil
}

// TestJobs returns un-expired jobs submitted with the disposable test
// token, older than the threshold.
func (m *Store) TestJobs(_ context.Context, olderThan time.Duration) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-olderThan)
	var out []*job.Job
	for _, j := range m.jobs {
		if j.Expired() || j.CreatedAt.After(cutoff) {
			continue
		}
		t, ok := m.tokens[j.TokenID.String()]
		if !ok || !t.Tester() {
			continue
		}
		out = append(out, copyJob(j))
	}
	sortByCreated(out)
	return out, nil
}

// RecordTrail persists one diagnostic artifact of a run.
func (m *Store) RecordTrail(_ context.Context, t *job.Trail) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.JobID.String()
	if _, ok := m.jobs[key]; !ok {
		return baza.ErrJobNotFound
	}
	cp := *t
	cp.Data = append([]byte(nil), t.Data...)
	m.trails[key] = append(m.trails[key], &cp)
	return nil
}

// TrailsFor returns the job's trails in creation order.
func (m *Store) TrailsFor(_ context.Context, jobID id.JobID) ([]*job.Trail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trails := m.trails[jobID.String()]
	out := make([]*job.Trail, 0, len(trails))
	for _, t := range trails {
		cp := *t
		cp.Data = append([]byte(nil), t.Data...)
		out = append(out, &cp)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Lock Store
// ──────────────────────────────────────────────────

// AcquireLock creates or re-affirms the lock for owner.
func (m *Store) AcquireLock(_ context.Context, tenantID id.TenantID, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockKey(tenantID, name)
	if l, held := m.locks[key]; held {
		if l.Owner == owner {
			l.UpdatedAt = time.Now().UTC()
			return nil
		}
		return &baza.LockHeldError{Name: name, Holder: l.Owner}
	}

	m.locks[key] = &lock.Lock{
		Entity:   baza.NewEntity(),
		ID:       id.NewLockID(),
		TenantID: tenantID,
		Name:     name,
		Owner:    owner,
	}
	return nil
}

// ReleaseLock deletes the lock iff owner holds it.
func (m *Store) ReleaseLock(_ context.Context, tenantID id.TenantID, name, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockKey(tenantID, name)
	if l, held := m.locks[key]; held && l.Owner == owner {
		delete(m.locks, key)
	}
	return nil
}

// LockHolder returns the current holder, or "".
func (m *Store) LockHolder(_ context.Context, tenantID id.TenantID, name string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if l, held := m.locks[lockKey(tenantID, name)]; held {
		return l.Owner, nil
	}
	return "", nil
}

// ListLocks returns the tenant's locks, newest first, with job counts.
func (m *Store) ListLocks(_ context.Context, tenantID id.TenantID) ([]*lock.Lock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*lock.Lock
	for _, l := range m.locks {
		if l.TenantID != tenantID {
			continue
		}
		cp := *l
		cp.Jobs = m.countJobs(tenantID, l.Name)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteLock removes a lock by ID regardless of holder.
func (m *Store) DeleteLock(_ context.Context, tenantID id.TenantID, lockID id.LockID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, l := range m.locks {
		if l.TenantID == tenantID && l.ID == lockID {
			delete(m.locks, key)
			return nil
		}
	}
	return baza.ErrLockNotFound
}

// BreakLock removes the named lock regardless of holder.
func (m *Store) BreakLock(_ context.Context, tenantID id.TenantID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.locks, lockKey(tenantID, name))
	return nil
}

// ──────────────────────────────────────────────────
// Valve Store
// ──────────────────────────────────────────────────

// CreateValve inserts an unresolved valve, rejecting a duplicate key.
func (m *Store) CreateValve(_ context.Context, v *valve.Valve) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.valves {
		if existing.TenantID == v.TenantID && existing.Name == v.Name && existing.Badge == v.Badge {
			return baza.ErrValveExists
		}
	}
	cp := *v
	cp.Result = append([]byte(nil), v.Result...)
	m.valves[v.ID.String()] = &cp
	return nil
}

// ResolveValve persists the winner's result.
func (m *Store) ResolveValve(_ context.Context, valveID id.ValveID, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.valves[valveID.String()]
	if !ok {
		return baza.ErrValveNotFound
	}
	v.Result = append([]byte(nil), result...)
	v.Resolved = true
	v.UpdatedAt = time.Now().UTC()
	return nil
}

// GetValve retrieves a valve by key.
func (m *Store) GetValve(_ context.Context, tenantID id.TenantID, name, badge string) (*valve.Valve, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, v := range m.valves {
		if v.TenantID == tenantID && v.Name == name && v.Badge == badge {
			cp := *v
			cp.Result = append([]byte(nil), v.Result...)
			return &cp, nil
		}
	}
	return nil, baza.ErrValveNotFound
}

// RemoveValve deletes a valve row; missing rows are ignored.
func (m *Store) RemoveValve(_ context.Context, valveID id.ValveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.valves, valveID.String())
	return nil
}

// DeleteValve removes a valve by ID on behalf of its tenant.
func (m *Store) DeleteValve(_ context.Context, tenantID id.TenantID, valveID id.ValveID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.valves[valveID.String()]
	if !ok || v.TenantID != tenantID {
		return baza.ErrValveNotFound
	}
	delete(m.valves, valveID.String())
	return nil
}

// ListValves returns the tenant's valves, newest first, with job counts.
func (m *Store) ListValves(_ context.Context, tenantID id.TenantID) ([]*valve.Valve, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*valve.Valve
	for _, v := range m.valves {
		if v.TenantID != tenantID {
			continue
		}
		cp := *v
		cp.Result = append([]byte(nil), v.Result...)
		cp.Jobs = m.countJobs(tenantID, v.Name)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ──────────────────────────────────────────────────
// Alteration Store
// ──────────────────────────────────────────────────

// AddAlteration persists a new pending alteration.
func (m *Store) AddAlteration(_ context.Context, a *alteration.Alteration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *a
	m.alterations[a.ID.String()] = &cp
	return nil
}

// PendingAlterations returns pending alterations for the name, oldest
// first.
func (m *Store) PendingAlterations(_ context.Context, tenantID id.TenantID, name string) ([]*alteration.Alteration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*alteration.Alteration
	for _, a := range m.alterations {
		if a.TenantID == tenantID && a.Name == name && a.Pending {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CompleteAlteration consumes the alteration iff it is still pending.
func (m *Store) CompleteAlteration(_ context.Context, altID id.AlterationID, jobID id.JobID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alterations[altID.String()]
	if !ok {
		return false, baza.ErrAlterationNotFound
	}
	if !a.Pending {
		return false, nil
	}
	a.Pending = false
	a.JobID = jobID
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ListAlterations returns the tenant's alterations, newest first.
func (m *Store) ListAlterations(_ context.Context, tenantID id.TenantID) ([]*alteration.Alteration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*alteration.Alteration
	for _, a := range m.alterations {
		if a.TenantID == tenantID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteAlteration removes an alteration owned by the tenant.
func (m *Store) DeleteAlteration(_ context.Context, tenantID id.TenantID, altID id.AlterationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alterations[altID.String()]
	if !ok || a.TenantID != tenantID {
		return baza.ErrAlterationNotFound
	}
	delete(m.alterations, altID.String())
	return nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// countJobs counts un-expired jobs sharing a name. Callers hold m.mu.
func (m *Store) countJobs(tenantID id.TenantID, name string) int {
	n := 0
	for _, j := range m.jobs {
		if j.TenantID == tenantID && j.Name == name && !j.Expired() {
			n++
		}
	}
	return n
}

func copyJob(j *job.Job) *job.Job {
	cp := *j
	cp.Metas = append([]string(nil), j.Metas...)
	if j.TakenAt != nil {
		at := *j.TakenAt
		cp.TakenAt = &at
	}
	if j.ExpiredAt != nil {
		at := *j.ExpiredAt
		cp.ExpiredAt = &at
	}
	return &cp
}

func sortByCreated(jobs []*job.Job) {
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
}

func lockKey(tenantID id.TenantID, name string) string {
	return tenantID.String() + "/" + name
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
