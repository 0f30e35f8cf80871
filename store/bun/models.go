package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/alteration"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/lock"
	"github.com/tank-bohr/baza/tenant"
	"github.com/tank-bohr/baza/valve"
)

// ── Tenant model ──────────────────────────────────────────────────

type tenantModel struct {
	bun.BaseModel `bun:"table:baza_tenants"`

	ID        string    `bun:"id,pk"`
	Login     string    `bun:"login,notnull,unique"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func fromTenantModel(m *tenantModel) (*tenant.Tenant, error) {
	parsedID, err := id.ParseTenantID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.ID, err)
	}
	return &tenant.Tenant{
		Entity: baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     parsedID,
		Login:  m.Login,
	}, nil
}

// ── Token model ───────────────────────────────────────────────────

type tokenModel struct {
	bun.BaseModel `bun:"table:baza_tokens"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Text      string    `bun:"text,notnull,unique"`
	Active    bool      `bun:"active,notnull,default:true"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toTokenModel(t *tenant.Token) *tokenModel {
	return &tokenModel{
		ID:        t.ID.String(),
		TenantID:  t.TenantID.String(),
		Name:      t.Name,
		Text:      t.Text,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTokenModel(m *tokenModel) (*tenant.Token, error) {
	parsedID, err := id.ParseTokenID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse token id %q: %w", m.ID, err)
	}
	parsedTenant, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.TenantID, err)
	}
	return &tenant.Token{
		Entity:   baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       parsedID,
		TenantID: parsedTenant,
		Name:     m.Name,
		Text:     m.Text,
		Active:   m.Active,
	}, nil
}

// ── Secret model ──────────────────────────────────────────────────

type secretModel struct {
	bun.BaseModel `bun:"table:baza_secrets"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Key       string    `bun:"key,notnull"`
	Value     string    `bun:"value,notnull"`
	Shareable bool      `bun:"shareable,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toSecretModel(s *tenant.Secret) *secretModel {
	return &secretModel{
		ID:        s.ID.String(),
		TenantID:  s.TenantID.String(),
		Name:      s.Name,
		Key:       s.Key,
		Value:     s.Value,
		Shareable: s.Shareable,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSecretModel(m *secretModel) (*tenant.Secret, error) {
	parsedID, err := id.ParseSecretID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse secret id %q: %w", m.ID, err)
	}
	parsedTenant, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.TenantID, err)
	}
	return &tenant.Secret{
		Entity:    baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        parsedID,
		TenantID:  parsedTenant,
		Name:      m.Name,
		Key:       m.Key,
		Value:     m.Value,
		Shareable: m.Shareable,
	}, nil
}

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:baza_jobs,alias:j"`

	ID        string     `bun:"id,pk"`
	TokenID   string     `bun:"token_id,notnull"`
	TenantID  string     `bun:"tenant_id,notnull"`
	Name      string     `bun:"name,notnull"`
	URI1      string     `bun:"uri1,notnull"`
	Size      int64      `bun:"size,notnull,default:0"`
	Errors    int        `bun:"errors,notnull,default:0"`
	Agent     string     `bun:"agent,notnull"`
	Metas     []string   `bun:"metas,array"`
	Taken     string     `bun:"taken,notnull,default:''"`
	TakenAt   *time.Time `bun:"taken_at"`
	ExpiredAt *time.Time `bun:"expired_at"`
	CreatedAt time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:        j.ID.String(),
		TokenID:   j.TokenID.String(),
		TenantID:  j.TenantID.String(),
		Name:      j.Name,
		URI1:      j.URI1,
		Size:      j.Size,
		Errors:    j.Errors,
		Agent:     j.Agent,
		Metas:     j.Metas,
		Taken:     j.Taken,
		TakenAt:   j.TakenAt,
		ExpiredAt: j.ExpiredAt,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse job id %q: %w", m.ID, err)
	}
	parsedToken, err := id.ParseTokenID(m.TokenID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse token id %q: %w", m.TokenID, err)
	}
	parsedTenant, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.TenantID, err)
	}

	return &job.Job{
		Entity:    baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:        parsedID,
		TokenID:   parsedToken,
		TenantID:  parsedTenant,
		Name:      m.Name,
		URI1:      m.URI1,
		Size:      m.Size,
		Errors:    m.Errors,
		Agent:     m.Agent,
		Metas:     m.Metas,
		Taken:     m.Taken,
		TakenAt:   m.TakenAt,
		ExpiredAt: m.ExpiredAt,
	}, nil
}

// ── Result model ──────────────────────────────────────────────────

type resultModel struct {
	bun.BaseModel `bun:"table:baza_results"`

	ID        string    `bun:"id,pk"`
	JobID     string    `bun:"job_id,notnull,unique"`
	URI2      string    `bun:"uri2,notnull,default:''"`
	Stdout    string    `bun:"stdout,notnull,default:''"`
	Exit      int       `bun:"exit,notnull,default:0"`
	Msec      int64     `bun:"msec,notnull,default:0"`
	Size      int64     `bun:"size,notnull,default:0"`
	Errors    int       `bun:"errors,notnull,default:0"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toResultModel(r *job.Result) *resultModel {
	return &resultModel{
		ID:        r.ID.String(),
		JobID:     r.JobID.String(),
		URI2:      r.URI2,
		Stdout:    r.Stdout,
		Exit:      r.Exit,
		Msec:      r.Msec,
		Size:      r.Size,
		Errors:    r.Errors,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func fromResultModel(m *resultModel) (*job.Result, error) {
	parsedID, err := id.ParseResultID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse result id %q: %w", m.ID, err)
	}
	parsedJob, err := id.ParseJobID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse job id %q: %w", m.JobID, err)
	}
	return &job.Result{
		Entity: baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:     parsedID,
		JobID:  parsedJob,
		URI2:   m.URI2,
		Stdout: m.Stdout,
		Exit:   m.Exit,
		Msec:   m.Msec,
		Size:   m.Size,
		Errors: m.Errors,
	}, nil
}

// ── Trail model ───────────────────────────────────────────────────

type trailModel struct {
	bun.BaseModel `bun:"table:baza_trails"`

	ID        string    `bun:"id,pk"`
	JobID     string    `bun:"job_id,notnull"`
	Emitter   string    `bun:"emitter,notnull"`
	Name      string    `bun:"name,notnull"`
	Data      []byte    `bun:"data,notnull,type:bytea"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toTrailModel(t *job.Trail) *trailModel {
	return &trailModel{
		ID:        t.ID.String(),
		JobID:     t.JobID.String(),
		Emitter:   t.Emitter,
		Name:      t.Name,
		Data:      t.Data,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func fromTrailModel(m *trailModel) (*job.Trail, error) {
	parsedID, err := id.ParseTrailID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse trail id %q: %w", m.ID, err)
	}
	parsedJob, err := id.ParseJobID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse job id %q: %w", m.JobID, err)
	}
	return &job.Trail{
		Entity:  baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:      parsedID,
		JobID:   parsedJob,
		Emitter: m.Emitter,
		Name:    m.Name,
		Data:    m.Data,
	}, nil
}

// ── Lock model ────────────────────────────────────────────────────

type lockModel struct {
	bun.BaseModel `bun:"table:baza_locks"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Owner     string    `bun:"owner,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	// Jobs is populated by the ListLocks join only.
	Jobs int `bun:"jobs,scanonly"`
}

func fromLockModel(m *lockModel) (*lock.Lock, error) {
	parsedID, err := id.ParseLockID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse lock id %q: %w", m.ID, err)
	}
	parsedTenant, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.TenantID, err)
	}
	return &lock.Lock{
		Entity:   baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       parsedID,
		TenantID: parsedTenant,
		Name:     m.Name,
		Owner:    m.Owner,
		Jobs:     m.Jobs,
	}, nil
}

// ── Valve model ───────────────────────────────────────────────────

type valveModel struct {
	bun.BaseModel `bun:"table:baza_valves"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Badge     string    `bun:"badge,notnull"`
	Why       string    `bun:"why,notnull,default:''"`
	Result    []byte    `bun:"result,type:bytea"`
	Resolved  bool      `bun:"resolved,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`

	// Jobs is populated by the ListValves join only.
	Jobs int `bun:"jobs,scanonly"`
}

func toValveModel(v *valve.Valve) *valveModel {
	return &valveModel{
		ID:        v.ID.String(),
		TenantID:  v.TenantID.String(),
		Name:      v.Name,
		Badge:     v.Badge,
		Why:       v.Why,
		Result:    v.Result,
		Resolved:  v.Resolved,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func fromValveModel(m *valveModel) (*valve.Valve, error) {
	parsedID, err := id.ParseValveID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse valve id %q: %w", m.ID, err)
	}
	parsedTenant, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.TenantID, err)
	}
	return &valve.Valve{
		Entity:   baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       parsedID,
		TenantID: parsedTenant,
		Name:     m.Name,
		Badge:    m.Badge,
		Why:      m.Why,
		Result:   m.Result,
		Resolved: m.Resolved,
		Jobs:     m.Jobs,
	}, nil
}

// ── Alteration model ──────────────────────────────────────────────

type alterationModel struct {
	bun.BaseModel `bun:"table:baza_alterations"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	Script    string    `bun:"script,notnull"`
	Pending   bool      `bun:"pending,notnull,default:true"`
	JobID     string    `bun:"job_id,notnull,default:''"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toAlterationModel(a *alteration.Alteration) *alterationModel {
	m := &alterationModel{
		ID:        a.ID.String(),
		TenantID:  a.TenantID.String(),
		Name:      a.Name,
		Script:    a.Script,
		Pending:   a.Pending,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if !a.JobID.IsNil() {
		m.JobID = a.JobID.String()
	}
	return m
}

func fromAlterationModel(m *alterationModel) (*alteration.Alteration, error) {
	parsedID, err := id.ParseAlterationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse alteration id %q: %w", m.ID, err)
	}
	parsedTenant, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("baza/bun: parse tenant id %q: %w", m.TenantID, err)
	}

	a := &alteration.Alteration{
		Entity:   baza.Entity{CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		ID:       parsedID,
		TenantID: parsedTenant,
		Name:     m.Name,
		Script:   m.Script,
		Pending:  m.Pending,
	}
	if m.JobID != "" {
		parsedJob, jErr := id.ParseJobID(m.JobID)
		if jErr == nil {
			a.JobID = parsedJob
		}
	}
	return a, nil
}
