package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tank-bohr/baza"
	"github.com/tank-bohr/baza/alteration"
	"github.com/tank-bohr/baza/id"
	"github.com/tank-bohr/baza/job"
	"github.com/tank-bohr/baza/tenant"
	"github.com/tank-bohr/baza/valve"
)

func seedTenant(t *testing.T, s *Store) *tenant.Tenant {
	t.Helper()
	tn, err := s.EnsureTenant(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ensure tenant: %v", err)
	}
	return tn
}

func seedToken(t *testing.T, s *Store, tenantID id.TenantID, text string) *tenant.Token {
	t.Helper()
	tok := &tenant.Token{
		Entity:   baza.NewEntity(),
		ID:       id.NewTokenID(),
		TenantID: tenantID,
		Name:     "default",
		Text:     text,
		Active:   true,
	}
	if err := s.CreateToken(context.Background(), tok); err != nil {
		t.Fatalf("create token: %v", err)
	}
	return tok
}

func seedJob(t *testing.T, s *Store, tok *tenant.Token, name string) *job.Job {
	t.Helper()
	j := &job.Job{
		Entity:   baza.NewEntity(),
		ID:       id.NewJobID(),
		TokenID:  tok.ID,
		TenantID: tok.TenantID,
		Name:     name,
		URI1:     "fs://abc",
		Size:     100,
		Agent:    "test/1.0",
	}
	if err := s.SubmitJob(context.Background(), j); err != nil {
		t.Fatalf("submit job: %v", err)
	}
	return j
}

// ──────────────────────────────────────────────────
// Tenant tests
// ──────────────────────────────────────────────────

func TestEnsureTenantIdempotent(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	first, err := s.EnsureTenant(ctx, "Bob")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	second, err := s.EnsureTenant(ctx, "bob")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same tenant, got %s and %s", first.ID, second.ID)
	}
	if second.Login != "bob" {
		t.Fatalf("expected lower-case login, got %q", second.Login)
	}
}

func TestTokenLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "secret-text")

	got, err := s.TokenByText(ctx, "secret-text")
	if err != nil {
		t.Fatalf("token by text: %v", err)
	}
	if got.ID != tok.ID {
		t.Fatalf("wrong token: %s", got.ID)
	}

	if err := s.DeactivateToken(ctx, tok.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, err = s.GetToken(ctx, tok.ID)
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	if got.Active {
		t.Fatal("token still active after deactivation")
	}

	if _, err := s.TokenByText(ctx, "missing"); !errors.Is(err, baza.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
}

func TestSecretUniqueness(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	sec := &tenant.Secret{
		Entity:   baza.NewEntity(),
		ID:       id.NewSecretID(),
		TenantID: tn.ID,
		Name:     "deploy",
		Key:      "API_KEY",
		Value:    "hunter2",
	}
	if err := s.AddSecret(ctx, sec); err != nil {
		t.Fatalf("add: %v", err)
	}

	dup := *sec
	dup.ID = id.NewSecretID()
	if err := s.AddSecret(ctx, &dup); !errors.Is(err, baza.ErrSecretExists) {
		t.Fatalf("expected ErrSecretExists, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// Job claim tests
// ──────────────────────────────────────────────────

func TestTakeJobExclusive(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")
	j := seedJob(t, s, tok, "build")

	const claimers = 16
	var wg sync.WaitGroup
	wins := make(chan string, claimers)
	for n := range claimers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := fmt.Sprintf("w%d", n)
			won, err := s.TakeJob(ctx, j.ID, owner)
			if err != nil {
				t.Errorf("take: %v", err)
				return
			}
			if won {
				wins <- owner
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Taken != winners[0] || got.TakenAt == nil {
		t.Fatalf("claim not recorded: taken=%q", got.Taken)
	}
}

func TestReleaseJobRequiresOwner(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")
	j := seedJob(t, s, tok, "build")

	if won, _ := s.TakeJob(ctx, j.ID, "w1"); !won {
		t.Fatal("claim failed")
	}

	// A stranger's release is a no-op.
	if err := s.ReleaseJob(ctx, j.ID, "w2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.Taken != "w1" {
		t.Fatal("claim lost to non-owner release")
	}

	if err := s.ReleaseJob(ctx, j.ID, "w1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	got, _ = s.GetJob(ctx, j.ID)
	if got.Taken != "" || got.TakenAt != nil {
		t.Fatal("claim not cleared")
	}

	// The job is claimable again.
	if won, _ := s.TakeJob(ctx, j.ID, "w3"); !won {
		t.Fatal("re-claim failed")
	}
}

func TestUnclaimedJobsFIFO(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")

	var ids []id.JobID
	for i := range 3 {
		j := &job.Job{
			Entity:   baza.Entity{CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second)},
			ID:       id.NewJobID(),
			TokenID:  tok.ID,
			TenantID: tn.ID,
			Name:     fmt.Sprintf("job-%d", i),
			URI1:     "fs://x",
			Size:     1,
			Agent:    "t",
		}
		if err := s.SubmitJob(ctx, j); err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, j.ID)
	}

	got, err := s.UnclaimedJobs(ctx)
	if err != nil {
		t.Fatalf("unclaimed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3, got %d", len(got))
	}
	for i := range got {
		if got[i].ID != ids[i] {
			t.Fatalf("order broken at %d", i)
		}
	}
}

func TestFinishJobRejectsSecondResult(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")
	j := seedJob(t, s, tok, "build")

	r := &job.Result{
		Entity: baza.NewEntity(),
		ID:     id.NewResultID(),
		JobID:  j.ID,
		Stdout: "done",
		Msec:   10,
	}
	if err := s.FinishJob(ctx, r); err != nil {
		t.Fatalf("finish: %v", err)
	}

	second := *r
	second.ID = id.NewResultID()
	if err := s.FinishJob(ctx, &second); !errors.Is(err, baza.ErrResultExists) {
		t.Fatalf("expected ErrResultExists, got %v", err)
	}

	// A finished job is no longer claimable.
	if won, _ := s.TakeJob(ctx, j.ID, "late"); won {
		t.Fatal("claimed a finished job")
	}
}

func TestFailJobInsertsAndAmends(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")

	// Without a result, a synthetic one appears.
	j1 := seedJob(t, s, tok, "first")
	if err := s.FailJob(ctx, j1.ID, "boom", "note one"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	r1, err := s.ResultFor(ctx, j1.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if r1.Exit != 1 || r1.Msec != 1 || r1.Stdout != "boom" {
		t.Fatalf("unexpected synthetic result: %+v", r1)
	}

	// With a result, stdout is prefixed and exit forced to 1.
	j2 := seedJob(t, s, tok, "second")
	if err := s.FinishJob(ctx, &job.Result{
		Entity: baza.NewEntity(),
		ID:     id.NewResultID(),
		JobID:  j2.ID,
		Stdout: "partial output",
	}); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if err := s.FailJob(ctx, j2.ID, "crashed late", "note two"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	r2, _ := s.ResultFor(ctx, j2.ID)
	if r2.Exit != 1 {
		t.Fatalf("exit not forced: %d", r2.Exit)
	}
	if r2.Stdout != "crashed late\npartial output" {
		t.Fatalf("stdout not amended: %q", r2.Stdout)
	}

	got, _ := s.GetJob(ctx, j2.ID)
	if got.Taken != "note two" {
		t.Fatalf("note not recorded: %q", got.Taken)
	}
}

func TestFailJobTruncatesNote(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")
	j := seedJob(t, s, tok, "build")

	long := make([]byte, 400)
	for i := range long {
		long[i] = 'x'
	}
	if err := s.FailJob(ctx, j.ID, "boom", string(long)); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if len(got.Taken) != 255 {
		t.Fatalf("expected 255-byte note, got %d", len(got.Taken))
	}
}

func TestCleanStreak(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")

	finish := func(j *job.Job, errs int) {
		t.Helper()
		if err := s.FinishJob(ctx, &job.Result{
			Entity: baza.NewEntity(),
			ID:     id.NewResultID(),
			JobID:  j.ID,
			Errors: errs,
		}); err != nil {
			t.Fatalf("finish: %v", err)
		}
	}

	base := time.Now().UTC().Add(-time.Hour)
	mk := func(i int) *job.Job {
		j := &job.Job{
			Entity:   baza.Entity{CreatedAt: base.Add(time.Duration(i) * time.Minute)},
			ID:       id.NewJobID(),
			TokenID:  tok.ID,
			TenantID: tn.ID,
			Name:     "daily",
			URI1:     "fs://x",
			Size:     1,
			Agent:    "t",
		}
		if err := s.SubmitJob(ctx, j); err != nil {
			t.Fatalf("submit: %v", err)
		}
		return j
	}

	dirty := mk(0)
	finish(dirty, 2)
	clean1 := mk(1)
	finish(clean1, 0)
	clean2 := mk(2)
	finish(clean2, 0)
	current := mk(3)

	streak, err := s.CleanStreak(ctx, tn.ID, "daily", current.ID)
	if err != nil {
		t.Fatalf("streak: %v", err)
	}
	// Two clean runs, then the dirty one stops the count.
	if streak != 2 {
		t.Fatalf("expected streak 2, got %d", streak)
	}
}

// ──────────────────────────────────────────────────
// Expiry tests
// ──────────────────────────────────────────────────

func TestExpireJobIdempotent(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")
	j := seedJob(t, s, tok, "build")

	first := time.Now().UTC().Add(-time.Hour)
	if err := s.ExpireJob(ctx, j.ID, first); err != nil {
		t.Fatalf("expire: %v", err)
	}
	// Expiring again keeps the original stamp.
	if err := s.ExpireJob(ctx, j.ID, time.Now().UTC()); err != nil {
		t.Fatalf("re-expire: %v", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.ExpiredAt == nil || !got.ExpiredAt.Equal(first) {
		t.Fatalf("expiry stamp changed: %v", got.ExpiredAt)
	}

	// Expired jobs vanish from working queries.
	busy, _ := s.NameBusy(ctx, tn.ID, "build")
	if busy {
		t.Fatal("expired job still busy")
	}
	unclaimed, _ := s.UnclaimedJobs(ctx)
	if len(unclaimed) != 0 {
		t.Fatal("expired job still claimable")
	}
}

func TestReaperQueries(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)
	tok := seedToken(t, s, tn.ID, "tok")
	testTok := seedToken(t, s, tn.ID, tenant.TesterToken)

	// A finished job with an old result.
	finished := seedJob(t, s, tok, "finished")
	old := baza.Entity{CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	if err := s.FinishJob(ctx, &job.Result{Entity: old, ID: id.NewResultID(), JobID: finished.ID}); err != nil {
		t.Fatalf("finish: %v", err)
	}

	// A stuck job claimed long ago.
	stuck := seedJob(t, s, tok, "stuck")
	if won, _ := s.TakeJob(ctx, stuck.ID, "dead-worker"); !won {
		t.Fatal("claim failed")
	}
	s.mu.Lock()
	past := time.Now().UTC().Add(-3 * time.Hour)
	s.jobs[stuck.ID.String()].TakenAt = &past
	s.mu.Unlock()

	// A test job.
	trial := &job.Job{
		Entity:   baza.Entity{CreatedAt: time.Now().UTC().Add(-2 * time.Hour)},
		ID:       id.NewJobID(),
		TokenID:  testTok.ID,
		TenantID: tn.ID,
		Name:     "trial",
		URI1:     "fs://x",
		Size:     1,
		Agent:    "t",
	}
	if err := s.SubmitJob(ctx, trial); err != nil {
		t.Fatalf("submit: %v", err)
	}

	expirable, err := s.ExpirableJobs(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("expirable: %v", err)
	}
	if len(expirable) != 1 || expirable[0].ID != finished.ID {
		t.Fatalf("expected the finished job, got %d", len(expirable))
	}

	stuckJobs, err := s.StuckJobs(ctx, 2*time.Hour)
	if err != nil {
		t.Fatalf("stuck: %v", err)
	}
	if len(stuckJobs) != 1 || stuckJobs[0].ID != stuck.ID {
		t.Fatalf("expected the stuck job, got %d", len(stuckJobs))
	}

	testJobs, err := s.TestJobs(ctx, time.Hour)
	if err != nil {
		t.Fatalf("tests: %v", err)
	}
	if len(testJobs) != 1 || testJobs[0].ID != trial.ID {
		t.Fatalf("expected the test job, got %d", len(testJobs))
	}
}

// ──────────────────────────────────────────────────
// Lock tests
// ──────────────────────────────────────────────────

func TestAcquireLockConflict(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	if err := s.AcquireLock(ctx, tn.ID, "deploy", "w1"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// Same owner re-affirms.
	if err := s.AcquireLock(ctx, tn.ID, "deploy", "w1"); err != nil {
		t.Fatalf("re-acquire: %v", err)
	}

	err := s.AcquireLock(ctx, tn.ID, "deploy", "w2")
	var lhe *baza.LockHeldError
	if !errors.As(err, &lhe) {
		t.Fatalf("expected LockHeldError, got %v", err)
	}
	if lhe.Holder != "w1" {
		t.Fatalf("wrong holder: %q", lhe.Holder)
	}

	// Non-owner release is a no-op.
	if err := s.ReleaseLock(ctx, tn.ID, "deploy", "w2"); err != nil {
		t.Fatalf("release: %v", err)
	}
	holder, _ := s.LockHolder(ctx, tn.ID, "deploy")
	if holder != "w1" {
		t.Fatal("lock lost to non-owner release")
	}

	if err := s.ReleaseLock(ctx, tn.ID, "deploy", "w1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	holder, _ = s.LockHolder(ctx, tn.ID, "deploy")
	if holder != "" {
		t.Fatal("lock not released")
	}
}

func TestAcquireLockConcurrent(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	const contenders = 16
	var wg sync.WaitGroup
	wins := make(chan int, contenders)
	for n := range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AcquireLock(ctx, tn.ID, "race", fmt.Sprintf("w%d", n)); err == nil {
				wins <- n
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected one lock winner, got %d", count)
	}
}

func TestBreakLock(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	if err := s.AcquireLock(ctx, tn.ID, "deploy", "dead"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := s.BreakLock(ctx, tn.ID, "deploy"); err != nil {
		t.Fatalf("break: %v", err)
	}
	if err := s.AcquireLock(ctx, tn.ID, "deploy", "alive"); err != nil {
		t.Fatalf("acquire after break: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Valve tests
// ──────────────────────────────────────────────────

func TestCreateValveUnique(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	v := &valve.Valve{
		Entity:   baza.NewEntity(),
		ID:       id.NewValveID(),
		TenantID: tn.ID,
		Name:     "emails",
		Badge:    "welcome-42",
	}
	if err := s.CreateValve(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := *v
	dup.ID = id.NewValveID()
	if err := s.CreateValve(ctx, &dup); !errors.Is(err, baza.ErrValveExists) {
		t.Fatalf("expected ErrValveExists, got %v", err)
	}

	// A different badge under the same name is fine.
	other := *v
	other.ID = id.NewValveID()
	other.Badge = "welcome-43"
	if err := s.CreateValve(ctx, &other); err != nil {
		t.Fatalf("create sibling: %v", err)
	}
}

func TestValveResolveAndRemove(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	v := &valve.Valve{
		Entity:   baza.NewEntity(),
		ID:       id.NewValveID(),
		TenantID: tn.ID,
		Name:     "emails",
		Badge:    "b1",
	}
	if err := s.CreateValve(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.ResolveValve(ctx, v.ID, []byte(`"sent"`)); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	got, err := s.GetValve(ctx, tn.ID, "emails", "b1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Resolved || string(got.Result) != `"sent"` {
		t.Fatalf("resolution lost: %+v", got)
	}

	// Removing a missing row is a no-op.
	if err := s.RemoveValve(ctx, id.NewValveID()); err != nil {
		t.Fatalf("remove missing: %v", err)
	}
}

// ──────────────────────────────────────────────────
// Alteration tests
// ──────────────────────────────────────────────────

func TestCompleteAlterationOnce(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	a := &alteration.Alteration{
		Entity:   baza.NewEntity(),
		ID:       id.NewAlterationID(),
		TenantID: tn.ID,
		Name:     "daily",
		Script:   `doc`,
		Pending:  true,
	}
	if err := s.AddAlteration(ctx, a); err != nil {
		t.Fatalf("add: %v", err)
	}

	jobID := id.NewJobID()
	won, err := s.CompleteAlteration(ctx, a.ID, jobID)
	if err != nil || !won {
		t.Fatalf("first completion: won=%v err=%v", won, err)
	}
	won, err = s.CompleteAlteration(ctx, a.ID, id.NewJobID())
	if err != nil {
		t.Fatalf("second completion: %v", err)
	}
	if won {
		t.Fatal("alteration consumed twice")
	}

	pending, _ := s.PendingAlterations(ctx, tn.ID, "daily")
	if len(pending) != 0 {
		t.Fatal("completed alteration still pending")
	}

	list, _ := s.ListAlterations(ctx, tn.ID)
	if len(list) != 1 || list[0].JobID != jobID {
		t.Fatalf("consuming job not recorded: %+v", list)
	}
}

func TestPendingAlterationsOrder(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()
	tn := seedTenant(t, s)

	base := time.Now().UTC().Add(-time.Hour)
	var ids []id.AlterationID
	for i := range 3 {
		a := &alteration.Alteration{
			Entity:   baza.Entity{CreatedAt: base.Add(time.Duration(i) * time.Minute)},
			ID:       id.NewAlterationID(),
			TenantID: tn.ID,
			Name:     "daily",
			Script:   "doc",
			Pending:  true,
		}
		if err := s.AddAlteration(ctx, a); err != nil {
			t.Fatalf("add: %v", err)
		}
		ids = append(ids, a.ID)
	}

	pending, err := s.PendingAlterations(ctx, tn.ID, "daily")
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3, got %d", len(pending))
	}
	for i := range pending {
		if pending[i].ID != ids[i] {
			t.Fatalf("creation order broken at %d", i)
		}
	}
}
