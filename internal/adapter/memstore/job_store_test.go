package memstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"newscast/internal/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*JobStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewJobStore(WithClock(clock.Now)), clock
}

func mustCreate(t *testing.T, s *JobStore, kind domain.JobKind, parent string) *domain.Job {
	t.Helper()
	job := &domain.Job{Kind: kind, ParentID: parent, Input: json.RawMessage(`{"text":"hello","voice":"A"}`)}
	if err := s.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return job
}

func TestAudioJobLifecycle(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	created := mustCreate(t, s, domain.JobKindAudio, "")
	if created.Status != domain.JobStatusPending {
		t.Fatalf("Status = %q, want pending", created.Status)
	}

	claimed, err := s.ClaimNextPending(ctx, domain.JobKindAudio)
	if err != nil {
		t.Fatalf("ClaimNextPending: %v", err)
	}
	if claimed.ID != created.ID || claimed.Status != domain.JobStatusInProgress {
		t.Fatalf("claimed = %+v", claimed)
	}

	done, err := s.Complete(ctx, claimed.ID, json.RawMessage(`{"url":"https://cdn/a.mp3"}`))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != domain.JobStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("completed job = %+v", done)
	}

	got, err := s.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if string(got.Result) != `{"url":"https://cdn/a.mp3"}` {
		t.Fatalf("Result = %s", got.Result)
	}
}

func TestClaimOnEmptyStoreReturnsNone(t *testing.T) {
	s, _ := newTestStore()
	for i := 0; i < 2; i++ {
		if _, err := s.ClaimNextPending(context.Background(), domain.JobKindAudio); !errors.Is(err, domain.ErrNoPendingJob) {
			t.Fatalf("attempt %d: err = %v, want ErrNoPendingJob", i, err)
		}
	}
}

func TestClaimIsOldestFirstAndKindScoped(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	first := mustCreate(t, s, domain.JobKindAudio, "")
	clock.Advance(time.Second)
	video := mustCreate(t, s, domain.JobKindVideo, "")
	second := mustCreate(t, s, domain.JobKindAudio, "")

	a, err := s.ClaimNextPending(ctx, domain.JobKindAudio)
	if err != nil || a.ID != first.ID {
		t.Fatalf("first claim = %v, %v; want %s", a, err, first.ID)
	}
	b, err := s.ClaimNextPending(ctx, domain.JobKindAudio)
	if err != nil || b.ID != second.ID {
		t.Fatalf("second claim = %v, %v; want %s", b, err, second.ID)
	}
	if _, err := s.ClaimNextPending(ctx, domain.JobKindAudio); !errors.Is(err, domain.ErrNoPendingJob) {
		t.Fatalf("third claim err = %v", err)
	}
	v, err := s.ClaimNextPending(ctx, domain.JobKindVideo)
	if err != nil || v.ID != video.ID {
		t.Fatalf("video claim = %v, %v", v, err)
	}
}

func TestConcurrentClaimsNeverShareAJob(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	const total = 50
	for i := 0; i < total; i++ {
		mustCreate(t, s, domain.JobKindAudio, "")
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				job, err := s.ClaimNextPending(ctx, domain.JobKindAudio)
				if errors.Is(err, domain.ErrNoPendingJob) {
					return
				}
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				mu.Lock()
				seen[job.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("claimed %d distinct jobs, want %d", len(seen), total)
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("job %s claimed %d times", id, n)
		}
	}
}

func TestCompleteAndFailUnknownID(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	if _, err := s.Complete(ctx, "missing", json.RawMessage(`{}`)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Complete err = %v, want ErrNotFound", err)
	}
	if _, err := s.Fail(ctx, "missing", "boom"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Fail err = %v, want ErrNotFound", err)
	}
}

func TestTerminalJobsCannotTransition(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	job := mustCreate(t, s, domain.JobKindAudio, "")

	if _, err := s.Complete(ctx, job.ID, json.RawMessage(`{}`)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("complete pending err = %v, want ErrInvalidTransition", err)
	}
	if _, err := s.ClaimNextPending(ctx, domain.JobKindAudio); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := s.Fail(ctx, job.ID, "provider down"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := s.Complete(ctx, job.ID, json.RawMessage(`{}`)); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("complete failed err = %v, want ErrInvalidTransition", err)
	}
	got, _ := s.GetByID(ctx, job.ID)
	if got.Status != domain.JobStatusFailed || got.Error != "provider down" || got.Result != nil {
		t.Fatalf("job mutated after terminal state: %+v", got)
	}
}

func TestResetStale(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()

	stuck := mustCreate(t, s, domain.JobKindVideo, "")
	if _, err := s.ClaimNextPending(ctx, domain.JobKindVideo); err != nil {
		t.Fatalf("claim stuck: %v", err)
	}
	if err := s.SetExternalRef(ctx, stuck.ID, "req-1"); err != nil {
		t.Fatalf("SetExternalRef: %v", err)
	}
	clock.Advance(20 * time.Minute)

	fresh := mustCreate(t, s, domain.JobKindVideo, "")
	if _, err := s.ClaimNextPending(ctx, domain.JobKindVideo); err != nil {
		t.Fatalf("claim fresh: %v", err)
	}
	pending := mustCreate(t, s, domain.JobKindAudio, "")

	cutoff := clock.Now().Add(-15 * time.Minute)
	reset, err := s.ResetStale(ctx, cutoff, "reset after timeout (15m0s)")
	if err != nil {
		t.Fatalf("ResetStale: %v", err)
	}
	if len(reset) != 1 || reset[0].ID != stuck.ID {
		t.Fatalf("reset = %+v, want only %s", reset, stuck.ID)
	}

	got, _ := s.GetByID(ctx, stuck.ID)
	if got.Status != domain.JobStatusPending || got.Error != "reset after timeout (15m0s)" || got.ExternalRef != "" {
		t.Fatalf("stuck job after reset = %+v", got)
	}
	if got, _ := s.GetByID(ctx, fresh.ID); got.Status != domain.JobStatusInProgress {
		t.Fatalf("fresh job status = %q", got.Status)
	}
	if got, _ := s.GetByID(ctx, pending.ID); got.Status != domain.JobStatusPending || got.Error != "" {
		t.Fatalf("pending job touched: %+v", got)
	}

	again, err := s.ResetStale(ctx, cutoff, "reset after timeout (15m0s)")
	if err != nil || len(again) != 0 {
		t.Fatalf("second ResetStale = %v, %v; want none", again, err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	a := mustCreate(t, s, domain.JobKindAudio, "42")
	clock.Advance(time.Second)
	mustCreate(t, s, domain.JobKindAudio, "99")
	clock.Advance(time.Second)
	c := mustCreate(t, s, domain.JobKindVideo, "42")

	jobs, err := s.List(ctx, domain.ListFilter{ParentID: "42"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != a.ID || jobs[1].ID != c.ID {
		t.Fatalf("List(parent=42) = %+v", jobs)
	}

	jobs, _ = s.List(ctx, domain.ListFilter{ParentID: "42", Kind: domain.JobKindVideo})
	if len(jobs) != 1 || jobs[0].ID != c.ID {
		t.Fatalf("List(parent=42, kind=video) = %+v", jobs)
	}

	jobs, _ = s.List(ctx, domain.ListFilter{Limit: 1})
	if len(jobs) != 1 || jobs[0].ID != a.ID {
		t.Fatalf("List(limit=1) = %+v", jobs)
	}
}

func TestListMatchesOrgExactly(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	unscoped := mustCreate(t, s, domain.JobKindAudio, "")
	clock.Advance(time.Second)
	acme := &domain.Job{Kind: domain.JobKindAudio, OrgID: "acme", Input: json.RawMessage(`{}`)}
	if err := s.Create(ctx, acme); err != nil {
		t.Fatalf("Create: %v", err)
	}

	jobs, _ := s.List(ctx, domain.ListFilter{})
	if len(jobs) != 1 || jobs[0].ID != unscoped.ID {
		t.Fatalf("List(org=\"\") = %+v", jobs)
	}
	jobs, _ = s.List(ctx, domain.ListFilter{OrgID: "acme"})
	if len(jobs) != 1 || jobs[0].ID != acme.ID {
		t.Fatalf("List(org=acme) = %+v", jobs)
	}
	jobs, _ = s.List(ctx, domain.ListFilter{AllOrgs: true})
	if len(jobs) != 2 {
		t.Fatalf("List(all orgs) = %d jobs", len(jobs))
	}
}

func TestCompleteClearsResetNote(t *testing.T) {
	ctx := context.Background()
	s, clock := newTestStore()
	job := mustCreate(t, s, domain.JobKindAudio, "")
	if _, err := s.ClaimNextPending(ctx, domain.JobKindAudio); err != nil {
		t.Fatalf("claim: %v", err)
	}
	clock.Advance(time.Hour)
	if reset, _ := s.ResetStale(ctx, clock.Now(), "reset after timeout (15m0s)"); len(reset) != 1 {
		t.Fatalf("ResetStale = %d jobs", len(reset))
	}
	if _, err := s.ClaimNextPending(ctx, domain.JobKindAudio); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	done, err := s.Complete(ctx, job.ID, json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Error != "" {
		t.Fatalf("completed job kept error %q", done.Error)
	}
}

func TestReturnedJobsAreCopies(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	job := mustCreate(t, s, domain.JobKindAudio, "")
	got, _ := s.GetByID(ctx, job.ID)
	got.Status = domain.JobStatusFailed
	got.Input[0] = 'X'

	again, _ := s.GetByID(ctx, job.ID)
	if again.Status != domain.JobStatusPending || again.Input[0] != '{' {
		t.Fatalf("store state leaked through returned job: %+v", again)
	}
}

func TestGetByExternalRef(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore()
	job := mustCreate(t, s, domain.JobKindVideo, "")
	if _, err := s.ClaimNextPending(ctx, domain.JobKindVideo); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.SetExternalRef(ctx, job.ID, "req-7"); err != nil {
		t.Fatalf("SetExternalRef: %v", err)
	}
	got, err := s.GetByExternalRef(ctx, "req-7")
	if err != nil || got.ID != job.ID {
		t.Fatalf("GetByExternalRef = %v, %v", got, err)
	}
	if _, err := s.GetByExternalRef(ctx, ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("empty ref err = %v", err)
	}
}
