package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/Fabulani/shopfloor-simulation/internal/entity"
	"github.com/Fabulani/shopfloor-simulation/internal/job"
)

type stubEntity struct {
	namespace, id string
	resets        int
}

func (s *stubEntity) Identify() (string, string) { return s.namespace, s.id }
func (s *stubEntity) Snapshot() entity.Snapshot  { return entity.Snapshot{} }
func (s *stubEntity) Reset(context.Context) error {
	s.resets++
	return nil
}

// =============================================================================
// Registry Tests
// =============================================================================

func TestRegistry_PublishingLifecycle(t *testing.T) {
	r := New()
	a := &stubEntity{namespace: "robots", id: "Agv-001"}
	b := &stubEntity{namespace: "process_steps", id: "PS-000"}
	c := &stubEntity{namespace: "process_steps", id: "PS-000"}

	r.AddPublishing(a, b, c)
	if got := len(r.Publishing()); got != 3 {
		t.Fatalf("len(Publishing()) = %d, want 3", got)
	}

	// Same id in two jobs: removal is by identity.
	if removed := r.RemovePublishing(b); removed != 1 {
		t.Errorf("RemovePublishing() = %d, want 1", removed)
	}
	if r.IsPublishing(b) || !r.IsPublishing(c) {
		t.Error("RemovePublishing removed the wrong entity")
	}
	if removed := r.RemovePublishing(b); removed != 0 {
		t.Errorf("second RemovePublishing() = %d, want 0", removed)
	}
}

func TestRegistry_PublishingIsCopy(t *testing.T) {
	r := New()
	a := &stubEntity{id: "a"}
	r.AddPublishing(a)

	list := r.Publishing()
	list[0] = &stubEntity{id: "other"}

	if got := r.Publishing()[0]; got != entity.Entity(a) {
		t.Error("Publishing() returned the internal slice")
	}
}

func TestRegistry_Find(t *testing.T) {
	r := New()
	r.AddPublishing(
		&stubEntity{namespace: "robots", id: "Agv-001"},
		&stubEntity{namespace: "stations", id: "Station11"},
	)

	if e, ok := r.Find("Agv-001"); !ok {
		t.Error("Find(Agv-001) not found")
	} else if ns, _ := e.Identify(); ns != "robots" {
		t.Errorf("Find(Agv-001) namespace = %s", ns)
	}
	if e, ok := r.Find("Station11"); !ok {
		t.Error("Find(Station11) not found")
	} else if ns, _ := e.Identify(); ns != "stations" {
		t.Errorf("Find(Station11) namespace = %s", ns)
	}
	if _, ok := r.Find("missing"); ok {
		t.Error("Find(missing) reported found")
	}
}

func TestRegistry_Resettable(t *testing.T) {
	r := New()
	s1 := &stubEntity{id: "S1"}
	r.AddResettable(s1)

	for _, e := range r.Resettable() {
		_ = e.Reset(context.Background())
	}
	if s1.resets != 1 {
		t.Errorf("resets = %d, want 1", s1.resets)
	}
}

func TestRegistry_ConcurrentIterateAndMutate(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := range 500 {
			e := &stubEntity{id: string(rune('a' + i%26))}
			r.AddPublishing(e)
			r.RemovePublishing(e)
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			for _, e := range r.Publishing() {
				_, _ = e.Identify()
			}
		}
	}()
	wg.Wait()

	if got := len(r.Publishing()); got != 0 {
		t.Errorf("len(Publishing()) = %d, want 0", got)
	}
}

// =============================================================================
// JobQueue Tests
// =============================================================================

func newJob(n int) *job.Job {
	return job.NewJob(entity.Header{ID: job.FormatJobID(n), Namespace: job.NamespaceJobs}, nil)
}

func TestJobQueue(t *testing.T) {
	q := NewJobQueue()
	j1, j2, j3 := newJob(1), newJob(2), newJob(3)
	q.Push(j1)
	q.Push(j2)
	q.Push(j3)

	if _, ok := q.FirstWithStatus(job.StatusInProgress); ok {
		t.Error("FirstWithStatus found a job before any was started")
	}

	j3.SetStatus(job.StatusInProgress)
	j2.SetStatus(job.StatusInProgress)
	if got, ok := q.FirstWithStatus(job.StatusInProgress); !ok || got != j2 {
		t.Errorf("FirstWithStatus() = %v, want Job-002", got)
	}

	if got, ok := q.Get("Job-003"); !ok || got != j3 {
		t.Error("Get(Job-003) failed")
	}

	if !q.Remove(j2) {
		t.Error("Remove(j2) = false")
	}
	if q.Remove(j2) {
		t.Error("second Remove(j2) = true")
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
	jobs := q.Jobs()
	if jobs[0] != j1 || jobs[1] != j3 {
		t.Error("Remove did not preserve order")
	}
}
