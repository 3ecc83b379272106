package memo

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"metastats/domain/core"
)

func fingerprintFor(t *testing.T, generation uint64, op string) core.Fingerprint {
	t.Helper()
	params := core.ComputeParamsHash(map[string]string{"attribute": "treatment"})
	return core.ComputeFingerprint(generation, core.NewTableHash([]byte("table")), op, params)
}

func TestCache_DoComputesOnceThenHits(t *testing.T) {
	c := New(4)
	fp := fingerprintFor(t, 1, "anova")

	var calls int32
	compute := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return "result", nil
	}

	v, cached, err := c.Do(fp, compute)
	if err != nil {
		t.Fatalf("first Do failed: %v", err)
	}
	if cached {
		t.Error("first call reported as cached")
	}
	if v != "result" {
		t.Errorf("got %v, want result", v)
	}

	v, cached, err = c.Do(fp, compute)
	if err != nil {
		t.Fatalf("second Do failed: %v", err)
	}
	if !cached {
		t.Error("second call not served from cache")
	}
	if v != "result" {
		t.Errorf("got %v, want result", v)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute ran %d times, want 1", got)
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	c := New(4)
	fp := fingerprintFor(t, 1, "ttest")

	boom := errors.New("boom")
	_, _, err := c.Do(fp, func() (interface{}, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want boom", err)
	}

	if _, ok := c.Get(fp); ok {
		t.Error("failed computation left an entry behind")
	}

	v, cached, err := c.Do(fp, func() (interface{}, error) { return 42, nil })
	if err != nil || cached || v != 42 {
		t.Errorf("retry after failure: v=%v cached=%v err=%v", v, cached, err)
	}
}

func TestCache_ConcurrentIdenticalRequestsCoalesce(t *testing.T) {
	c := New(4)
	fp := fingerprintFor(t, 2, "anova")

	var calls int32
	release := make(chan struct{})
	compute := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]interface{}, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = c.Do(fp, compute)
		}(i)
	}
	close(release)
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("caller %d got %v", i, results[i])
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("compute ran %d times under contention, want 1", got)
	}
}

func TestCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c := New(2)

	fps := make([]core.Fingerprint, 3)
	for i := range fps {
		fps[i] = fingerprintFor(t, uint64(i+1), "anova")
		idx := i
		if _, _, err := c.Do(fps[i], func() (interface{}, error) { return idx, nil }); err != nil {
			t.Fatalf("Do %d failed: %v", i, err)
		}
	}

	if _, ok := c.Get(fps[0]); ok {
		t.Error("oldest entry survived past capacity")
	}
	for i := 1; i < 3; i++ {
		if _, ok := c.Get(fps[i]); !ok {
			t.Errorf("entry %d evicted too early", i)
		}
	}
	if _, _, size := c.Stats(); size != 2 {
		t.Errorf("size = %d, want 2", size)
	}
}

func TestCache_PurgeDropsEverything(t *testing.T) {
	c := New(8)
	for i := 0; i < 3; i++ {
		fp := fingerprintFor(t, uint64(i), fmt.Sprintf("op%d", i))
		if _, _, err := c.Do(fp, func() (interface{}, error) { return i, nil }); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
	}
	c.Purge()
	if _, _, size := c.Stats(); size != 0 {
		t.Errorf("size after purge = %d, want 0", size)
	}
}
