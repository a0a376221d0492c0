// SPDX-FileCopyrightText: 2025 QuarkStor Authors
//
// SPDX-License-Identifier: Apache-2.0

package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	testclock "k8s.io/utils/clock/testing"

	"github.com/quarkstor/quarkstor-go-sdk/pkg/backoff"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/chooser"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/dispatch"
	qserrors "github.com/quarkstor/quarkstor-go-sdk/pkg/errors"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/region"
	"github.com/quarkstor/quarkstor-go-sdk/pkg/transport"
)

// step is one scripted transport outcome for an address.
type step struct {
	status int
	body   string
	err    error
}

// scriptedTransport plays back per-address outcomes in order and records the
// sequence of addresses attempted. Addresses with an exhausted or missing
// script succeed.
type scriptedTransport struct {
	mutex    sync.Mutex
	scripts  map[string][]step
	attempts []string
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{scripts: map[string][]step{}}
}

func (t *scriptedTransport) script(addr string, steps ...step) {
	t.scripts[addr] = append(t.scripts[addr], steps...)
}

func (t *scriptedTransport) RoundTrip(_ context.Context, req *transport.Request) (*transport.Response, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.attempts = append(t.attempts, req.Addr)
	script := t.scripts[req.Addr]
	if len(script) == 0 {
		return &transport.Response{StatusCode: http.StatusOK, Body: []byte(`{}`)}, nil
	}
	next := script[0]
	t.scripts[req.Addr] = script[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &transport.Response{StatusCode: next.status, Body: []byte(next.body)}, nil
}

func (t *scriptedTransport) attemptsFor(addr string) int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	count := 0
	for _, a := range t.attempts {
		if a == addr {
			count++
		}
	}
	return count
}

// mapResolver resolves every host to "<host>/1" and "<host>/2".
type mapResolver struct {
	failing map[string]error
}

func (r *mapResolver) Resolve(_ context.Context, host string) ([]string, error) {
	if err := r.failing[host]; err != nil {
		return nil, err
	}
	return []string{host + "/1", host + "/2"}, nil
}

var _ = Describe("Dispatcher", func() {
	var (
		tr      *scriptedTransport
		res     *mapResolver
		fc      *chooser.FreezeChooser
		waits   []time.Duration
		primary region.Region
		backup  region.Region
		targets region.Targets
	)

	newDispatcher := func(retryCount, regionCycles uint) *dispatch.Dispatcher {
		return dispatch.NewDispatcher(dispatch.Options{
			Transport:    tr,
			Resolver:     res,
			Chooser:      fc,
			Backoff:      backoff.Fixed{Wait: 100 * time.Millisecond},
			RetryCount:   retryCount,
			RegionCycles: regionCycles,
		}).WithSleep(func(_ context.Context, wait time.Duration) error {
			waits = append(waits, wait)
			return nil
		})
	}

	BeforeEach(func() {
		tr = newScriptedTransport()
		res = &mapResolver{failing: map[string]error{}}
		fc = chooser.NewFreezeChooser(testclock.NewFakeClock(time.Now()), 10*time.Minute)
		waits = nil
		primary = region.Region{Name: "primary", Up: region.Endpoints{Preferred: []string{"up-a", "up-b"}}}
		backup = region.Region{Name: "backup", Up: region.Endpoints{Preferred: []string{"up-c"}}}
		targets = region.NewTargets(primary, backup)
	})

	It("succeeds on the first address without retries", func() {
		d := newDispatcher(3, 1)
		resp, stats, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(stats.TotalAttempts()).To(Equal(uint(0)))
		Expect(tr.attempts).To(Equal([]string{"up-a/1"}))
	})

	It("retries transient failures on the same address with backoff", func() {
		tr.script("up-a/1", step{status: 571, body: `{"error":"overloaded"}`}, step{status: 571})
		d := newDispatcher(3, 1)
		_, stats, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(tr.attempts).To(Equal([]string{"up-a/1", "up-a/1", "up-a/1"}))
		Expect(stats.Attempts(qserrors.KindTransient)).To(Equal(uint(2)))
		Expect(waits).To(Equal([]time.Duration{100 * time.Millisecond, 100 * time.Millisecond}))
		Expect(stats.WaitTime()).To(Equal(200 * time.Millisecond))
	})

	It("freezes an address after exhausting transient retries and moves on", func() {
		tr.script("up-a/1", step{status: 571}, step{status: 571})
		d := newDispatcher(2, 1)
		_, _, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(tr.attemptsFor("up-a/1")).To(Equal(2))
		Expect(tr.attemptsFor("up-a/2")).To(Equal(1))
		Expect(fc.FrozenCount()).To(Equal(1))
		// Only one backoff wait: switching addresses is immediate.
		Expect(waits).To(HaveLen(1))
	})

	It("skips to the next address immediately on a host-unretryable status", func() {
		tr.script("up-a/1", step{status: 503, body: `{"error":"backend down"}`})
		d := newDispatcher(3, 1)
		_, stats, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(tr.attempts).To(Equal([]string{"up-a/1", "up-a/2"}))
		Expect(stats.Attempts(qserrors.KindHostUnretryable)).To(Equal(uint(1)))
		Expect(waits).To(BeEmpty())
	})

	It("falls through to the next host when resolution fails", func() {
		res.failing["up-a"] = errors.New("no such host")
		d := newDispatcher(3, 1)
		_, stats, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(tr.attempts).To(Equal([]string{"up-b/1"}))
		Expect(stats.Attempts(qserrors.KindHostUnretryable)).To(Equal(uint(1)))
	})

	It("fails over to the backup region when the primary is exhausted", func() {
		for _, addr := range []string{"up-a/1", "up-a/2", "up-b/1", "up-b/2"} {
			tr.script(addr, step{status: 503})
		}
		d := newDispatcher(3, 1)
		resp, _, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(tr.attemptsFor("up-c/1")).To(Equal(1))
	})

	It("reports region-unretryable when every region is exhausted", func() {
		for _, addr := range []string{"up-a/1", "up-a/2", "up-b/1", "up-b/2", "up-c/1", "up-c/2"} {
			tr.script(addr, step{status: 503})
		}
		d := newDispatcher(3, 1)
		_, _, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).Should(HaveOccurred())
		Expect(qserrors.KindOf(err)).To(Equal(qserrors.KindRegionUnretryable))
		Expect(err.Error()).To(ContainSubstring("all regions exhausted"))
	})

	It("walks the chain again when region cycles allow", func() {
		single := region.NewTargets(region.Region{Name: "only", Up: region.Endpoints{Preferred: []string{"up-x"}}})
		tr.script("up-x/1", step{status: 503})
		tr.script("up-x/2", step{status: 503})
		d := newDispatcher(3, 2)
		resp, _, err := d.Do(context.TODO(), "upload.part", single, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(len(tr.attempts)).To(Equal(3))
	})

	It("short-circuits on a fatal status without trying further hosts", func() {
		tr.script("up-a/1", step{status: 401, body: `{"error":"bad token"}`})
		d := newDispatcher(3, 1)
		_, _, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).Should(HaveOccurred())
		Expect(qserrors.IsFatal(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("bad token"))
		Expect(tr.attempts).To(Equal([]string{"up-a/1"}))
	})

	It("stops before any attempt when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := newDispatcher(3, 1)
		_, _, err := d.Do(ctx, "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).Should(HaveOccurred())
		Expect(qserrors.IsFatal(err)).To(BeTrue())
		Expect(tr.attempts).To(BeEmpty())
	})

	It("notifies the attempt-error hook for every failure", func() {
		var observed []string
		tr.script("up-a/1", step{status: 571}, step{status: 503})
		d := dispatch.NewDispatcher(dispatch.Options{
			Transport:  tr,
			Resolver:   res,
			Chooser:    fc,
			Backoff:    backoff.Fixed{},
			RetryCount: 3,
			OnAttemptError: func(host, addr string, err error) {
				observed = append(observed, fmt.Sprintf("%s %s %s", host, addr, qserrors.KindOf(err)))
			},
		}).WithSleep(func(context.Context, time.Duration) error { return nil })
		_, _, err := d.Do(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil))
		Expect(err).ShouldNot(HaveOccurred())
		Expect(observed).To(Equal([]string{
			"up-a up-a/1 transient",
			"up-a up-a/1 host_unretryable",
		}))
	})

	It("aggregates stats across requests with DoWithStats", func() {
		tr.script("up-a/1", step{status: 571}, step{status: 571})
		d := newDispatcher(3, 1)
		stats := dispatch.NewRetryStats()
		_, err := d.DoWithStats(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil), stats)
		Expect(err).ShouldNot(HaveOccurred())
		_, err = d.DoWithStats(context.TODO(), "upload.part", targets, transport.NewRequest(http.MethodPost, "/", nil), stats)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(stats.Attempts(qserrors.KindTransient)).To(Equal(uint(2)))
		Expect(stats.TotalAttempts()).To(Equal(uint(2)))
	})
})
