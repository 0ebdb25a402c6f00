package scan

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nutriscan/backend/internal/models"
	"github.com/nutriscan/backend/internal/off"
)

// fakeFetcher resolves immediately with a fixed outcome and records the
// barcodes it was asked for.
type fakeFetcher struct {
	mu      sync.Mutex
	product *models.ProductRecord
	err     error
	calls   []string
}

func (f *fakeFetcher) FetchProduct(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, barcode)
	return f.product, f.err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// blockingFetcher does not return until released, deliberately ignoring ctx
// so a stale lookup can "resolve" after a newer cycle has begun.
type blockingFetcher struct {
	release chan struct{}
	product *models.ProductRecord
	err     error
}

func (f *blockingFetcher) FetchProduct(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	<-f.release
	return f.product, f.err
}

func newTestSession(f ProductFetcher) (*Session, chan Snapshot) {
	ch := make(chan Snapshot, 32)
	s := NewSession(f, func(snap Snapshot) { ch <- snap })
	return s, ch
}

func waitForState(t *testing.T, ch chan Snapshot, want State) Snapshot {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if snap.State == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %v", want)
		}
	}
}

func assertNoTerminalState(t *testing.T, ch chan Snapshot) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case snap := <-ch:
			if snap.State == StateResult || snap.State == StateError {
				t.Fatalf("unexpected terminal snapshot %+v", snap)
			}
		case <-timeout:
			return
		}
	}
}

func TestBeginScanRequiresAuthorization(t *testing.T) {
	s, _ := newTestSession(&fakeFetcher{})
	s.BeginScan()
	if got := s.Snapshot().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestAuthorizedWhileIdleAutoStartsScan(t *testing.T) {
	s, ch := newTestSession(&fakeFetcher{})
	s.SetAuthorization(AuthorizationAuthorized)
	snap := waitForState(t, ch, StateScanning)
	if snap.Authorization != AuthorizationAuthorized {
		t.Fatalf("authorization = %v", snap.Authorization)
	}
}

func TestBarcodeIgnoredOutsideScanning(t *testing.T) {
	f := &fakeFetcher{product: &models.ProductRecord{Name: "X"}}
	s, _ := newTestSession(f)

	s.ObserveBarcode("123") // idle
	if f.callCount() != 0 {
		t.Fatal("lookup launched while idle")
	}
	if got := s.Snapshot().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestEmptyBarcodeIgnored(t *testing.T) {
	f := &fakeFetcher{}
	s, ch := newTestSession(f)
	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)

	s.ObserveBarcode("   ")
	if f.callCount() != 0 {
		t.Fatal("lookup launched for an empty code")
	}
	if got := s.Snapshot().State; got != StateScanning {
		t.Fatalf("state = %v, want scanning", got)
	}
}

func TestScanToResult(t *testing.T) {
	product := &models.ProductRecord{Name: "Coca-Cola", Barcode: "5000112548167"}
	f := &fakeFetcher{product: product}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)

	s.ObserveBarcode("5000112548167")
	waitForState(t, ch, StateFetching)
	snap := waitForState(t, ch, StateResult)

	if snap.Product == nil || snap.Product.Name != "Coca-Cola" {
		t.Fatalf("product = %+v", snap.Product)
	}
	if snap.ScannedBarcode != "5000112548167" {
		t.Fatalf("scanned barcode = %q", snap.ScannedBarcode)
	}
}

func TestScanToErrorKeepsBarcodeVisible(t *testing.T) {
	f := &fakeFetcher{err: errors.New("unexpected status code 404 from product API")}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	snap := waitForState(t, ch, StateError)

	if snap.ErrorMessage == "" || snap.Product != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.ScannedBarcode != "123" {
		t.Fatalf("barcode must stay visible next to the error, got %q", snap.ScannedBarcode)
	}
}

func TestDuplicateDetectionIgnoredWithinCycle(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), product: &models.ProductRecord{Name: "X"}}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)

	// The capability keeps emitting detections for the same physical code;
	// only the first one may launch a lookup.
	s.ObserveBarcode("123")
	s.ObserveBarcode("123")
	s.ObserveBarcode("456")
	waitForState(t, ch, StateFetching)

	close(f.release)
	snap := waitForState(t, ch, StateResult)
	if snap.ScannedBarcode != "123" {
		t.Fatalf("scanned barcode = %q, want the first accepted code", snap.ScannedBarcode)
	}
}

func TestLastScannedCodeClearedOnNewCycle(t *testing.T) {
	f := &fakeFetcher{product: &models.ProductRecord{Name: "X"}}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateResult)

	// Scan again: the very same barcode must be accepted immediately.
	s.BeginScan()
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateResult)

	if f.callCount() != 2 {
		t.Fatalf("lookups = %d, want 2", f.callCount())
	}
}

func TestStaleLookupDiscardedAfterNewCycle(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), product: &models.ProductRecord{Name: "Stale"}}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("111")
	waitForState(t, ch, StateFetching)

	// A new cycle begins before lookup A resolves.
	s.BeginScan()
	waitForState(t, ch, StateScanning)

	// A now resolves successfully; its result must be discarded.
	close(f.release)
	assertNoTerminalState(t, ch)

	snap := s.Snapshot()
	if snap.State != StateScanning || snap.Product != nil {
		t.Fatalf("stale lookup leaked into %+v", snap)
	}
}

func TestStaleFailureDiscardedAfterNewCycle(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), err: errors.New("boom")}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("111")
	waitForState(t, ch, StateFetching)

	s.BeginScan()
	waitForState(t, ch, StateScanning)

	close(f.release)
	assertNoTerminalState(t, ch)

	if snap := s.Snapshot(); snap.State != StateScanning || snap.ErrorMessage != "" {
		t.Fatalf("stale failure leaked into %+v", snap)
	}
}

func TestRevokedAuthorizationDropsToIdle(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), product: &models.ProductRecord{Name: "X"}}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateFetching)

	s.SetAuthorization(AuthorizationDenied)
	snap := waitForState(t, ch, StateIdle)
	if snap.Authorization != AuthorizationDenied {
		t.Fatalf("authorization = %v", snap.Authorization)
	}

	close(f.release)
	assertNoTerminalState(t, ch)
	if got := s.Snapshot().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestRefreshedAuthorizationDoesNotReplayTerminalState(t *testing.T) {
	f := &fakeFetcher{product: &models.ProductRecord{Name: "X"}}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateResult)

	// The host re-reports the permission it already holds. Nothing changed,
	// so the result snapshot must not be emitted a second time.
	s.SetAuthorization(AuthorizationAuthorized)
	assertNoTerminalState(t, ch)
	if got := s.Snapshot().State; got != StateResult {
		t.Fatalf("state = %v, want result", got)
	}
}

func TestFetchContextReleasedAfterCompletion(t *testing.T) {
	var mu sync.Mutex
	var fetchCtx context.Context
	fetcher := fetcherFunc(func(ctx context.Context, barcode string) (*models.ProductRecord, error) {
		mu.Lock()
		fetchCtx = ctx
		mu.Unlock()
		return &models.ProductRecord{Name: "X"}, nil
	})
	s, ch := newTestSession(fetcher)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateResult)

	// The lookup's context is cancelled once it settles, not left live
	// until the next cycle happens to replace it.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		ctx := fetchCtx
		mu.Unlock()
		if ctx != nil && ctx.Err() != nil {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("lookup context never released")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRetryFromErrorState(t *testing.T) {
	f := &fakeFetcher{err: errors.New("product not found")}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateError)

	// Manual retry re-enters scanning without a fresh permission check.
	s.BeginScan()
	snap := waitForState(t, ch, StateScanning)
	if snap.ErrorMessage != "" || snap.ScannedBarcode != "" {
		t.Fatalf("cycle state not reset: %+v", snap)
	}
}

func TestCloseCancelsInFlightFetch(t *testing.T) {
	f := &blockingFetcher{release: make(chan struct{}), product: &models.ProductRecord{Name: "X"}}
	s, ch := newTestSession(f)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateFetching)

	s.Close()
	close(f.release)
	assertNoTerminalState(t, ch)
	if got := s.Snapshot().State; got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
}

func TestCancelledLookupProducesNoTransition(t *testing.T) {
	// Fetcher that honors ctx like the real client.
	release := make(chan struct{})
	fetcher := fetcherFunc(func(ctx context.Context, barcode string) (*models.ProductRecord, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return &models.ProductRecord{Name: "X"}, nil
		}
	})
	s, ch := newTestSession(fetcher)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("123")
	waitForState(t, ch, StateFetching)

	s.BeginScan() // cancels the in-flight lookup
	waitForState(t, ch, StateScanning)

	assertNoTerminalState(t, ch)
	close(release)
}

type fetcherFunc func(ctx context.Context, barcode string) (*models.ProductRecord, error)

func (f fetcherFunc) FetchProduct(ctx context.Context, barcode string) (*models.ProductRecord, error) {
	return f(ctx, barcode)
}

func TestUpstream404SurfacesAsErrorState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := off.NewClient(srv.URL, "test-agent", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	s, ch := newTestSession(client)

	s.SetAuthorization(AuthorizationAuthorized)
	waitForState(t, ch, StateScanning)
	s.ObserveBarcode("5000112548167")
	snap := waitForState(t, ch, StateError)

	if !strings.Contains(snap.ErrorMessage, "404") {
		t.Fatalf("error message %q does not mention the status", snap.ErrorMessage)
	}
	if snap.ScannedBarcode != "5000112548167" {
		t.Fatalf("scanned barcode = %q", snap.ScannedBarcode)
	}
}
