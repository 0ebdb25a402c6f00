// Package scan owns the scan lifecycle: it mediates between a
// barcode-producing capability, the camera-permission gate and the remote
// product client, and exposes read-only snapshots to the presentation layer.
package scan

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/nutriscan/backend/internal/models"
)

// ProductFetcher resolves a barcode to a product record. Implementations
// must be safe for concurrent use; the off.Client satisfies this.
type ProductFetcher interface {
	FetchProduct(ctx context.Context, barcode string) (*models.ProductRecord, error)
}

// Snapshot is a read-only view of a session for rendering. The error state
// keeps the scanned barcode visible so a failure can be correlated with the
// attempted scan.
type Snapshot struct {
	State          State                 `json:"state"`
	Authorization  Authorization         `json:"authorization"`
	ScannedBarcode string                `json:"scanned_barcode,omitempty"`
	Product        *models.ProductRecord `json:"product,omitempty"`
	ErrorMessage   string                `json:"error,omitempty"`
}

// Session is the scan-lifecycle state machine:
//
//	idle -> scanning -> fetching -> result | error(message)
//
// All mutation happens under one mutex in response to the defined triggers;
// the lookup itself runs in its own goroutine and reports back through a
// generation-checked completion handler, so a stale lookup can never
// overwrite state set by a newer cycle. At most one lookup is in flight at
// any time.
type Session struct {
	fetcher  ProductFetcher
	onChange func(Snapshot) // invoked outside the lock, may be nil

	mu              sync.Mutex
	state           State
	authorization   Authorization
	scannedBarcode  string
	lastScannedCode string // de-duplicates repeated detections of one code
	product         *models.ProductRecord
	errorMessage    string

	generation  uint64 // bumped whenever a cycle starts or the session resets
	cancelFetch context.CancelFunc
}

// NewSession creates an idle session. onChange, if non-nil, is called with a
// snapshot after every state transition.
func NewSession(fetcher ProductFetcher, onChange func(Snapshot)) *Session {
	return &Session{
		fetcher:       fetcher,
		onChange:      onChange,
		state:         StateIdle,
		authorization: AuthorizationUnknown,
	}
}

// BeginScan starts a new scan cycle. It is the "scan" and "retry" action:
// valid from any state, including while a fetch is still resolving (the
// fetch is cancelled and its eventual result discarded). Without camera
// authorization it is a no-op.
func (s *Session) BeginScan() {
	s.mu.Lock()
	if s.authorization != AuthorizationAuthorized {
		s.mu.Unlock()
		return
	}
	s.startCycleLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// ObserveBarcode feeds one decoded code from the detection capability.
// It is honored only while scanning; empty codes and repeats of the code
// already accepted this cycle are ignored. An accepted code launches the
// single in-flight lookup.
func (s *Session) ObserveBarcode(code string) {
	code = strings.TrimSpace(code)

	s.mu.Lock()
	if s.state != StateScanning || code == "" || code == s.lastScannedCode {
		s.mu.Unlock()
		return
	}

	s.lastScannedCode = code
	s.scannedBarcode = code
	s.state = StateFetching

	s.cancelFetchLocked()
	s.generation++
	gen := s.generation
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFetch = cancel

	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	go func() {
		// Release the context once the lookup settles; cancel is
		// idempotent, so a newer cycle having called it already is fine.
		defer cancel()
		s.fetch(ctx, gen, code)
	}()
}

// SetAuthorization applies a camera-permission change from the capability
// gate. Losing authorization drops the session to idle from any state and
// cancels an in-flight fetch; gaining (or refreshing) it while idle
// auto-starts a new scan cycle.
func (s *Session) SetAuthorization(a Authorization) {
	s.mu.Lock()
	before := s.snapshotLocked()
	s.authorization = a
	if a != AuthorizationAuthorized {
		s.resetLocked(StateIdle)
	} else if s.state == StateIdle {
		s.startCycleLocked()
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	// A refreshed report that changed nothing (e.g. "authorized" repeated
	// while a result is showing) is not a transition; re-emitting the
	// terminal snapshot would persist the same cycle twice downstream.
	if snap != before {
		s.notify(snap)
	}
}

// Snapshot returns the current read-only view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Close tears the session down: the in-flight fetch, if any, is cancelled
// and the session returns to idle. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	s.resetLocked(StateIdle)
	s.mu.Unlock()
}

// fetch runs one lookup and applies its outcome, unless a newer cycle has
// taken over in the meantime. Cancelled lookups produce no transition.
func (s *Session) fetch(ctx context.Context, gen uint64, code string) {
	product, err := s.fetcher.FetchProduct(ctx, code)

	s.mu.Lock()
	if gen != s.generation || ctx.Err() != nil {
		// A newer cycle owns the session; discard silently.
		s.mu.Unlock()
		return
	}
	if err != nil && errors.Is(err, context.Canceled) {
		s.mu.Unlock()
		return
	}

	s.cancelFetch = nil
	if err != nil {
		s.state = StateError
		s.errorMessage = err.Error()
		s.product = nil
	} else {
		s.state = StateResult
		s.product = product
		s.errorMessage = ""
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// startCycleLocked enters scanning and resets everything a cycle owns,
// including lastScannedCode: after an explicit new scan the very same
// barcode is accepted again immediately.
func (s *Session) startCycleLocked() {
	s.resetLocked(StateScanning)
}

func (s *Session) resetLocked(state State) {
	s.cancelFetchLocked()
	s.generation++
	s.state = state
	s.scannedBarcode = ""
	s.lastScannedCode = ""
	s.product = nil
	s.errorMessage = ""
}

func (s *Session) cancelFetchLocked() {
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		State:          s.state,
		Authorization:  s.authorization,
		ScannedBarcode: s.scannedBarcode,
		Product:        s.product,
		ErrorMessage:   s.errorMessage,
	}
}

func (s *Session) notify(snap Snapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
