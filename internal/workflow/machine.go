// Package workflow implements the upload client's completion state machine:
// Idle -> Uploading -> Processing -> Success|Error, with an explicit reset
// back to Idle. The machine is a plain data structure wired to three small
// collaborator interfaces, so it is testable with no UI, no HTTP server, and
// no real object store.
package workflow

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/ananthjv/pixlift/internal/credential"
	"github.com/ananthjv/pixlift/internal/model"
	"github.com/ananthjv/pixlift/internal/retry"
)

// State is the machine's lifecycle position.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
)

// Issuer obtains a write credential for an upload request.
type Issuer interface {
	Issue(ctx context.Context, req model.UploadRequest, fileName string) (*credential.Grant, error)
}

// Uploader performs the binary write against the issued credential. It must
// return ErrExpiredCredential (possibly wrapped) when the store rejects an
// expired grant.
type Uploader interface {
	Upload(ctx context.Context, grant *credential.Grant, data []byte) error
}

// Lookup is the scoped metadata read the poller drives. Absence is reported
// as (nil, nil), not an error.
type Lookup interface {
	Lookup(ctx context.Context, assetKey string) (*model.MetadataRecord, error)
}

// Machine drives one upload session end to end.
type Machine struct {
	issuer   Issuer
	uploader Uploader
	lookup   Lookup
	policy   retry.Policy

	maxFileSize  int64
	allowedTypes []string

	mu       sync.Mutex
	state    State
	assetKey string
	result   *model.MetadataRecord
	lastErr  error
	cancel   context.CancelFunc
	// gen fences stale completions: every Submit and Reset bumps it, and a
	// poll outcome only applies if the generation it started under is still
	// current. A record arriving for an abandoned key can never re-enter.
	gen uint64
}

// Option tweaks machine construction.
type Option func(*Machine)

// WithLimits overrides the local validation limits.
func WithLimits(maxFileSize int64, allowedTypes []string) Option {
	return func(m *Machine) {
		m.maxFileSize = maxFileSize
		m.allowedTypes = allowedTypes
	}
}

// New builds an idle Machine with the given collaborators and retry policy.
func New(issuer Issuer, uploader Uploader, lookup Lookup, policy retry.Policy, opts ...Option) *Machine {
	m := &Machine{
		issuer:       issuer,
		uploader:     uploader,
		lookup:       lookup,
		policy:       policy,
		maxFileSize:  10 << 20,
		allowedTypes: []string{"image/jpeg", "image/png"},
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle position.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AssetKey returns the in-flight or last-completed asset key.
func (m *Machine) AssetKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assetKey
}

// Result returns the qualifying record after a successful run.
func (m *Machine) Result() *model.MetadataRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Err returns the terminal error after a failed run.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Submit runs one upload to completion: validate, issue, write, poll. It
// returns the qualifying record on success, and blocks for at most the upload
// plus the retry budget. Violations of the local guards fail synchronously
// before any network call. While a submission is in flight further calls fail
// with ErrBusy.
func (m *Machine) Submit(ctx context.Context, req model.UploadRequest, fileName string, data []byte) (*model.MetadataRecord, error) {
	if err := m.validate(fileName, data); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.state == StateUploading || m.state == StateProcessing {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.gen++
	gen := m.gen
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.state = StateUploading
	m.assetKey = ""
	m.result = nil
	m.lastErr = nil
	m.mu.Unlock()
	defer cancel()

	grant, err := m.issuer.Issue(runCtx, req, fileName)
	if err != nil {
		if runCtx.Err() != nil {
			return nil, ErrAborted
		}
		return nil, m.fail(gen, &TransportError{Err: err})
	}
	m.setAssetKey(gen, grant.AssetKey)

	if err := m.uploader.Upload(runCtx, grant, data); err != nil {
		if runCtx.Err() != nil {
			return nil, ErrAborted
		}
		if errors.Is(err, ErrExpiredCredential) {
			return nil, m.fail(gen, err)
		}
		return nil, m.fail(gen, &TransportError{Err: err})
	}
	if !m.transition(gen, StateUploading, StateProcessing) {
		return nil, ErrAborted
	}

	var found *model.MetadataRecord
	err = retry.Run(runCtx, m.policy, func(ctx context.Context, attempt int) error {
		rec, err := m.lookup.Lookup(ctx, grant.AssetKey)
		if err != nil {
			return err
		}
		// A record that exists but carries no savings value is still being
		// processed; only a qualifying record ends the wait.
		if !rec.Qualifies() {
			return retry.Continue
		}
		found = rec
		return nil
	})
	switch {
	case err == nil:
		if !m.succeed(gen, found) {
			return nil, ErrAborted
		}
		return found, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return nil, ErrAborted
	default:
		var exhausted *retry.Exhausted
		if errors.As(err, &exhausted) {
			return nil, m.fail(gen, ErrTimeoutExhausted)
		}
		return nil, m.fail(gen, &TransportError{Err: err})
	}
}

// Reset returns the machine to Idle, cancelling any in-flight poll. The
// abandoned asset key is fenced off: a late-arriving record for it is inert.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.state = StateIdle
	m.assetKey = ""
	m.result = nil
	m.lastErr = nil
}

func (m *Machine) validate(fileName string, data []byte) error {
	if fileName == "" || len(data) == 0 {
		return &ValidationError{Reason: "no file provided"}
	}
	if int64(len(data)) > m.maxFileSize {
		return &ValidationError{Reason: "file exceeds size limit"}
	}
	sniff := data
	if len(sniff) > 512 {
		sniff = sniff[:512]
	}
	contentType := http.DetectContentType(sniff)
	for _, allowed := range m.allowedTypes {
		if contentType == allowed {
			return nil
		}
	}
	return &ValidationError{Reason: "unsupported file type " + contentType}
}

func (m *Machine) setAssetKey(gen uint64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.assetKey = key
	}
}

func (m *Machine) transition(gen uint64, from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.state != from {
		return false
	}
	m.state = to
	return true
}

func (m *Machine) succeed(gen uint64, rec *model.MetadataRecord) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.state = StateSuccess
	m.result = rec
	return true
}

func (m *Machine) fail(gen uint64, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen == gen {
		m.state = StateError
		m.lastErr = err
	}
	return err
}
