// Package authflow runs the Trakt OAuth device-code grant: request a device
// code, poll the token endpoint until the user approves, and hand the tokens
// off exactly once. One authorization attempt is active at a time; a new
// code request cancels the previous attempt's poll loop outright.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"betatrakt/services/trakt"
)

// Status is the state of the device authorization machine.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRequesting Status = "requesting"
	StatusWaiting    Status = "waiting"
	StatusApproved   Status = "approved"
	StatusError      Status = "error"
)

// slowDownIncrement is the fixed delay bump applied on a slow_down signal.
const slowDownIncrement = 5 * time.Second

var ErrClientIDRequired = errors.New("trakt client id is required")

const (
	msgSecretRequired = "Provide your Trakt client secret to start polling for approval."
	msgVisitTrakt     = "Visit Trakt, enter the user code and approve the application."
	msgApproved       = "Trakt granted access. You can now migrate your library."
	msgCodeExpired    = "Device code expired. Request a new code and try again."
)

// Authorizer is the slice of the Trakt client the state machine needs.
type Authorizer interface {
	RequestDeviceCode(ctx context.Context) (*trakt.DeviceCode, error)
	ExchangeDeviceCode(ctx context.Context, deviceCode string) (*trakt.Tokens, error)
	UpdateCredentials(clientID, clientSecret string)
	HasSecret() bool
}

// Snapshot is a point-in-time view of the machine for the status endpoint.
// Remaining is derived from the stored expiry on every call, independent of
// poll timing.
type Snapshot struct {
	Status          Status `json:"status"`
	Message         string `json:"message,omitempty"`
	UserCode        string `json:"userCode,omitempty"`
	VerificationURL string `json:"verificationUrl,omitempty"`
	Remaining       string `json:"remaining,omitempty"`
	HasTokens       bool   `json:"hasTokens"`
}

// Service owns the poll loop for the active authorization attempt. All
// pending timers die with the attempt's context: on a new code request, on
// Close, and on every terminal transition.
type Service struct {
	client Authorizer

	// injectable for tests
	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	status     Status
	message    string
	code       *trakt.DeviceCode
	expiresAt  time.Time
	tokens     *trakt.Tokens
	cancel     context.CancelFunc
	generation int

	approved chan *trakt.Tokens
}

// NewService creates an idle state machine over the given client.
func NewService(client Authorizer) *Service {
	return &Service{
		client:   client,
		status:   StatusIdle,
		now:      time.Now,
		wait:     waitTimer,
		approved: make(chan *trakt.Tokens, 1),
	}
}

func waitTimer(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RequestCode discards any active attempt, requests a fresh device code and,
// when a client secret is available, starts the poll loop. Without a secret
// the machine stays waiting and surfaces a prompt instead of polling.
func (s *Service) RequestCode(ctx context.Context, clientID, clientSecret string) (*trakt.DeviceCode, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" {
		return nil, ErrClientIDRequired
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.status = StatusRequesting
	s.message = ""
	s.code = nil
	s.tokens = nil
	s.client.UpdateCredentials(clientID, clientSecret)
	s.mu.Unlock()

	code, err := s.client.RequestDeviceCode(ctx)
	if err != nil {
		s.transition(generation, StatusError, err.Error())
		return nil, err
	}

	s.mu.Lock()
	if generation != s.generation {
		// superseded while the request was in flight
		s.mu.Unlock()
		return code, nil
	}
	s.code = code
	s.expiresAt = s.now().Add(time.Duration(code.ExpiresIn) * time.Second)
	s.status = StatusWaiting
	s.message = msgVisitTrakt

	if !s.client.HasSecret() {
		s.message = msgSecretRequired
		s.mu.Unlock()
		return code, nil
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	expiresAt := s.expiresAt
	s.mu.Unlock()

	go s.poll(pollCtx, generation, code, expiresAt)

	return code, nil
}

// poll drives the token exchange loop for one authorization attempt. The
// delay starts at the advertised interval and only ever grows, by 5 seconds
// per slow_down signal.
func (s *Service) poll(ctx context.Context, generation int, code *trakt.DeviceCode, expiresAt time.Time) {
	delay := time.Duration(code.Interval) * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		if s.now().After(expiresAt) {
			s.transition(generation, StatusError, msgCodeExpired)
			return
		}

		tokens, err := s.client.ExchangeDeviceCode(ctx, code.DeviceCode)
		if err == nil {
			s.approve(generation, tokens)
			return
		}

		if ctx.Err() != nil {
			return
		}

		var flowErr *trakt.DeviceFlowError
		if !errors.As(err, &flowErr) {
			s.transition(generation, StatusError, err.Error())
			return
		}

		switch flowErr.Code {
		case trakt.CodeAuthorizationPending:
			// keep polling at the current delay
		case trakt.CodeSlowDown:
			delay += slowDownIncrement
		case trakt.CodeExpiredToken:
			s.transition(generation, StatusError, msgCodeExpired)
			return
		default:
			s.transition(generation, StatusError, flowErr.Message)
			return
		}

		if err := s.wait(ctx, delay); err != nil {
			return
		}
	}
}

// transition moves the machine to a terminal-ish state, unless the attempt
// that produced it has already been superseded.
func (s *Service) transition(generation int, status Status, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return
	}
	s.status = status
	s.message = message
	if status == StatusError && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// approve records the terminal success transition and performs the one-shot
// token handoff.
func (s *Service) approve(generation int, tokens *trakt.Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return
	}
	s.status = StatusApproved
	s.message = msgApproved
	s.tokens = tokens
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	select {
	case s.approved <- tokens:
	default:
	}
	log.Printf("trakt device authorization approved")
}

// Approved exposes the one-shot token handoff channel.
func (s *Service) Approved() <-chan *trakt.Tokens {
	return s.approved
}

// Tokens returns the granted tokens, if the machine has reached approval.
func (s *Service) Tokens() (*trakt.Tokens, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, s.tokens != nil
}

// Snapshot returns the current machine state for display.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:    s.status,
		Message:   s.message,
		HasTokens: s.tokens != nil,
	}
	if s.code != nil {
		snap.UserCode = s.code.UserCode
		snap.VerificationURL = s.code.VerificationURL
		snap.Remaining = formatRemaining(s.expiresAt.Sub(s.now()))
	}
	return snap
}

// Close tears the machine down, cancelling any in-flight poll loop and its
// pending timer.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.status = StatusIdle
	s.message = ""
	s.code = nil
}

// formatRemaining renders a countdown, reaching "expired" at or below zero.
func formatRemaining(d time.Duration) string {
	if d <= 0 {
		return "expired"
	}
	seconds := int(d.Round(time.Second) / time.Second)
	minutes := seconds / 60
	seconds = seconds % 60
	if minutes == 0 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
