// Package auth owns the durable authentication session: password and
// one-time-passcode login, logout, and the onboarding gate. It is the only
// writer of session state; the route guard and views consume it read-only.
package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/emosense/authd/internal/config"
	"github.com/emosense/authd/internal/model"
	"github.com/emosense/authd/internal/otp"
	"github.com/emosense/authd/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Durable-storage keys. The names predate this service (the first client
// kept them in browser storage) and are preserved so existing state
// survives the migration.
const (
	keyAuthenticated      = "isAuthenticated"
	keyUser               = "userInfo"
	keyToken              = "token"
	keyOTP                = "otpInfo"
	keyRedirect           = "redirectPath" // legacy, cleared on login, never read
	keyConsent            = "consentGiven"
	keyClassification     = "userClassification"
	keyClassificationDone = "hasCompletedClassification"
)

// PostLoginPath is the fixed destination after any successful login.
// Returning users are not sent back to where they came from.
const PostLoginPath = "/journal"

// OTPReceipt is what RequestOTP hands back to the caller. Code is exposed
// here only because no real delivery channel exists; see otp.Sender.
type OTPReceipt struct {
	Code            string
	ValidityMinutes int
}

type Manager struct {
	log    *zap.Logger
	store  store.Store
	clock  clockwork.Clock
	sender otp.Sender

	loginDelay  time.Duration
	otpDelay    time.Duration
	otpValidity time.Duration

	mu      sync.Mutex
	busy    bool
	session model.Session
	profile model.Profile
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Config *config.Config
	Store  store.Store
	Clock  clockwork.Clock
	Sender otp.Sender
}

// New builds the manager and restores session state from durable storage.
// Restore never fails: malformed stored values are treated as absent, so
// the worst outcome of corrupted storage is a logged-out session.
func New(p Params) (*Manager, error) {
	m := &Manager{
		log:         p.Log,
		store:       p.Store,
		clock:       p.Clock,
		sender:      p.Sender,
		loginDelay:  p.Config.Auth.LoginDelay(),
		otpDelay:    p.Config.Auth.OTPDelay(),
		otpValidity: p.Config.Auth.OTPValidity(),
	}

	m.restore(context.Background())

	return m, nil
}

func (m *Manager) restore(ctx context.Context) {
	if v, err := m.store.Get(ctx, keyAuthenticated); err == nil && v == "true" {
		var u model.User
		if m.readJSON(ctx, keyUser, &u) && u.Identifier != "" {
			m.session.Authenticated = true
			m.session.User = &u
		}
	}

	var p model.PendingOTP
	if m.readJSON(ctx, keyOTP, &p) && p.Code != "" {
		m.session.PendingOTP = &p
	}

	if v, err := m.store.Get(ctx, keyConsent); err == nil && v == "true" {
		m.profile.ConsentGiven = true
	}
	if v, err := m.store.Get(ctx, keyClassification); err == nil {
		m.profile.Classification = v
	}
	if v, err := m.store.Get(ctx, keyClassificationDone); err == nil && v == "true" {
		m.profile.ClassificationDone = true
	}
}

// readJSON reports whether key held a well-formed record. Malformed values
// are logged and treated as absent.
func (m *Manager) readJSON(ctx context.Context, key string, out any) bool {
	v, err := m.store.Get(ctx, key)
	if err != nil {
		return false
	}

	if err := json.Unmarshal([]byte(v), out); err != nil {
		m.log.Warn("discarding malformed stored record",
			zap.String("key", key), zap.Error(err))
		return false
	}

	return true
}

// begin claims the single operation slot. A second mutating call while one
// is in flight gets ErrBusy instead of racing.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return ErrBusy
	}

	m.busy = true
	return nil
}

func (m *Manager) end() {
	m.mu.Lock()
	m.busy = false
	m.mu.Unlock()
}

// LoginWithPassword authenticates with an identifier and secret. There is
// no credential backend: any non-empty pair succeeds after a simulated
// round trip, and a user record is synthesized from the identifier.
func (m *Manager) LoginWithPassword(ctx context.Context, identifier, secret string) (*model.User, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	if m.loginDelay > 0 {
		m.clock.Sleep(m.loginDelay)
	}

	if identifier == "" || secret == "" {
		return nil, ErrInvalidCredentials
	}

	return m.completeLogin(ctx, identifier)
}

// RequestOTP issues a fresh 6-digit code for the identifier, replacing any
// previously pending one, and hands it to the delivery channel.
func (m *Manager) RequestOTP(ctx context.Context, identifier string) (*OTPReceipt, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	if m.otpDelay > 0 {
		m.clock.Sleep(m.otpDelay)
	}

	if identifier == "" {
		return nil, ErrMissingIdentifier
	}

	code, err := otp.Generate()
	if err != nil {
		return nil, err
	}

	pending := &model.PendingOTP{
		Identifier: identifier,
		Code:       code,
		ExpiresAt:  m.clock.Now().Add(m.otpValidity),
	}

	if err := m.writeJSON(ctx, keyOTP, pending); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.session.PendingOTP = pending
	m.mu.Unlock()

	if err := m.sender.Send(ctx, identifier, code); err != nil {
		// The code is already durable and usable; delivery is advisory.
		m.log.Warn("otp delivery failed", zap.Error(err))
	}

	return &OTPReceipt{
		Code:            code,
		ValidityMinutes: int(m.otpValidity.Minutes()),
	}, nil
}

// LoginWithOTP verifies the pending code for the identifier. Preconditions
// are checked in order and each failure leaves the pending code intact so
// the user may retry. Success consumes the code.
func (m *Manager) LoginWithOTP(ctx context.Context, identifier, code string) (*model.User, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	defer m.end()

	m.mu.Lock()
	pending := m.session.PendingOTP
	m.mu.Unlock()

	if pending == nil || pending.Identifier != identifier {
		return nil, ErrOTPNotRequested
	}
	if m.clock.Now().After(pending.ExpiresAt) {
		return nil, ErrOTPExpired
	}
	if pending.Code != code {
		return nil, ErrOTPMismatch
	}

	user, err := m.completeLogin(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := m.store.Delete(ctx, keyOTP); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.session.PendingOTP = nil
	m.mu.Unlock()

	return user, nil
}

// Register validates a prospective account. No account store exists, so a
// valid registration changes no state; the caller proceeds to login.
func (m *Manager) Register(ctx context.Context, identifier, secret string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	if m.loginDelay > 0 {
		m.clock.Sleep(m.loginDelay)
	}

	if identifier == "" || len(secret) < 6 {
		return ErrInvalidRegistration
	}

	return nil
}

// Logout clears the session, the pending code, and their durable entries.
// Calling it while logged out is a no-op.
func (m *Manager) Logout(ctx context.Context) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.end()

	for _, key := range []string{keyAuthenticated, keyUser, keyToken, keyOTP} {
		if err := m.store.Delete(ctx, key); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.session = model.Session{}
	m.mu.Unlock()

	return nil
}

// GiveConsent records acceptance of the consent form.
func (m *Manager) GiveConsent(ctx context.Context) error {
	if err := m.store.Set(ctx, keyConsent, "true"); err != nil {
		return err
	}

	m.mu.Lock()
	m.profile.ConsentGiven = true
	m.mu.Unlock()

	return nil
}

// SetClassification records the chosen user classification and marks the
// onboarding gate complete.
func (m *Manager) SetClassification(ctx context.Context, kind string) error {
	if err := m.store.Set(ctx, keyClassification, kind); err != nil {
		return err
	}
	if err := m.store.Set(ctx, keyClassificationDone, "true"); err != nil {
		return err
	}

	m.mu.Lock()
	m.profile.Classification = kind
	m.profile.ClassificationDone = true
	m.mu.Unlock()

	return nil
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Authenticated
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.User == nil {
		return nil
	}

	u := *m.session.User
	return &u
}

// PendingOTP returns a copy of the pending code record, or nil.
func (m *Manager) PendingOTP() *model.PendingOTP {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session.PendingOTP == nil {
		return nil
	}

	p := *m.session.PendingOTP
	return &p
}

func (m *Manager) Profile() model.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

// completeLogin synthesizes the user record, persists the authenticated
// state, and drops the legacy redirect path.
func (m *Manager) completeLogin(ctx context.Context, identifier string) (*model.User, error) {
	user := &model.User{
		Identifier:  identifier,
		DisplayName: "user-" + lastN(identifier, 4),
		Token:       "tok-" + uuid.NewString(),
	}

	if err := m.store.Set(ctx, keyAuthenticated, "true"); err != nil {
		return nil, err
	}
	if err := m.writeJSON(ctx, keyUser, user); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, keyToken, user.Token); err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, keyRedirect); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.session.Authenticated = true
	m.session.User = user
	m.mu.Unlock()

	m.log.Info("login succeeded", zap.String("identifier", identifier))

	return user, nil
}

func (m *Manager) writeJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return m.store.Set(ctx, key, string(b))
}

func lastN(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
