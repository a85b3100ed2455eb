package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/expensahq/expensa-go/credentials"
	"github.com/expensahq/expensa-go/identity"
	apperrors "github.com/expensahq/expensa-go/internal/errors"
	"github.com/expensahq/expensa-go/tenants"
	"github.com/expensahq/expensa-go/token"
)

// Manager owns the Session and is the only component that mutates it. It
// hydrates from the credential store on Initialize, drives login/logout and
// tenant selection, and coordinates single-flight token renewal.
type Manager struct {
	idp   identity.Client
	creds credentials.Store

	lock    sync.RWMutex
	current Session
	// generation is the auth epoch. It advances whenever the session is
	// established or torn down, so an in-flight renewal started against an
	// earlier epoch can never write into a later one.
	generation uint64

	flights singleflight.Group

	obsLock   sync.Mutex
	observers map[uint64]func(Session)
	nextObsID uint64
}

// NewManager initializes a Manager with required dependencies.
func NewManager(idp identity.Client, creds credentials.Store) (*Manager, error) {
	if idp == nil {
		return nil, errors.New("[NewManager] identity client is required")
	}
	if creds == nil {
		return nil, errors.New("[NewManager] credential store is required")
	}

	return &Manager{
		idp:       idp,
		creds:     creds,
		current:   Session{Status: StatusUnauthenticated},
		observers: make(map[uint64]func(Session)),
	}, nil
}

// Session returns a read-only snapshot of the current session.
func (m *Manager) Session() Session {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.clone()
}

// AccessToken returns the current bearer token, or "" when unauthenticated.
func (m *Manager) AccessToken() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.AccessToken
}

// ActiveTenantID returns the active tenant's id, or "" when none is selected.
func (m *Manager) ActiveTenantID() string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.current.ActiveTenantID()
}

// Observe registers fn to be called with a snapshot after every session
// transition. The returned cancel function removes the observer.
func (m *Manager) Observe(fn func(Session)) (cancel func()) {
	m.obsLock.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.obsLock.Unlock()

	return func() {
		m.obsLock.Lock()
		delete(m.observers, id)
		m.obsLock.Unlock()
	}
}

// Initialize hydrates the session from the credential store. An expired
// access token is renewed first; a valid one is then resolved to a user and
// tenant memberships. The previously active tenant is re-selected if still a
// member, else the first membership. Any failure tears the session down
// rather than leaving it half populated.
func (m *Manager) Initialize(ctx context.Context) error {
	stored, err := m.creds.Load()
	if err != nil {
		m.reset()
		return errors.Wrap(err, "Manager.Initialize Load")
	}
	if stored.AccessToken == "" {
		m.reset()
		return nil
	}

	m.lock.Lock()
	m.current.AccessToken = stored.AccessToken
	m.current.RefreshToken = stored.RefreshToken
	m.current.Status = StatusInitializing
	gen := m.generation
	m.lock.Unlock()
	m.notify()

	accessToken := stored.AccessToken
	if token.IsExpired(accessToken) {
		accessToken, err = m.Refresh(ctx)
		if err != nil {
			return errors.Wrap(err, "Manager.Initialize Refresh")
		}
	}

	claims, err := token.Decode(accessToken)
	if err != nil {
		m.resetIf(gen)
		return errors.Wrap(err, "Manager.Initialize Decode")
	}

	memberships, err := m.idp.Tenants(ctx, accessToken)
	if err != nil {
		m.resetIf(gen)
		return errors.Wrap(err, "Manager.Initialize Tenants")
	}

	m.lock.Lock()
	if m.generation != gen {
		m.lock.Unlock()
		return apperrors.ErrSessionExpired
	}
	m.current.User = claims.User()
	m.current.Tenants = memberships
	m.current.ActiveTenant = selectActive(memberships, stored.ActiveTenantID)
	m.current.Status = StatusAuthenticated
	m.lock.Unlock()

	m.persist()
	m.notify()
	return nil
}

// Login exchanges credentials for a fresh session. A rejection by the
// identity service surfaces as ErrInvalidCredentials with no state change.
func (m *Manager) Login(ctx context.Context, email, password string) (*identity.LoginResult, error) {
	result, err := m.idp.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	m.establish(result)
	return result, nil
}

// Register creates a new account and establishes the session with the same
// post-conditions as Login.
func (m *Manager) Register(ctx context.Context, reg identity.Registration) (*identity.LoginResult, error) {
	result, err := m.idp.Register(ctx, reg)
	if err != nil {
		return nil, err
	}

	m.establish(result)
	return result, nil
}

// SwitchTenant selects an existing membership as the active tenant. A
// non-member id is a local validation error; no network call is made and the
// active tenant is left unchanged.
func (m *Manager) SwitchTenant(tenantID string) error {
	m.lock.Lock()
	if !m.current.Authenticated() {
		m.lock.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	membership, ok := tenants.Find(m.current.Tenants, tenantID)
	if !ok {
		m.lock.Unlock()
		return errors.Wrapf(apperrors.ErrTenantNotFound, "tenant %q", tenantID)
	}
	m.current.ActiveTenant = &membership
	m.lock.Unlock()

	m.persist()
	m.notify()
	return nil
}

// Logout notifies the identity service best-effort and clears all in-memory
// and persisted session state. It always succeeds locally.
func (m *Manager) Logout(ctx context.Context) {
	m.lock.RLock()
	accessToken := m.current.AccessToken
	m.lock.RUnlock()

	if accessToken != "" {
		if err := m.idp.Logout(ctx, accessToken); err != nil {
			log.Debug().Err(err).Msg("Logout notification failed")
		}
	}
	m.reset()
}

// UpdateProfile updates the user's name on the platform and patches the
// in-memory session on success.
func (m *Manager) UpdateProfile(ctx context.Context, firstName, lastName string) error {
	m.lock.RLock()
	accessToken := m.current.AccessToken
	authenticated := m.current.Authenticated()
	m.lock.RUnlock()
	if !authenticated {
		return apperrors.ErrNotAuthenticated
	}

	if err := m.idp.UpdateProfile(ctx, accessToken, firstName, lastName); err != nil {
		return errors.Wrap(err, "Manager.UpdateProfile")
	}

	m.lock.Lock()
	m.current.User.FirstName = firstName
	m.current.User.LastName = lastName
	m.lock.Unlock()
	m.notify()
	return nil
}

// ChangePassword changes the account password. The session and tokens are
// unaffected.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	m.lock.RLock()
	accessToken := m.current.AccessToken
	authenticated := m.current.Authenticated()
	m.lock.RUnlock()
	if !authenticated {
		return apperrors.ErrNotAuthenticated
	}

	return m.idp.ChangePassword(ctx, accessToken, currentPassword, newPassword)
}

// establish replaces the session with a freshly issued one. The first tenant
// membership becomes the active tenant.
func (m *Manager) establish(result *identity.LoginResult) {
	m.lock.Lock()
	m.generation++
	m.current = Session{
		User:         result.User,
		Tenants:      append([]tenants.Tenant(nil), result.Tenants...),
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		Status:       StatusAuthenticated,
	}
	if len(result.Tenants) > 0 {
		first := result.Tenants[0]
		m.current.ActiveTenant = &first
	}
	m.lock.Unlock()

	m.persist()
	m.notify()
}

// reset tears the session down to unauthenticated, in memory and on disk.
func (m *Manager) reset() {
	m.lock.Lock()
	m.generation++
	m.current = Session{Status: StatusUnauthenticated}
	m.lock.Unlock()

	if err := m.creds.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear credential store")
	}
	m.notify()
}

// resetIf tears the session down only if the auth epoch hasn't moved since
// gen. It returns false when a newer session exists and nothing was done.
func (m *Manager) resetIf(gen uint64) bool {
	m.lock.Lock()
	if m.generation != gen {
		m.lock.Unlock()
		return false
	}
	m.generation++
	m.current = Session{Status: StatusUnauthenticated}
	m.lock.Unlock()

	if err := m.creds.Clear(); err != nil {
		log.Err(err).Msg("Failed to clear credential store")
	}
	m.notify()
	return true
}

// persist mirrors the token pair and active tenant id into the credential
// store. The pair is always written in one update.
func (m *Manager) persist() {
	m.lock.RLock()
	creds := credentials.Credentials{
		AccessToken:    m.current.AccessToken,
		RefreshToken:   m.current.RefreshToken,
		ActiveTenantID: m.current.ActiveTenantID(),
	}
	m.lock.RUnlock()

	if err := m.creds.Save(creds); err != nil {
		log.Err(err).Msg("Failed to persist credentials")
	}
}

func (m *Manager) notify() {
	snapshot := m.Session()

	m.obsLock.Lock()
	observers := make([]func(Session), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.obsLock.Unlock()

	for _, fn := range observers {
		fn(snapshot)
	}
}

// selectActive re-selects the previously active tenant if still a member,
// else the first membership, else nil.
func selectActive(memberships []tenants.Tenant, savedID string) *tenants.Tenant {
	if len(memberships) == 0 {
		return nil
	}
	if saved, ok := tenants.Find(memberships, savedID); ok {
		return &saved
	}
	first := memberships[0]
	return &first
}
