package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/expensahq/expensa-go/identity"
	apperrors "github.com/expensahq/expensa-go/internal/errors"
	"github.com/expensahq/expensa-go/token"
)

const refreshFlightKey = "refresh"

// Refresh obtains a fresh access token from the identity service. Renewal is
// single-flight: concurrent callers attach to the one outstanding exchange
// and all receive its token or its error. Once a flight has settled, a later
// call starts a new one.
//
// A missing or expired refresh token fails with ErrSessionExpired before any
// renewal call is made. Every failure path tears the session down; a manual
// login is required afterwards.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	result, err, shared := m.flights.Do(refreshFlightKey, func() (any, error) {
		return m.renew(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		log.Debug().Msg("Joined in-flight token renewal")
	}
	return result.(string), nil
}

func (m *Manager) renew(ctx context.Context) (string, error) {
	m.lock.Lock()
	gen := m.generation
	refreshToken := m.current.RefreshToken
	if refreshToken == "" || token.IsExpired(refreshToken) {
		m.lock.Unlock()
		m.teardown(ctx, gen)
		return "", apperrors.ErrSessionExpired
	}
	transitioned := false
	if m.current.Status == StatusAuthenticated {
		m.current.Status = StatusRefreshing
		transitioned = true
	}
	m.lock.Unlock()
	if transitioned {
		m.notify()
	}

	pair, err := m.idp.Refresh(ctx, refreshToken)
	if err != nil {
		log.Debug().Err(err).Msg("Token renewal failed")
		m.teardown(ctx, gen)
		return "", err
	}

	if !m.applyRenewal(gen, pair) {
		// The session was torn down or replaced while the flight was
		// outstanding; its result must not resurrect the old epoch.
		return "", apperrors.ErrSessionExpired
	}
	return pair.AccessToken, nil
}

// applyRenewal writes the renewed pair into the session, provided the auth
// epoch still matches the one the flight started against. The stored refresh
// token is overwritten only when the service rotated it.
func (m *Manager) applyRenewal(gen uint64, pair *identity.TokenPair) bool {
	m.lock.Lock()
	if m.generation != gen {
		m.lock.Unlock()
		return false
	}
	m.current.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		m.current.RefreshToken = pair.RefreshToken
	}
	if m.current.Status == StatusRefreshing {
		m.current.Status = StatusAuthenticated
	}
	m.lock.Unlock()

	m.persist()
	m.notify()
	return true
}

// teardown is the irrecoverable-failure exit: best-effort remote notify,
// then a full local teardown, skipped entirely if the epoch has already
// moved on.
func (m *Manager) teardown(ctx context.Context, gen uint64) {
	m.lock.RLock()
	current := m.generation == gen
	accessToken := m.current.AccessToken
	m.lock.RUnlock()
	if !current {
		return
	}

	if accessToken != "" {
		if err := m.idp.Logout(ctx, accessToken); err != nil {
			log.Debug().Err(err).Msg("Logout notification failed")
		}
	}
	m.resetIf(gen)
}
