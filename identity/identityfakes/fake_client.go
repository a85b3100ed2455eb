package identityfakes

import (
	"context"
	"sync"

	"github.com/expensahq/expensa-go/identity"
	"github.com/expensahq/expensa-go/tenants"
)

var _ identity.Client = (*FakeClient)(nil)

// FakeClient is an in-memory identity.Client for tests. Set the result
// fields before use; call counters are safe for concurrent access.
type FakeClient struct {
	lock sync.Mutex

	LoginResult    *identity.LoginResult
	LoginErr       error
	RegisterResult *identity.LoginResult
	RegisterErr    error
	RefreshPair    *identity.TokenPair
	RefreshErr     error
	LogoutErr      error
	TenantList     []tenants.Tenant
	TenantsErr     error
	ProfileErr     error
	PasswordErr    error

	// RefreshBarrier, when non-nil, blocks Refresh until the channel is
	// closed. Used to hold a renewal in flight.
	RefreshBarrier chan struct{}

	LoginCalls    int
	RegisterCalls int
	RefreshCalls  int
	LogoutCalls   int
	TenantsCalls  int
	ProfileCalls  int
	PasswordCalls int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (fc *FakeClient) Login(_ context.Context, _, _ string) (*identity.LoginResult, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.LoginCalls++
	if fc.LoginErr != nil {
		return nil, fc.LoginErr
	}
	return fc.LoginResult, nil
}

func (fc *FakeClient) Register(_ context.Context, _ identity.Registration) (*identity.LoginResult, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.RegisterCalls++
	if fc.RegisterErr != nil {
		return nil, fc.RegisterErr
	}
	return fc.RegisterResult, nil
}

func (fc *FakeClient) Refresh(_ context.Context, _ string) (*identity.TokenPair, error) {
	fc.lock.Lock()
	fc.RefreshCalls++
	barrier := fc.RefreshBarrier
	pair, err := fc.RefreshPair, fc.RefreshErr
	fc.lock.Unlock()

	if barrier != nil {
		<-barrier
		fc.lock.Lock()
		pair, err = fc.RefreshPair, fc.RefreshErr
		fc.lock.Unlock()
	}
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (fc *FakeClient) Logout(_ context.Context, _ string) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.LogoutCalls++
	return fc.LogoutErr
}

func (fc *FakeClient) Tenants(_ context.Context, _ string) ([]tenants.Tenant, error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.TenantsCalls++
	if fc.TenantsErr != nil {
		return nil, fc.TenantsErr
	}
	return fc.TenantList, nil
}

func (fc *FakeClient) UpdateProfile(_ context.Context, _, _, _ string) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.ProfileCalls++
	return fc.ProfileErr
}

func (fc *FakeClient) ChangePassword(_ context.Context, _, _, _ string) error {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.PasswordCalls++
	return fc.PasswordErr
}

// SetRefreshPair swaps the refresh result while a test is running.
func (fc *FakeClient) SetRefreshPair(pair *identity.TokenPair, err error) {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	fc.RefreshPair = pair
	fc.RefreshErr = err
}

// Calls returns the refresh call count.
func (fc *FakeClient) Calls() int {
	fc.lock.Lock()
	defer fc.lock.Unlock()
	return fc.RefreshCalls
}
