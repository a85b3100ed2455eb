package storefakes

import (
	"sync"

	"github.com/expensahq/expensa-go/credentials"
)

var _ credentials.Store = (*FakeStore)(nil)

// FakeStore is an in-memory credentials.Store for tests.
type FakeStore struct {
	lock  sync.RWMutex
	creds credentials.Credentials
	saved bool

	LoadErr  error
	SaveErr  error
	ClearErr error

	SaveCalls  int
	ClearCalls int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (fs *FakeStore) Load() (credentials.Credentials, error) {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	if fs.LoadErr != nil {
		return credentials.Credentials{}, fs.LoadErr
	}
	return fs.creds, nil
}

func (fs *FakeStore) Save(creds credentials.Credentials) error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.SaveCalls++
	if fs.SaveErr != nil {
		return fs.SaveErr
	}
	fs.creds = creds
	fs.saved = true
	return nil
}

func (fs *FakeStore) Clear() error {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.ClearCalls++
	if fs.ClearErr != nil {
		return fs.ClearErr
	}
	fs.creds = credentials.Credentials{}
	fs.saved = false
	return nil
}

// Seed places credentials in the store without counting as a Save call.
func (fs *FakeStore) Seed(creds credentials.Credentials) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.creds = creds
	fs.saved = true
}

// Stored returns the currently held credentials.
func (fs *FakeStore) Stored() credentials.Credentials {
	fs.lock.RLock()
	defer fs.lock.RUnlock()
	return fs.creds
}
