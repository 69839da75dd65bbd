package accountstore

import (
	"context"

	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// AccountHandle is an opaque reference to one signed-in account: the
// username plus its local directory number, resolved from a Store. It
// replaces the lifetime relation original_source's abcd/login/Login.hpp
// models as a `Login` holding a raw back-pointer to its owning `LoginStore`
// — spec.md §9 calls that out as a cyclic-ownership smell to redesign as
// "an index or handle". Callers outside accountstore (internal/sendpipeline,
// internal/ffi) hold a Handle instead of a *Store plus a username string
// pair, and go back through the Store for every operation.
type AccountHandle struct {
	store    *Store
	Username string
	Num      int
}

// Handle resolves username to its local account number and returns a
// Handle for it. The account need not be cached or signed in yet.
func (s *Store) Handle(username string) (AccountHandle, error) {
	num, err := s.NumForUser(username)
	if err != nil {
		return AccountHandle{}, err
	}
	if num < 0 {
		return AccountHandle{}, walleterr.New(walleterr.KindAccountDoesNotExist, "no local account for username")
	}
	return AccountHandle{store: s, Username: username, Num: num}, nil
}

// GetKey fetches a key through the handle's owning Store (spec.md §4.3
// get_key).
func (h AccountHandle) GetKey(ctx context.Context, password, keyID string) ([]byte, error) {
	return h.store.GetKey(ctx, h.Username, password, keyID)
}
