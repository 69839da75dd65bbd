// Package ffi is the single boundary where every internal operation
// collapses to the stable wire enum, walleterr.Code (spec.md §9: "keep
// the enum as the wire error code at the FFI boundary only"). Every other
// package in this module works with Go errors; nothing outside this
// package should ever need to switch on a Code.
//
// The function table mirrors the source's flat ABC_* C API: one function
// per operation, plain value arguments, a Code return. There is no
// callback/background-worker machinery here — spec.md §9's redesign
// direction replaces that with ordinary synchronous calls the caller
// schedules on its own goroutine if it wants async behavior.
package ffi

import (
	"context"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/airbitz-style/walletcore/internal/accountstore"
	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/feeinfo"
	"github.com/airbitz-style/walletcore/internal/sendpipeline"
	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/internal/watcher"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Core holds every live subsystem the function table dispatches into. One
// Core exists per running process, built by cmd/walletcore's wiring.
type Core struct {
	store    *accountstore.Store
	pipeline *sendpipeline.Pipeline
	fees     *feeinfo.Cache
	params   *chaincfg.Params
	log      *applog.Logger

	watchersMu sync.Mutex
	watchers   map[string]watcher.Watcher
}

// New builds a Core around already-constructed subsystems. Nothing here
// opens a socket or a file: that happens in cmd/walletcore before New is
// called.
func New(store *accountstore.Store, pipeline *sendpipeline.Pipeline, fees *feeinfo.Cache, params *chaincfg.Params) *Core {
	return &Core{
		store:    store,
		pipeline: pipeline,
		fees:     fees,
		params:   params,
		log:      applog.Component("FFI"),
		watchers: make(map[string]watcher.Watcher),
	}
}

// Initialize is a no-op readiness check standing in for the source's
// ABC_Initialize: it exists so callers across the FFI boundary have a
// single symbol to call before anything else, even though Go construction
// (New) already did the real work.
func (c *Core) Initialize(ctx context.Context) walleterr.Code {
	if c.store == nil {
		return walleterr.ToCode(walleterr.KindInternal)
	}
	return walleterr.CodeOk
}

// RegisterWatcher attaches the watcher that SpendSend/merchant-ack/
// recording steps use for walletID. Watchers are constructed and owned
// outside this module (spec.md §1: "addressed only via their interfaces");
// the FFI boundary is where a caller hands one in.
func (c *Core) RegisterWatcher(walletID string, w watcher.Watcher) {
	c.watchersMu.Lock()
	defer c.watchersMu.Unlock()
	c.watchers[walletID] = w
}

// UnregisterWatcher drops a previously registered watcher, e.g. on wallet
// close.
func (c *Core) UnregisterWatcher(walletID string) {
	c.watchersMu.Lock()
	defer c.watchersMu.Unlock()
	delete(c.watchers, walletID)
}

func (c *Core) watcherFor(walletID string) (watcher.Watcher, bool) {
	c.watchersMu.Lock()
	defer c.watchersMu.Unlock()
	w, ok := c.watchers[walletID]
	return w, ok
}

// AccountCreate wraps accountstore.Store.Create (spec.md §4.3 create).
func (c *Core) AccountCreate(ctx context.Context, username, password, pin, recoveryQuestions, recoveryAnswers string) walleterr.Code {
	err := c.store.Create(ctx, username, password, pin, recoveryQuestions, recoveryAnswers)
	return walleterr.CodeForError(err)
}

// AccountSignIn wraps accountstore.Store.SignIn (spec.md §4.3 sign_in).
func (c *Core) AccountSignIn(ctx context.Context, username, password string) walleterr.Code {
	return walleterr.CodeForError(c.store.SignIn(ctx, username, password))
}

// AccountRecoverLogin wraps accountstore.Store.RecoverLogin (spec.md §6
// "POST /account/recovery").
func (c *Core) AccountRecoverLogin(ctx context.Context, username, recoveryAnswers string) walleterr.Code {
	return walleterr.CodeForError(c.store.RecoverLogin(ctx, username, recoveryAnswers))
}

// AccountSetRecovery wraps accountstore.Store.SetRecovery, the corrected
// recovery-replacement operation spec.md §9 calls for (NOT the source's
// defective ABC_AccountSetRecovery body).
func (c *Core) AccountSetRecovery(ctx context.Context, username, password, recoveryQuestions, recoveryAnswers string) walleterr.Code {
	return walleterr.CodeForError(c.store.SetRecovery(ctx, username, password, recoveryQuestions, recoveryAnswers))
}

// AccountChangePassword wraps accountstore.Store.ChangePassword.
func (c *Core) AccountChangePassword(ctx context.Context, username, oldPassword, newPassword string) walleterr.Code {
	return walleterr.CodeForError(c.store.ChangePassword(ctx, username, oldPassword, newPassword))
}

// AccountGetKey wraps accountstore.Store.GetKey (spec.md §4.3 get_key).
// The key bytes themselves cross the boundary as a return value, never
// logged and never retained by this package.
func (c *Core) AccountGetKey(ctx context.Context, username, password, keyID string) ([]byte, walleterr.Code) {
	key, err := c.store.GetKey(ctx, username, password, keyID)
	return key, walleterr.CodeForError(err)
}

// AccountClearCache wraps accountstore.Store.ClearCache (spec.md §4.3
// clear_cache; never fails).
func (c *Core) AccountClearCache() {
	c.store.ClearCache()
}

// AccountUserForNum wraps accountstore.Store.UserForNum (spec.md §4.3
// user_for_num).
func (c *Core) AccountUserForNum(n int) (string, walleterr.Code) {
	username, err := c.store.UserForNum(n)
	return username, walleterr.CodeForError(err)
}

// AccountNumForUser wraps accountstore.Store.NumForUser (spec.md §4.3
// num_for_user).
func (c *Core) AccountNumForUser(username string) (int, walleterr.Code) {
	num, err := c.store.NumForUser(username)
	return num, walleterr.CodeForError(err)
}

// AccountHandleFor resolves an accountstore.AccountHandle for an already
// locally-known username (SPEC_FULL.md §11's supplement for
// abcd/login/Login.hpp's Login->LoginStore back-reference).
func (c *Core) AccountHandleFor(username string) (accountstore.AccountHandle, walleterr.Code) {
	h, err := c.store.Handle(username)
	return h, walleterr.CodeForError(err)
}

// FeeInfoGet wraps feeinfo.Cache.Get (spec.md §4.4).
func (c *Core) FeeInfoGet(ctx context.Context) coretypes.FeeInfo {
	return c.fees.Get(ctx)
}

// FeeInfoForceRefresh wraps feeinfo.Cache.ForceRefresh (SPEC_FULL.md §11's
// abcd/General.hpp manual-refresh supplement).
func (c *Core) FeeInfoForceRefresh(ctx context.Context) walleterr.Code {
	return walleterr.CodeForError(c.fees.ForceRefresh(ctx))
}

// SpendSend runs info.WalletID's send through the pipeline end to end
// (spec.md §4.6). cancel may be nil. The Result's non-FFI detail (tx
// bytes, fee, record) is returned alongside the Code for callers that
// need it; the Code alone is what a pure C-style caller would check.
func (c *Core) SpendSend(ctx context.Context, info coretypes.SendInfo, cancel *sendpipeline.CancelToken) (sendpipeline.Result, walleterr.Code) {
	w, ok := c.watcherFor(info.WalletID)
	if !ok {
		return sendpipeline.Result{}, walleterr.ToCode(walleterr.KindInternal)
	}
	result, err := c.pipeline.Send(ctx, w, info, cancel)
	return result, walleterr.CodeForError(err)
}
