package ffi

import (
	"context"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/airbitz-style/walletcore/internal/accountstore"
	"github.com/airbitz-style/walletcore/internal/broadcast"
	"github.com/airbitz-style/walletcore/internal/feeinfo"
	"github.com/airbitz-style/walletcore/internal/sendpipeline"
	"github.com/airbitz-style/walletcore/internal/walleterr"
	"github.com/airbitz-style/walletcore/internal/watcher"
	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	store := accountstore.New(t.TempDir(), nil)
	fees := feeinfo.New(t.TempDir()+"/fees.json", 0, func(ctx context.Context) (coretypes.FeeInfo, error) {
		return coretypes.FeeInfo{}, nil
	})
	pipeline := sendpipeline.New(fees, broadcast.NewDispatcher(), nil, &chaincfg.MainNetParams)
	return New(store, pipeline, fees, &chaincfg.MainNetParams)
}

func TestAccountCreateSignInGetKey(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()

	if code := c.AccountCreate(ctx, "alice", "correct horse", "1234", "pet?", "fido"); code != walleterr.CodeOk {
		t.Fatalf("AccountCreate: got code %v", code)
	}
	if code := c.AccountCreate(ctx, "alice", "pw2", "5678", "q", "a"); code != walleterr.CodeAccountAlreadyExists {
		t.Fatalf("expected CodeAccountAlreadyExists on duplicate create, got %v", code)
	}

	c.AccountClearCache()

	if code := c.AccountSignIn(ctx, "alice", "wrong password"); code != walleterr.CodeBadPassword {
		t.Fatalf("expected CodeBadPassword, got %v", code)
	}
	if code := c.AccountSignIn(ctx, "alice", "correct horse"); code != walleterr.CodeOk {
		t.Fatalf("AccountSignIn: got code %v", code)
	}

	pin, code := c.AccountGetKey(ctx, "alice", "correct horse", "PIN")
	if code != walleterr.CodeOk {
		t.Fatalf("AccountGetKey: got code %v", code)
	}
	if string(pin) != "1234" {
		t.Fatalf("expected PIN 1234, got %q", pin)
	}
}

func TestAccountSignInUnknownUser(t *testing.T) {
	c := newTestCore(t)
	code := c.AccountSignIn(context.Background(), "nobody", "whatever")
	if code != walleterr.CodeAccountDoesNotExist {
		t.Fatalf("expected CodeAccountDoesNotExist, got %v", code)
	}
}

func TestAccountHandleForResolvesNum(t *testing.T) {
	c := newTestCore(t)
	ctx := context.Background()
	if code := c.AccountCreate(ctx, "bob", "pw", "1111", "q", "a"); code != walleterr.CodeOk {
		t.Fatalf("AccountCreate: got code %v", code)
	}
	h, code := c.AccountHandleFor("bob")
	if code != walleterr.CodeOk {
		t.Fatalf("AccountHandleFor: got code %v", code)
	}
	if h.Username != "bob" || h.Num != 0 {
		t.Fatalf("unexpected handle: %+v", h)
	}
	key, err := h.GetKey(ctx, "pw", "PIN")
	if err != nil {
		t.Fatalf("AccountHandle.GetKey: %v", err)
	}
	if string(key) != "1111" {
		t.Fatalf("expected PIN 1111, got %q", key)
	}
}

func TestAccountHandleForUnknownUser(t *testing.T) {
	c := newTestCore(t)
	if _, code := c.AccountHandleFor("ghost"); code != walleterr.CodeAccountDoesNotExist {
		t.Fatalf("expected CodeAccountDoesNotExist, got %v", code)
	}
}

func TestSpendSendWithoutRegisteredWatcherFails(t *testing.T) {
	c := newTestCore(t)
	_, code := c.SpendSend(context.Background(), coretypes.SendInfo{WalletID: "w1"}, nil)
	if code != walleterr.CodeError {
		t.Fatalf("expected CodeError for unregistered watcher, got %v", code)
	}
}

func TestRegisterUnregisterWatcher(t *testing.T) {
	c := newTestCore(t)
	m := watcher.NewMemory(nil, nil)
	c.RegisterWatcher("w1", m)
	if _, ok := c.watcherFor("w1"); !ok {
		t.Fatalf("expected watcher registered")
	}
	c.UnregisterWatcher("w1")
	if _, ok := c.watcherFor("w1"); ok {
		t.Fatalf("expected watcher unregistered")
	}
}
