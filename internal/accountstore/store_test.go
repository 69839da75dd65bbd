package accountstore

import (
	"context"
	"testing"

	"github.com/airbitz-style/walletcore/internal/walleterr"
)

type fakeServer struct {
	createCalls         int
	passwordChangeCalls int
	recoverySetCalls    int
}

func (f *fakeServer) NotifyCreate(ctx context.Context, l1, p1, lra1, carePackage []byte) error {
	f.createCalls++
	return nil
}

func (f *fakeServer) NotifyPasswordChange(ctx context.Context, l1, newP1 []byte) error {
	f.passwordChangeCalls++
	return nil
}

func (f *fakeServer) NotifyRecoverySet(ctx context.Context, l1, newLRA1 []byte) error {
	f.recoverySetCalls++
	return nil
}

func TestCreateThenSignIn(t *testing.T) {
	dir := t.TempDir()
	server := &fakeServer{}
	store := New(dir, server)
	ctx := context.Background()

	if err := store.Create(ctx, "alice", "correct horse", "1234", "first pet?", "fido"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if server.createCalls != 1 {
		t.Fatalf("expected one create notification, got %d", server.createCalls)
	}

	store.ClearCache()

	if err := store.SignIn(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
}

func TestCreateDuplicateUsernameFails(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()

	if err := store.Create(ctx, "alice", "pw1", "1234", "q", "a"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := store.Create(ctx, "alice", "pw2", "5678", "q2", "a2")
	if err == nil {
		t.Fatalf("expected AccountAlreadyExists")
	}
	if walleterr.KindOf(err) != walleterr.KindAccountAlreadyExists {
		t.Fatalf("expected KindAccountAlreadyExists, got %v", walleterr.KindOf(err))
	}
}

func TestSignInUnknownAccount(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	err := store.SignIn(context.Background(), "nobody", "pw")
	if walleterr.KindOf(err) != walleterr.KindAccountDoesNotExist {
		t.Fatalf("expected KindAccountDoesNotExist, got %v", walleterr.KindOf(err))
	}
}

func TestSignInWrongPasswordFromDisk(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "correct horse", "1234", "q", "a"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.ClearCache()

	err := store.SignIn(ctx, "alice", "wrong password")
	if walleterr.KindOf(err) != walleterr.KindBadPassword {
		t.Fatalf("expected KindBadPassword, got %v", walleterr.KindOf(err))
	}
}

func TestSignInWrongPasswordFromCache(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "correct horse", "1234", "q", "a"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	err := store.SignIn(ctx, "alice", "wrong password")
	if walleterr.KindOf(err) != walleterr.KindBadPassword {
		t.Fatalf("expected KindBadPassword from the cache fast path, got %v", walleterr.KindOf(err))
	}
}

func TestGetKeyLazyDerivesL2(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "correct horse", "1234", "q", "a"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	store.ClearCache()

	key, err := store.GetKey(ctx, "alice", "correct horse", "L2")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if len(key) == 0 {
		t.Fatalf("expected non-empty L2")
	}
}

func TestChangePasswordRotatesEPINButKeepsELP2Decryptable(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "old password", "1234", "q", "a"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.ChangePassword(ctx, "alice", "old password", "new password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	store.ClearCache()

	if err := store.SignIn(ctx, "alice", "new password"); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
	store.ClearCache()

	if err := store.SignIn(ctx, "alice", "old password"); walleterr.KindOf(err) != walleterr.KindBadPassword {
		t.Fatalf("expected old password to be rejected after change, got %v", err)
	}
}

func TestChangePasswordThenRecoverLoginWithOriginalAnswers(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "old password", "1234", "q", "fido"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.ChangePassword(ctx, "alice", "old password", "new password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	store.ClearCache()

	if err := store.RecoverLogin(ctx, "alice", "fido"); err != nil {
		t.Fatalf("RecoverLogin with original answers after password change: %v", err)
	}

	e, ok := store.cache.get("alice")
	if !ok {
		t.Fatalf("no credential cache entry after RecoverLogin")
	}
	lp2AfterRecovery := append([]byte(nil), e.keys.LP2...)
	store.ClearCache()
	if err := store.SignIn(ctx, "alice", "new password"); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
	lp2AfterSignIn, err := store.GetKey(ctx, "alice", "new password", "LP2")
	if err != nil {
		t.Fatalf("GetKey LP2 after sign-in: %v", err)
	}
	if string(lp2AfterRecovery) != string(lp2AfterSignIn) {
		t.Fatalf("LP2 recovered via answers does not match LP2 from a normal sign-in after password change")
	}
}

func TestSetRecoveryThenRecoverLogin(t *testing.T) {
	dir := t.TempDir()
	server := &fakeServer{}
	store := New(dir, server)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "correct horse", "1234", "first pet?", "fido"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.SetRecovery(ctx, "alice", "correct horse", "new question?", "new answer"); err != nil {
		t.Fatalf("SetRecovery: %v", err)
	}
	if server.recoverySetCalls != 1 {
		t.Fatalf("expected one recovery-set notification, got %d", server.recoverySetCalls)
	}
	store.ClearCache()

	if err := store.RecoverLogin(ctx, "alice", "new answer"); err != nil {
		t.Fatalf("RecoverLogin with new answer: %v", err)
	}
	store.ClearCache()

	if err := store.RecoverLogin(ctx, "alice", "fido"); err == nil {
		t.Fatalf("expected old recovery answer to be rejected after SetRecovery")
	}

	store.ClearCache()
	if err := store.SignIn(ctx, "alice", "correct horse"); err != nil {
		t.Fatalf("password sign-in should still work after SetRecovery: %v", err)
	}
}

func TestNumForUserAndUserForNum(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, nil)
	ctx := context.Background()
	if err := store.Create(ctx, "alice", "pw", "1234", "q", "a"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	n, err := store.NumForUser("alice")
	if err != nil {
		t.Fatalf("NumForUser: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected first account to take number 0, got %d", n)
	}

	name, err := store.UserForNum(0)
	if err != nil {
		t.Fatalf("UserForNum: %v", err)
	}
	if name != "alice" {
		t.Fatalf("expected alice, got %q", name)
	}

	if n, _ := store.NumForUser("nobody"); n != -1 {
		t.Fatalf("expected -1 for unknown user, got %d", n)
	}
}
