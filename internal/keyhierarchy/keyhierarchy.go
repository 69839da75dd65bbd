// Package keyhierarchy implements the pure, stateless derivation from
// (username, password, recoveryAnswers, SNRP set) to the derived-key set
// (spec.md §3.1/§4.1). Nothing here touches disk or the network; every
// function is deterministic given its inputs.
package keyhierarchy

import (
	"fmt"

	"github.com/airbitz-style/walletcore/internal/cryptofacade"
)

// KeySet holds every key in the hierarchy for one account. The "1"-suffixed
// fields are transmitted to the server as authenticators; the "2"-suffixed
// fields never leave the device in plaintext (spec.md §3.1).
type KeySet struct {
	L  []byte
	P  []byte
	RA []byte

	L1   []byte
	P1   []byte
	LRA1 []byte

	LP2  []byte
	LRA2 []byte
	L2   []byte

	SNRP2 SNRP
	SNRP3 SNRP
	SNRP4 SNRP
}

// Zero wipes every key buffer in the set, matching the release discipline
// spec.md §5 requires of all key material.
func (k *KeySet) Zero() {
	for _, buf := range [][]byte{k.L, k.P, k.RA, k.L1, k.P1, k.LRA1, k.LP2, k.LRA2, k.L2} {
		cryptofacade.Zero(buf)
	}
}

// DeriveInitial generates fresh client-class SNRP2/3/4 and derives the full
// KeySet for a brand-new account (spec.md §4.1).
func DeriveInitial(username, password, recoveryAnswers string) (KeySet, error) {
	snrp2, err := newClientSNRP()
	if err != nil {
		return KeySet{}, fmt.Errorf("generate SNRP2: %w", err)
	}
	snrp3, err := newClientSNRP()
	if err != nil {
		return KeySet{}, fmt.Errorf("generate SNRP3: %w", err)
	}
	snrp4, err := newClientSNRP()
	if err != nil {
		return KeySet{}, fmt.Errorf("generate SNRP4: %w", err)
	}
	return derive(username, password, recoveryAnswers, snrp2, snrp3, snrp4)
}

// DeriveFromSNRPs re-derives the KeySet for login, given the client-class
// SNRPs already on file in the account's CarePackage (spec.md §4.1). No
// recovery answers are supplied, so the returned RA, LRA1 and LRA2 are
// derived from empty answers and are not the account's own.
func DeriveFromSNRPs(username, password string, snrp2, snrp3, snrp4 SNRP) (KeySet, error) {
	return derive(username, password, "", snrp2, snrp3, snrp4)
}

// DeriveForPasswordChange re-derives only the password-dependent keys
// (L1, P1, LP2) for username under a new password and snrp2. It does NOT
// touch LRA1, LRA2, or L2, which depend on the recovery answers, not the
// password, and must carry over unchanged from the account's existing
// KeySet (spec.md §4.3 change_password: only LP2 and anything encrypted
// under it may be rotated; LRA2 itself never changes on a password-only
// update).
func DeriveForPasswordChange(username, newPassword string, snrp2 SNRP) (KeySet, error) {
	l := []byte(username)
	p := []byte(newPassword)
	lp := append(append([]byte{}, l...), p...)

	l1, err := cryptofacade.Scrypt(l, SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive L1: %w", err)
	}
	p1, err := cryptofacade.Scrypt(p, SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive P1: %w", err)
	}
	lp2, err := cryptofacade.Scrypt(lp, snrp2.Salt, snrp2.N, snrp2.R, snrp2.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive LP2: %w", err)
	}

	return KeySet{
		L: l, P: p,
		L1: l1, P1: p1,
		LP2:   lp2,
		SNRP2: snrp2,
	}, nil
}

// DeriveFromAnswers re-derives the recovery-path keys (L2, LRA2) from just
// username and recovery answers, used during account recovery (spec.md
// §4.1). The returned KeySet's P/P1/LP2 fields are left zero-valued since no
// password was supplied; callers recover LP2 separately via the
// CarePackage/ELP2 chain.
func DeriveFromAnswers(username, recoveryAnswers string, snrp3, snrp4 SNRP) (KeySet, error) {
	l := []byte(username)
	ra := []byte(recoveryAnswers)

	l1, err := cryptofacade.Scrypt(l, SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive L1: %w", err)
	}
	lra1, err := cryptofacade.Scrypt(append(append([]byte{}, l...), ra...), SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive LRA1: %w", err)
	}
	lra2, err := cryptofacade.Scrypt(append(append([]byte{}, l...), ra...), snrp3.Salt, snrp3.N, snrp3.R, snrp3.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive LRA2: %w", err)
	}
	l2, err := cryptofacade.Scrypt(l, snrp4.Salt, snrp4.N, snrp4.R, snrp4.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive L2: %w", err)
	}

	return KeySet{
		L: l, RA: ra,
		L1: l1, LRA1: lra1,
		LRA2: lra2, L2: l2,
		SNRP3: snrp3, SNRP4: snrp4,
	}, nil
}

func derive(username, password, recoveryAnswers string, snrp2, snrp3, snrp4 SNRP) (KeySet, error) {
	l := []byte(username)
	p := []byte(password)
	ra := []byte(recoveryAnswers)
	lp := append(append([]byte{}, l...), p...)
	lra := append(append([]byte{}, l...), ra...)

	l1, err := cryptofacade.Scrypt(l, SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive L1: %w", err)
	}
	p1, err := cryptofacade.Scrypt(p, SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive P1: %w", err)
	}
	lra1, err := cryptofacade.Scrypt(lra, SNRP1.Salt, SNRP1.N, SNRP1.R, SNRP1.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive LRA1: %w", err)
	}
	lp2, err := cryptofacade.Scrypt(lp, snrp2.Salt, snrp2.N, snrp2.R, snrp2.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive LP2: %w", err)
	}
	lra2, err := cryptofacade.Scrypt(lra, snrp3.Salt, snrp3.N, snrp3.R, snrp3.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive LRA2: %w", err)
	}
	l2, err := cryptofacade.Scrypt(l, snrp4.Salt, snrp4.N, snrp4.R, snrp4.P)
	if err != nil {
		return KeySet{}, fmt.Errorf("derive L2: %w", err)
	}

	return KeySet{
		L: l, P: p, RA: ra,
		L1: l1, P1: p1, LRA1: lra1,
		LP2: lp2, LRA2: lra2, L2: l2,
		SNRP2: snrp2, SNRP3: snrp3, SNRP4: snrp4,
	}, nil
}
