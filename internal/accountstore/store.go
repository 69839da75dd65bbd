// Package accountstore implements the local filesystem account layout,
// the process-wide credential cache, and the account lifecycle operations
// (create, sign in, recovery, password change) of spec.md §4.3.
package accountstore

import (
	"context"
	"os"

	"github.com/airbitz-style/walletcore/internal/applog"
	"github.com/airbitz-style/walletcore/internal/carepackage"
	"github.com/airbitz-style/walletcore/internal/cryptofacade"
	"github.com/airbitz-style/walletcore/internal/keyhierarchy"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// ServerNotifier is the subset of the credential server's API the account
// store calls into. It is satisfied by internal/accountserver.Client; the
// store depends only on this interface so it can be tested without a live
// server (spec.md §6).
type ServerNotifier interface {
	NotifyCreate(ctx context.Context, l1, p1, lra1, carePackage []byte) error
	NotifyPasswordChange(ctx context.Context, l1, newP1 []byte) error
	NotifyRecoverySet(ctx context.Context, l1, newLRA1 []byte) error
}

// Store is the account-lifecycle surface described by spec.md §4.3. It is
// safe for concurrent use across different accounts; operations against
// the same account are serialized by the caller's core lock (see
// internal/sendpipeline for that discipline) and the credential cache's
// own short critical sections.
type Store struct {
	dataDir string
	server  ServerNotifier
	cache   *credCache
	log     *applog.Logger
}

// New constructs a Store rooted at dataDir. server may be nil, in which
// case server notification steps are skipped entirely (useful for
// recovery-only or offline test setups).
func New(dataDir string, server ServerNotifier) *Store {
	return &Store{
		dataDir: dataDir,
		server:  server,
		cache:   newCredCache(),
		log:     applog.Component("AccountStore"),
	}
}

// Create provisions a brand-new account on disk and best-effort notifies
// the credential server (spec.md §4.3 create).
func (s *Store) Create(ctx context.Context, username, password, pin, recoveryQuestions, recoveryAnswers string) error {
	if username == "" || password == "" || pin == "" || recoveryQuestions == "" || recoveryAnswers == "" {
		return walleterr.New(walleterr.KindInternal, "create requires all fields non-empty")
	}

	if n, err := findUserDir(s.dataDir, username); err != nil {
		return err
	} else if n >= 0 {
		return walleterr.New(walleterr.KindAccountAlreadyExists, "account already exists: "+username)
	}

	num, err := firstFreeAccountNum(s.dataDir)
	if err != nil {
		return err
	}

	keys, err := keyhierarchy.DeriveInitial(username, password, recoveryAnswers)
	if err != nil {
		return walleterr.Wrap(walleterr.KindInternal, "derive key hierarchy", err)
	}

	erq, err := cryptofacade.EncryptAES256([]byte(recoveryQuestions), keys.L2)
	if err != nil {
		keys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "encrypt ERQ", err)
	}
	carePkg, err := carepackage.Encode(erq, keys.SNRP2, keys.SNRP3, keys.SNRP4)
	if err != nil {
		keys.Zero()
		return err
	}

	epinPlain, err := encodePIN(pin)
	if err != nil {
		keys.Zero()
		return err
	}
	epin, err := cryptofacade.EncryptAES256(epinPlain, keys.LP2)
	if err != nil {
		keys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "encrypt EPIN", err)
	}

	elp2, err := cryptofacade.EncryptAES256(keys.LP2, keys.LRA2)
	if err != nil {
		keys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "encrypt ELP2", err)
	}
	elra2, err := cryptofacade.EncryptAES256(keys.LRA2, keys.LP2)
	if err != nil {
		keys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "encrypt ELRA2", err)
	}

	userNameDoc, err := encodeUserName(username)
	if err != nil {
		keys.Zero()
		return err
	}

	dir := accountDir(s.dataDir, num)
	if err := s.writeAccountFiles(dir, userNameDoc, carePkg, epin, elp2, elra2); err != nil {
		keys.Zero()
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			s.log.Warnf("cleanup of partially written %s failed: %v", dir, rmErr)
		}
		return err
	}

	if s.server != nil {
		if err := s.server.NotifyCreate(ctx, keys.L1, keys.P1, keys.LRA1, carePkg); err != nil {
			// Best-effort per spec.md §7: the account exists locally even
			// if the server is unreachable right now.
			s.log.Warnf("server create notification failed for %s: %v", username, err)
		}
	}

	s.cache.put(username, newCredEntry(keys, password, pin))
	return nil
}

func (s *Store) writeAccountFiles(dir string, userNameDoc, carePkg, epin, elp2, elra2 []byte) error {
	if err := writeFilePretty(userNameFile(dir), userNameDoc); err != nil {
		return err
	}
	if err := writeFilePretty(carePackageFile(dir), carePkg); err != nil {
		return err
	}
	if err := writeFilePretty(epinFile(dir), epin); err != nil {
		return err
	}
	if err := writeFilePretty(elp2File(dir), elp2); err != nil {
		return err
	}
	if err := writeFilePretty(elra2File(dir), elra2); err != nil {
		return err
	}
	if err := writeFilePretty(walletsFile(dir), emptyListJSON); err != nil {
		return err
	}
	if err := writeFilePretty(categoriesFile(dir), emptyListJSON); err != nil {
		return err
	}
	return nil
}

// SignIn decrypts EPIN under the derived LP2 and populates the credential
// cache (spec.md §4.3 sign_in). If username is already cached, the
// supplied password is compared against the cached one without touching
// disk, per the credential-cache contract.
func (s *Store) SignIn(ctx context.Context, username, password string) error {
	if e, ok := s.cache.get(username); ok && e.password != "" {
		if e.password != password {
			return walleterr.New(walleterr.KindBadPassword, "password does not match cached credentials")
		}
		return nil
	}

	num, err := findUserDir(s.dataDir, username)
	if err != nil {
		return err
	}
	if num < 0 {
		return walleterr.New(walleterr.KindAccountDoesNotExist, "account does not exist: "+username)
	}
	dir := accountDir(s.dataDir, num)

	carePkgData, err := readFileOrCorrupt(carePackageFile(dir))
	if err != nil {
		return err
	}
	_, snrp2, snrp3, snrp4, err := carepackage.Decode(carePkgData)
	if err != nil {
		return err
	}

	keys, err := keyhierarchy.DeriveFromSNRPs(username, password, snrp2, snrp3, snrp4)
	if err != nil {
		return walleterr.Wrap(walleterr.KindInternal, "derive key hierarchy", err)
	}

	epinData, err := readFileOrCorrupt(epinFile(dir))
	if err != nil {
		keys.Zero()
		return err
	}
	plain, err := cryptofacade.DecryptAES256(epinData, keys.LP2)
	if err != nil {
		keys.Zero()
		return walleterr.Wrap(walleterr.KindBadPassword, "EPIN decryption failed", err)
	}
	pin, err := decodePIN(plain)
	if err != nil {
		keys.Zero()
		return err
	}

	s.cache.put(username, newCredEntry(keys, password, pin))
	return nil
}

// RecoverLogin signs an account in using recovery answers instead of a
// password: it derives LRA2 from the answers, decrypts ELP2 to recover
// LP2, then proceeds exactly as SignIn does from that point (spec.md §6
// "POST /account/recovery"). The caller still needs the real password to
// call ChangePassword or SetRecovery afterward; this operation only
// restores read access to EPIN and LP2-derived data.
func (s *Store) RecoverLogin(ctx context.Context, username, recoveryAnswers string) error {
	num, err := findUserDir(s.dataDir, username)
	if err != nil {
		return err
	}
	if num < 0 {
		return walleterr.New(walleterr.KindAccountDoesNotExist, "account does not exist: "+username)
	}
	dir := accountDir(s.dataDir, num)

	carePkgData, err := readFileOrCorrupt(carePackageFile(dir))
	if err != nil {
		return err
	}
	_, snrp2, snrp3, snrp4, err := carepackage.Decode(carePkgData)
	if err != nil {
		return err
	}

	partial, err := keyhierarchy.DeriveFromAnswers(username, recoveryAnswers, snrp3, snrp4)
	if err != nil {
		return walleterr.Wrap(walleterr.KindInternal, "derive recovery keys", err)
	}

	elp2Data, err := readFileOrCorrupt(elp2File(dir))
	if err != nil {
		partial.Zero()
		return err
	}
	lp2, err := cryptofacade.DecryptAES256(elp2Data, partial.LRA2)
	if err != nil {
		partial.Zero()
		return walleterr.Wrap(walleterr.KindBadPassword, "ELP2 decryption failed: wrong recovery answers", err)
	}

	epinData, err := readFileOrCorrupt(epinFile(dir))
	if err != nil {
		partial.Zero()
		cryptofacade.Zero(lp2)
		return err
	}
	plain, err := cryptofacade.DecryptAES256(epinData, lp2)
	if err != nil {
		partial.Zero()
		cryptofacade.Zero(lp2)
		return walleterr.Wrap(walleterr.KindCorrupt, "EPIN decryption failed after recovery", err)
	}
	pin, err := decodePIN(plain)
	if err != nil {
		partial.Zero()
		cryptofacade.Zero(lp2)
		return err
	}

	keys := partial
	keys.LP2 = lp2
	keys.SNRP2 = snrp2

	s.cache.put(username, newCredEntry(keys, "", pin))
	return nil
}

// GetKey returns one derived key buffer for a signed-in account, signing
// it in first if it is not already cached (spec.md §4.3 get_key).
func (s *Store) GetKey(ctx context.Context, username, password, keyID string) ([]byte, error) {
	if err := s.SignIn(ctx, username, password); err != nil {
		return nil, err
	}
	e, ok := s.cache.get(username)
	if !ok {
		return nil, walleterr.New(walleterr.KindInternal, "credential cache entry vanished after sign-in")
	}
	switch keyID {
	case "L2":
		return e.keys.L2, nil
	case "LP2":
		return e.keys.LP2, nil
	case "LRA2":
		return e.keys.LRA2, nil
	case "L1":
		return e.keys.L1, nil
	case "P1":
		return e.keys.P1, nil
	case "LRA1":
		return e.keys.LRA1, nil
	case "PIN":
		return []byte(e.pin), nil
	default:
		return nil, walleterr.New(walleterr.KindInternal, "unknown key id: "+keyID)
	}
}

// ClearCache zeroizes and releases every cached credential (spec.md §4.3
// clear_cache; never fails).
func (s *Store) ClearCache() {
	s.cache.clear()
}

// UserForNum reads the username stored for account number n (spec.md §4.3
// user_for_num).
func (s *Store) UserForNum(n int) (string, error) {
	return readUserName(accountDir(s.dataDir, n))
}

// NumForUser returns the lowest-numbered account directory for username,
// or -1 if none matches (spec.md §4.3 num_for_user).
func (s *Store) NumForUser(username string) (int, error) {
	return findUserDir(s.dataDir, username)
}

// ChangePassword re-derives L1, P1 and LP2 under the new password (LP2 is
// derived from (L, P), so it changes with the password), rewrites EPIN
// under the new LP2, rewrites ELP2 as the new LP2 under the unchanged LRA2
// and ELRA2 as that LRA2 under the new LP2, and notifies the server of the
// new P1.
func (s *Store) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	if err := s.SignIn(ctx, username, oldPassword); err != nil {
		return err
	}
	num, err := findUserDir(s.dataDir, username)
	if err != nil {
		return err
	}
	if num < 0 {
		return walleterr.New(walleterr.KindAccountDoesNotExist, "account does not exist: "+username)
	}
	dir := accountDir(s.dataDir, num)

	e, _ := s.cache.get(username)
	oldKeys := e.keys

	newKeys, err := keyhierarchy.DeriveForPasswordChange(username, newPassword, oldKeys.SNRP2)
	if err != nil {
		return walleterr.Wrap(walleterr.KindInternal, "derive key hierarchy for new password", err)
	}
	// LRA1/LRA2/L2/SNRP3/SNRP4 do not depend on the password and carry over
	// as copies (oldKeys is zeroed below). LRA2 is read back from ELRA2 under
	// the current LP2, since a disk sign-in derives LRA2 from empty answers.
	newKeys.RA = append([]byte(nil), oldKeys.RA...)
	newKeys.LRA1 = append([]byte(nil), oldKeys.LRA1...)
	newKeys.L2 = append([]byte(nil), oldKeys.L2...)
	newKeys.SNRP3 = oldKeys.SNRP3
	newKeys.SNRP4 = oldKeys.SNRP4
	elra2Data, err := readFileOrCorrupt(elra2File(dir))
	if err != nil {
		newKeys.Zero()
		return err
	}
	if newKeys.LRA2, err = cryptofacade.DecryptAES256(elra2Data, oldKeys.LP2); err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCorrupt, "decrypt ELRA2", err)
	}

	epinPlain, err := encodePIN(e.pin)
	if err != nil {
		newKeys.Zero()
		return err
	}
	epin, err := cryptofacade.EncryptAES256(epinPlain, newKeys.LP2)
	if err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "encrypt EPIN", err)
	}
	elp2, err := cryptofacade.EncryptAES256(newKeys.LP2, newKeys.LRA2)
	if err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "re-encrypt ELP2", err)
	}
	elra2, err := cryptofacade.EncryptAES256(newKeys.LRA2, newKeys.LP2)
	if err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "re-encrypt ELRA2", err)
	}

	if err := writeFilePretty(epinFile(dir), epin); err != nil {
		newKeys.Zero()
		return err
	}
	if err := writeFilePretty(elp2File(dir), elp2); err != nil {
		newKeys.Zero()
		return err
	}
	if err := writeFilePretty(elra2File(dir), elra2); err != nil {
		newKeys.Zero()
		return err
	}

	if s.server != nil {
		if err := s.server.NotifyPasswordChange(ctx, newKeys.L1, newKeys.P1); err != nil {
			s.log.Warnf("server password-change notification failed for %s: %v", username, err)
		}
	}

	oldKeys.Zero()
	s.cache.put(username, newCredEntry(newKeys, newPassword, e.pin))
	return nil
}

// SetRecovery replaces an account's recovery questions and answers. This
// is the corrected behavior spec.md §4.3/§9 calls for: it requires a
// valid signed-in session, draws a fresh SNRP3, re-derives LRA1/LRA2 under
// it, rewrites the CarePackage and both sync blobs, and notifies the
// server of the new LRA1. It deliberately does not reuse the original
// source's defective recovery-set routine, which just re-ran account
// creation in place.
func (s *Store) SetRecovery(ctx context.Context, username, password, recoveryQuestions, recoveryAnswers string) error {
	if err := s.SignIn(ctx, username, password); err != nil {
		return err
	}
	num, err := findUserDir(s.dataDir, username)
	if err != nil {
		return err
	}
	if num < 0 {
		return walleterr.New(walleterr.KindAccountDoesNotExist, "account does not exist: "+username)
	}
	dir := accountDir(s.dataDir, num)

	e, _ := s.cache.get(username)
	oldKeys := e.keys

	newKeys, err := keyhierarchy.DeriveInitial(username, password, recoveryAnswers)
	if err != nil {
		return walleterr.Wrap(walleterr.KindInternal, "derive key hierarchy for new recovery answers", err)
	}
	// DeriveInitial drew fresh SNRP2 too, but password and LP2 are
	// unchanged by this operation; keep the existing SNRP2/LP2 so blobs
	// encrypted under the current password remain valid.
	newKeys.SNRP2 = oldKeys.SNRP2
	newKeys.LP2 = append([]byte(nil), oldKeys.LP2...)

	erq, err := cryptofacade.EncryptAES256([]byte(recoveryQuestions), newKeys.L2)
	if err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "encrypt ERQ", err)
	}
	carePkg, err := carepackage.Encode(erq, newKeys.SNRP2, newKeys.SNRP3, newKeys.SNRP4)
	if err != nil {
		newKeys.Zero()
		return err
	}

	elp2, err := cryptofacade.EncryptAES256(newKeys.LP2, newKeys.LRA2)
	if err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "re-encrypt ELP2 under new LRA2", err)
	}
	elra2, err := cryptofacade.EncryptAES256(newKeys.LRA2, newKeys.LP2)
	if err != nil {
		newKeys.Zero()
		return walleterr.Wrap(walleterr.KindCrypto, "re-encrypt ELRA2", err)
	}

	if err := writeFilePretty(carePackageFile(dir), carePkg); err != nil {
		newKeys.Zero()
		return err
	}
	if err := writeFilePretty(elp2File(dir), elp2); err != nil {
		newKeys.Zero()
		return err
	}
	if err := writeFilePretty(elra2File(dir), elra2); err != nil {
		newKeys.Zero()
		return err
	}

	if s.server != nil {
		if err := s.server.NotifyRecoverySet(ctx, newKeys.L1, newKeys.LRA1); err != nil {
			s.log.Warnf("server recovery-set notification failed for %s: %v", username, err)
		}
	}

	oldKeys.Zero()
	s.cache.put(username, newCredEntry(newKeys, password, e.pin))
	return nil
}
