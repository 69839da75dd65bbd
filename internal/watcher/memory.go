package watcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

// Memory is an in-process Watcher implementation backed by a plain slice,
// used by tests and by any caller that wants a watcher without a live
// chain connection.
type Memory struct {
	mu          sync.Mutex
	utxos       []coretypes.UTXO
	addrCounter int
	keys        map[string][]byte
	persisted   int
}

// NewMemory constructs a Memory watcher seeded with the given UTXOs. keys
// maps each UTXO's AddressKey to its private key bytes.
func NewMemory(utxos []coretypes.UTXO, keys map[string][]byte) *Memory {
	cp := make([]coretypes.UTXO, len(utxos))
	copy(cp, utxos)
	return &Memory{utxos: cp, keys: keys}
}

func (m *Memory) UTXOs(ctx context.Context) ([]coretypes.UTXO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]coretypes.UTXO, len(m.utxos))
	copy(out, m.utxos)
	return out, nil
}

func (m *Memory) NewChangeAddress(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrCounter++
	return fmt.Sprintf("change-addr-%d", m.addrCounter), nil
}

func (m *Memory) NewRefundAddress(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrCounter++
	return fmt.Sprintf("refund-addr-%d", m.addrCounter), nil
}

func (m *Memory) PrivateKeyFor(ctx context.Context, addressKey string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.keys[addressKey]
	if !ok {
		return nil, fmt.Errorf("no private key for address key %q", addressKey)
	}
	return key, nil
}

func (m *Memory) MarkSpent(ctx context.Context, spent []coretypes.UTXO) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	spentSet := make(map[string]bool, len(spent))
	for _, u := range spent {
		spentSet[u.TxHash.String()+fmt.Sprint(u.Index)] = true
	}
	var remaining []coretypes.UTXO
	for _, u := range m.utxos {
		if spentSet[u.TxHash.String()+fmt.Sprint(u.Index)] {
			continue
		}
		remaining = append(remaining, u)
	}
	m.utxos = remaining
	return nil
}

func (m *Memory) Persist(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted++
	return nil
}

// PersistCount reports how many times Persist has been called, for test
// assertions.
func (m *Memory) PersistCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persisted
}
