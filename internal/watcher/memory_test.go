package watcher

import (
	"context"
	"testing"

	"github.com/airbitz-style/walletcore/pkg/coretypes"
)

func TestMemoryMarkSpentRemovesConsumedUTXOs(t *testing.T) {
	u1 := coretypes.UTXO{Index: 0, Amount: 1000, Spendable: true}
	u2 := coretypes.UTXO{Index: 1, Amount: 2000, Spendable: true}
	m := NewMemory([]coretypes.UTXO{u1, u2}, nil)

	if err := m.MarkSpent(context.Background(), []coretypes.UTXO{u1}); err != nil {
		t.Fatalf("MarkSpent: %v", err)
	}

	remaining, err := m.UTXOs(context.Background())
	if err != nil {
		t.Fatalf("UTXOs: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Amount != 2000 {
		t.Fatalf("expected only the 2000-sat UTXO to remain, got %+v", remaining)
	}
}

func TestMemoryPrivateKeyForUnknownAddress(t *testing.T) {
	m := NewMemory(nil, map[string][]byte{"addr1": []byte("key1")})
	if _, err := m.PrivateKeyFor(context.Background(), "addr2"); err == nil {
		t.Fatalf("expected error for unknown address key")
	}
	key, err := m.PrivateKeyFor(context.Background(), "addr1")
	if err != nil {
		t.Fatalf("PrivateKeyFor: %v", err)
	}
	if string(key) != "key1" {
		t.Fatalf("unexpected key: %q", key)
	}
}

func TestMemoryPersistCount(t *testing.T) {
	m := NewMemory(nil, nil)
	if m.PersistCount() != 0 {
		t.Fatalf("expected 0 persists initially")
	}
	if err := m.Persist(context.Background()); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if m.PersistCount() != 1 {
		t.Fatalf("expected 1 persist after calling Persist")
	}
}
