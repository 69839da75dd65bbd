package carepackage

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/airbitz-style/walletcore/internal/keyhierarchy"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

func testSNRP(seed byte) keyhierarchy.SNRP {
	salt := bytes.Repeat([]byte{seed}, 32)
	return keyhierarchy.SNRP{Salt: salt, N: 1 << 17, R: 8, P: 1}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	erq := []byte(`[{"question":"first pet"}]`)
	snrp2 := testSNRP(2)
	snrp3 := testSNRP(3)
	snrp4 := testSNRP(4)

	data, err := Encode(erq, snrp2, snrp3, snrp4)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	gotERQ, gotSNRP2, gotSNRP3, gotSNRP4, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(gotERQ, erq) {
		t.Fatalf("ERQ mismatch: got %q want %q", gotERQ, erq)
	}
	if !bytes.Equal(gotSNRP2.Salt, snrp2.Salt) || gotSNRP2.N != snrp2.N {
		t.Fatalf("SNRP2 mismatch: got %+v want %+v", gotSNRP2, snrp2)
	}
	if !bytes.Equal(gotSNRP3.Salt, snrp3.Salt) || gotSNRP3.N != snrp3.N {
		t.Fatalf("SNRP3 mismatch: got %+v want %+v", gotSNRP3, snrp3)
	}
	if !bytes.Equal(gotSNRP4.Salt, snrp4.Salt) || gotSNRP4.N != snrp4.N {
		t.Fatalf("SNRP4 mismatch: got %+v want %+v", gotSNRP4, snrp4)
	}
}

func TestDecodeMissingFieldIsCorrupt(t *testing.T) {
	doc := map[string]any{
		"ERQ":   "00",
		"SNRP2": map[string]any{"salt_hex": "00", "n": 1, "r": 1, "p": 1},
		"SNRP3": map[string]any{"salt_hex": "00", "n": 1, "r": 1, "p": 1},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	_, _, _, _, err = Decode(data)
	if err == nil {
		t.Fatalf("expected error for missing SNRP4 field")
	}
	if walleterr.KindOf(err) != walleterr.KindCorrupt {
		t.Fatalf("expected KindCorrupt, got %v", walleterr.KindOf(err))
	}
}

func TestDecodeNotAnObjectIsCorrupt(t *testing.T) {
	_, _, _, _, err := Decode([]byte(`"just a string"`))
	if err == nil {
		t.Fatalf("expected error for non-object CarePackage")
	}
	if walleterr.KindOf(err) != walleterr.KindCorrupt {
		t.Fatalf("expected KindCorrupt, got %v", walleterr.KindOf(err))
	}
}

func TestDecodeSNRPFieldWrongShapeIsCorrupt(t *testing.T) {
	doc := map[string]any{
		"ERQ":   "00",
		"SNRP2": "not an object",
		"SNRP3": map[string]any{"salt_hex": "00", "n": 1, "r": 1, "p": 1},
		"SNRP4": map[string]any{"salt_hex": "00", "n": 1, "r": 1, "p": 1},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}

	_, _, _, _, err = Decode(data)
	if err == nil {
		t.Fatalf("expected error for malformed SNRP2 field")
	}
	if walleterr.KindOf(err) != walleterr.KindCorrupt {
		t.Fatalf("expected KindCorrupt, got %v", walleterr.KindOf(err))
	}
}
