// Package carepackage encodes and decodes the recovery-side envelope:
// encrypted recovery questions plus the three client-class SNRP records
// (spec.md §3.1/§4.2).
package carepackage

import (
	"encoding/json"
	"fmt"

	"github.com/airbitz-style/walletcore/internal/keyhierarchy"
	"github.com/airbitz-style/walletcore/internal/walleterr"
)

// snrpJSON mirrors keyhierarchy.SNRP for the wire form; the field name
// carries the shared "SNRP" prefix the source uses
// (JSON_ACCT_SNRP_FIELD_PREFIX), but each of SNRP2/SNRP3/SNRP4 is its own
// named object — never an array — so decoding must read each by name.
type snrpJSON struct {
	Salt string `json:"salt_hex"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

// document is the on-disk CarePackage.json shape.
type document struct {
	ERQ   string    `json:"ERQ"`
	SNRP2 *snrpJSON `json:"SNRP2"`
	SNRP3 *snrpJSON `json:"SNRP3"`
	SNRP4 *snrpJSON `json:"SNRP4"`
}

// Encode builds the pretty-printed JSON form of a CarePackage (spec.md §6:
// 4-space indent, preserved field order).
func Encode(erq []byte, snrp2, snrp3, snrp4 keyhierarchy.SNRP) ([]byte, error) {
	doc := document{
		ERQ:   hexEncode(erq),
		SNRP2: toSNRPJSON(snrp2),
		SNRP3: toSNRPJSON(snrp3),
		SNRP4: toSNRPJSON(snrp4),
	}
	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return nil, walleterr.Wrap(walleterr.KindJSON, "encode CarePackage", err)
	}
	return out, nil
}

// Decode parses a CarePackage document, failing with walleterr.KindCorrupt
// if any of ERQ/SNRP2/SNRP3/SNRP4 is absent or not an object (spec.md §4.2).
func Decode(data []byte) (erq []byte, snrp2, snrp3, snrp4 keyhierarchy.SNRP, err error) {
	var raw map[string]json.RawMessage
	if err = json.Unmarshal(data, &raw); err != nil {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{},
			walleterr.Wrap(walleterr.KindCorrupt, "CarePackage is not a JSON object", err)
	}

	erqRaw, ok := raw["ERQ"]
	if !ok {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{},
			walleterr.New(walleterr.KindCorrupt, "CarePackage missing ERQ field")
	}
	var erqHex string
	if err = json.Unmarshal(erqRaw, &erqHex); err != nil {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{},
			walleterr.Wrap(walleterr.KindCorrupt, "CarePackage ERQ is not a string", err)
	}
	erq, err = hexDecode(erqHex)
	if err != nil {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{},
			walleterr.Wrap(walleterr.KindCorrupt, "CarePackage ERQ is not valid hex", err)
	}

	snrp2, err = decodeSNRPField(raw, "SNRP2")
	if err != nil {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, err
	}
	snrp3, err = decodeSNRPField(raw, "SNRP3")
	if err != nil {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, err
	}
	snrp4, err = decodeSNRPField(raw, "SNRP4")
	if err != nil {
		return nil, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, keyhierarchy.SNRP{}, err
	}

	return erq, snrp2, snrp3, snrp4, nil
}

// decodeSNRPField reads one named SNRP object out of the top-level
// CarePackage map. Every field is looked up by name (ERQ, SNRP2, SNRP3,
// SNRP4) — never by array position — per spec.md §4.2's note that the
// "SNRP" name prefix is shared across entries.
func decodeSNRPField(raw map[string]json.RawMessage, field string) (keyhierarchy.SNRP, error) {
	entry, ok := raw[field]
	if !ok {
		return keyhierarchy.SNRP{}, walleterr.New(walleterr.KindCorrupt, fmt.Sprintf("CarePackage missing %s field", field))
	}
	var snrp snrpJSON
	if err := json.Unmarshal(entry, &snrp); err != nil {
		return keyhierarchy.SNRP{}, walleterr.Wrap(walleterr.KindCorrupt, fmt.Sprintf("CarePackage %s is not an object", field), err)
	}
	salt, err := hexDecode(snrp.Salt)
	if err != nil {
		return keyhierarchy.SNRP{}, walleterr.Wrap(walleterr.KindCorrupt, fmt.Sprintf("CarePackage %s salt is not valid hex", field), err)
	}
	return keyhierarchy.SNRP{Salt: salt, N: snrp.N, R: snrp.R, P: snrp.P}, nil
}

func toSNRPJSON(s keyhierarchy.SNRP) *snrpJSON {
	return &snrpJSON{Salt: hexEncode(s.Salt), N: s.N, R: s.R, P: s.P}
}
