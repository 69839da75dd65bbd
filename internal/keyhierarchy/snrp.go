package keyhierarchy

import "github.com/airbitz-style/walletcore/internal/cryptofacade"

// SNRP is a Scrypt salt-and-parameters tuple (spec.md §3.1).
type SNRP struct {
	Salt []byte `json:"salt_hex"`
	N    int    `json:"n"`
	R    int    `json:"r"`
	P    int    `json:"p"`
}

// clientCostN/R/P are the bench-tuned defaults for freshly generated
// client-class SNRPs: ~100ms on a baseline device, never below the
// N=2^10,r=8,p=1 floor (spec.md §9).
const (
	clientCostN = 1 << 17
	clientCostR = 8
	clientCostP = 1
)

// newClientSNRP draws a fresh 32-byte salt and pairs it with the
// bench-tuned client-class cost parameters.
func newClientSNRP() (SNRP, error) {
	salt, err := cryptofacade.RandomBytes(32)
	if err != nil {
		return SNRP{}, err
	}
	return SNRP{Salt: salt, N: clientCostN, R: clientCostR, P: clientCostP}, nil
}

// SNRP1 is the server-class SNRP: a compile-time constant, identical across
// every install, used only for the authenticators (L1, P1, LRA1) sent to
// the credential server. Changing this value breaks interop with every
// existing account (spec.md §9).
var SNRP1 = SNRP{
	Salt: []byte{
		0xb5, 0x86, 0x5f, 0xfb, 0x9f, 0xa7, 0xb3, 0xbf,
		0xe4, 0xb2, 0x38, 0x4d, 0x47, 0xce, 0x83, 0x1e,
		0xe2, 0x2a, 0x4a, 0x9d, 0x5c, 0x34, 0xc7, 0xef,
		0x19, 0x5d, 0x86, 0x11, 0x5e, 0x94, 0x2f, 0x4d,
	},
	N: 16384,
	R: 1,
	P: 1,
}
