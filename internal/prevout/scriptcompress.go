package prevout

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// compactScript mirrors Bitcoin Core's chainstate special-script encoding
// for the handful of output shapes common enough to warrant it: P2PKH and
// P2SH collapse their 20-byte hash into a one-byte tag, and P2PK collapses
// its public key down to the 32-byte x-coordinate, tagging whether the
// script held a compressed or an uncompressed key so expandScript can
// rebuild the exact original form. Any other script is left untouched
// (tag 0xff, full bytes follow).
//
// tag values:
//
//	0x00  P2PKH, payload = 20-byte pubkey hash
//	0x01  P2SH,  payload = 20-byte script hash
//	0x02  P2PK originally compressed,   even y, payload = 32-byte x-coordinate
//	0x03  P2PK originally compressed,   odd y,  payload = 32-byte x-coordinate
//	0x04  P2PK originally uncompressed, even y, payload = 32-byte x-coordinate
//	0x05  P2PK originally uncompressed, odd y,  payload = 32-byte x-coordinate
//	0xff  uncompressed, payload = the script verbatim
func compactScript(pkScript []byte) (tag byte, payload []byte) {
	switch {
	case len(pkScript) == 25 && pkScript[0] == 0x76 && pkScript[1] == 0xa9 && pkScript[2] == 0x14 &&
		pkScript[23] == 0x88 && pkScript[24] == 0xac:
		return 0x00, pkScript[3:23]

	case len(pkScript) == 23 && pkScript[0] == 0xa9 && pkScript[1] == 0x14 && pkScript[22] == 0x87:
		return 0x01, pkScript[2:22]

	case len(pkScript) == 35 && pkScript[0] == 0x21 && pkScript[34] == 0xac &&
		(pkScript[1] == 0x02 || pkScript[1] == 0x03):
		tag := byte(0x02)
		if pkScript[1] == 0x03 {
			tag = 0x03
		}
		return tag, pkScript[2:34]

	case len(pkScript) == 67 && pkScript[0] == 0x41 && pkScript[66] == 0xac && pkScript[1] == 0x04:
		pub, err := btcec.ParsePubKey(pkScript[1:66])
		if err != nil {
			return 0xff, pkScript
		}
		compressed := pub.SerializeCompressed()
		tag := byte(0x04)
		if compressed[0] == 0x03 {
			tag = 0x05
		}
		return tag, compressed[1:]

	default:
		return 0xff, pkScript
	}
}

// expandScript reverses compactScript, rebuilding the exact original
// scriptPubkey: tags 0x02/0x03 return a compressed-key P2PK script, tags
// 0x04/0x05 recompute the uncompressed form btcec can derive from the
// same x-coordinate.
func expandScript(tag byte, payload []byte) ([]byte, error) {
	switch tag {
	case 0x00:
		if len(payload) != 20 {
			return nil, fmt.Errorf("compact P2PKH payload: want 20 bytes, got %d", len(payload))
		}
		out := make([]byte, 0, 25)
		out = append(out, 0x76, 0xa9, 0x14)
		out = append(out, payload...)
		out = append(out, 0x88, 0xac)
		return out, nil

	case 0x01:
		if len(payload) != 20 {
			return nil, fmt.Errorf("compact P2SH payload: want 20 bytes, got %d", len(payload))
		}
		out := make([]byte, 0, 23)
		out = append(out, 0xa9, 0x14)
		out = append(out, payload...)
		out = append(out, 0x87)
		return out, nil

	case 0x02, 0x03:
		if len(payload) != 32 {
			return nil, fmt.Errorf("compact P2PK payload: want 32 bytes, got %d", len(payload))
		}
		prefix := byte(0x02)
		if tag == 0x03 {
			prefix = 0x03
		}
		compressed := append([]byte{prefix}, payload...)
		out := make([]byte, 0, 35)
		out = append(out, 0x21)
		out = append(out, compressed...)
		out = append(out, 0xac)
		return out, nil

	case 0x04, 0x05:
		if len(payload) != 32 {
			return nil, fmt.Errorf("compact P2PK payload: want 32 bytes, got %d", len(payload))
		}
		prefix := byte(0x02)
		if tag == 0x05 {
			prefix = 0x03
		}
		compressed := append([]byte{prefix}, payload...)
		pub, err := btcec.ParsePubKey(compressed)
		if err != nil {
			return nil, fmt.Errorf("expand compact P2PK: %w", err)
		}
		out := make([]byte, 0, 67)
		out = append(out, 0x41)
		out = append(out, pub.SerializeUncompressed()...)
		out = append(out, 0xac)
		return out, nil

	case 0xff:
		return payload, nil

	default:
		return nil, fmt.Errorf("unknown compact script tag %#x", tag)
	}
}
