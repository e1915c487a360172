// Package idcodec implements ports.IdentifierCodec: bech32 decoding of
// NIP-19 identifiers (npub, note, nprofile, nevent, ...) and hex-64
// validation/normalisation. This is pure bit-manipulation over a text
// encoding, not cryptography (no signature verification, no key
// derivation), so it is implemented on the standard library rather than
// golang.org/x/crypto — the real signing/verification surface remains
// an external collaborator per the ports package.
package idcodec

import (
	"strings"

	"github.com/nugget/nostrgraph/ports"
)

const charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

var charsetIndex = func() [256]int8 {
	var idx [256]int8
	for i := range idx {
		idx[i] = -1
	}
	for i, c := range charset {
		idx[byte(c)] = int8(i)
	}
	return idx
}()

// Codec is the reference ports.IdentifierCodec.
type Codec struct{}

var _ ports.IdentifierCodec = Codec{}

// New returns a ready-to-use Codec.
func New() Codec { return Codec{} }

// Bech32Decode decodes a bech32-encoded Nostr identifier into its
// human-readable prefix ("npub", "note", "nprofile", ...) and
// lowercase-hex payload. For TLV-framed types (nprofile, nevent,
// naddr) it returns the hex of the first "special" (type 0) TLV
// value, which is the identifier's own id/pubkey; relay hints and
// other TLV fields are discarded, matching §6's "kind tag and payload"
// contract.
func (Codec) Bech32Decode(s string) (kind string, hex string, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	pos := strings.LastIndexByte(s, '1')
	if pos < 1 || pos+7 > len(s) {
		return "", "", false
	}
	hrp, data := s[:pos], s[pos+1:]

	values := make([]byte, len(data))
	for i := 0; i < len(data); i++ {
		v := charsetIndex[data[i]]
		if v < 0 {
			return "", "", false
		}
		values[i] = byte(v)
	}
	if !verifyChecksum(hrp, values) {
		return "", "", false
	}
	values = values[:len(values)-6]

	payload, ok := convertBits(values, 5, 8, false)
	if !ok {
		return "", "", false
	}

	switch hrp {
	case "npub", "nsec", "note":
		if len(payload) != 32 {
			return "", "", false
		}
		return hrp, toHex(payload), true
	case "nprofile", "nevent", "naddr":
		id, found := firstTLV(payload, 0)
		if !found {
			return "", "", false
		}
		return hrp, toHex(id), true
	default:
		return hrp, toHex(payload), true
	}
}

// firstTLV scans a NIP-19 TLV byte sequence for the first entry of the
// given type and returns its raw value bytes.
func firstTLV(data []byte, typ byte) ([]byte, bool) {
	for i := 0; i+2 <= len(data); {
		t, l := data[i], int(data[i+1])
		start := i + 2
		if start+l > len(data) {
			return nil, false
		}
		if t == typ {
			return data[start : start+l], true
		}
		i = start + l
	}
	return nil, false
}

// IsHex64 reports whether s is a 64-character hex string (an event id
// or pubkey in raw hex form).
func (Codec) IsHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// Normalize lowercases and trims a hex identifier.
func (Codec) Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toHex(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

// convertBits regroups a slice of fromBits-wide values into toBits-wide
// values, the standard bech32 bit-regrouping algorithm.
func convertBits(data []byte, fromBits, toBits uint, pad bool) ([]byte, bool) {
	var acc uint32
	var bits uint
	var out []byte
	maxv := uint32(1)<<toBits - 1
	for _, value := range data {
		if uint32(value)>>fromBits != 0 {
			return nil, false
		}
		acc = acc<<fromBits | uint32(value)
		bits += fromBits
		for bits >= toBits {
			bits -= toBits
			out = append(out, byte(acc>>bits)&byte(maxv))
		}
	}
	if pad {
		if bits > 0 {
			out = append(out, byte(acc<<(toBits-bits))&byte(maxv))
		}
	} else if bits >= fromBits || (acc<<(toBits-bits))&maxv != 0 {
		return nil, false
	}
	return out, true
}

func polymod(values []byte) uint32 {
	generators := [5]uint32{0x3b6a57b2, 0x26508e6d, 0x1ea119fa, 0x3d4233dd, 0x2a1462b3}
	chk := uint32(1)
	for _, v := range values {
		top := chk >> 25
		chk = (chk&0x1ffffff)<<5 ^ uint32(v)
		for i := 0; i < 5; i++ {
			if (top>>uint(i))&1 != 0 {
				chk ^= generators[i]
			}
		}
	}
	return chk
}

func hrpExpand(hrp string) []byte {
	out := make([]byte, 0, len(hrp)*2+1)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]>>5)
	}
	out = append(out, 0)
	for i := 0; i < len(hrp); i++ {
		out = append(out, hrp[i]&31)
	}
	return out
}

func verifyChecksum(hrp string, data []byte) bool {
	values := append(hrpExpand(hrp), data...)
	return polymod(values) == 1
}
