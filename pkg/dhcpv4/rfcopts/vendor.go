package rfcopts

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// VendorClass is the decoded form of option 124 (RFC 3925): vendor payload
// bytes keyed by IANA enterprise number.
type VendorClass map[uint32][]byte

// EncodeVendorClass packs a VendorClass in ascending enterprise-number
// order: 4-byte enterprise number, 1-byte length, payload.
func EncodeVendorClass(vc VendorClass) ([]byte, error) {
	var buf []byte
	for _, num := range sortedKeys(vc) {
		payload := vc[num]
		if len(payload) > 255 {
			return nil, fmt.Errorf("rfc3925: enterprise %d payload length %d exceeds 255", num, len(payload))
		}
		buf = append(buf, be32(num)...)
		buf = append(buf, byte(len(payload)))
		buf = append(buf, payload...)
	}
	return buf, nil
}

// DecodeVendorClass unpacks option 124.
func DecodeVendorClass(b []byte) (VendorClass, error) {
	vc := VendorClass{}
	i := 0
	for i < len(b) {
		if i+5 > len(b) {
			return nil, fmt.Errorf("rfc3925: truncated entry header at offset %d", i)
		}
		num := binary.BigEndian.Uint32(b[i : i+4])
		length := int(b[i+4])
		i += 5
		if i+length > len(b) {
			return nil, fmt.Errorf("rfc3925: truncated payload for enterprise %d at offset %d", num, i)
		}
		vc[num] = append([]byte(nil), b[i:i+length]...)
		i += length
	}
	return vc, nil
}

// VendorSpecific is the decoded form of option 125 (RFC 3925): nested
// sub-options keyed by enterprise number, then by a one-byte sub-code.
type VendorSpecific map[uint32]map[byte][]byte

// EncodeVendorSpecific packs a VendorSpecific in ascending enterprise-number
// order, with each enterprise's sub-options in ascending sub-code order.
func EncodeVendorSpecific(vs VendorSpecific) ([]byte, error) {
	var buf []byte
	for _, num := range sortedKeys32(vs) {
		subopts := vs[num]
		var sub []byte
		for _, code := range sortedSubCodes(subopts) {
			payload := subopts[code]
			if len(payload) > 255 {
				return nil, fmt.Errorf("rfc3925: enterprise %d sub-option %d payload length %d exceeds 255", num, code, len(payload))
			}
			sub = append(sub, code, byte(len(payload)))
			sub = append(sub, payload...)
		}
		if len(sub) > 255 {
			return nil, fmt.Errorf("rfc3925: enterprise %d aggregate sub-option length %d exceeds 255", num, len(sub))
		}
		buf = append(buf, be32(num)...)
		buf = append(buf, byte(len(sub)))
		buf = append(buf, sub...)
	}
	return buf, nil
}

// DecodeVendorSpecific unpacks option 125.
func DecodeVendorSpecific(b []byte) (VendorSpecific, error) {
	vs := VendorSpecific{}
	i := 0
	for i < len(b) {
		if i+5 > len(b) {
			return nil, fmt.Errorf("rfc3925: truncated entry header at offset %d", i)
		}
		num := binary.BigEndian.Uint32(b[i : i+4])
		length := int(b[i+4])
		i += 5
		if i+length > len(b) {
			return nil, fmt.Errorf("rfc3925: truncated payload for enterprise %d at offset %d", num, i)
		}
		sub := b[i : i+length]
		i += length

		subopts := map[byte][]byte{}
		j := 0
		for j < len(sub) {
			if j+2 > len(sub) {
				return nil, fmt.Errorf("rfc3925: truncated sub-option header for enterprise %d at offset %d", num, j)
			}
			code := sub[j]
			subLength := int(sub[j+1])
			j += 2
			if j+subLength > len(sub) {
				return nil, fmt.Errorf("rfc3925: truncated sub-option %d for enterprise %d at offset %d", code, num, j)
			}
			subopts[code] = append([]byte(nil), sub[j:j+subLength]...)
			j += subLength
		}
		vs[num] = subopts
	}
	return vs, nil
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func sortedKeys(vc VendorClass) []uint32 {
	keys := make([]uint32, 0, len(vc))
	for k := range vc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedKeys32(vs VendorSpecific) []uint32 {
	keys := make([]uint32, 0, len(vs))
	for k := range vs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedSubCodes(m map[byte][]byte) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
