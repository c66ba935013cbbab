package dhcp

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"

	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4"
	"github.com/resolvdhcpd/resolvdhcpd/pkg/dhcpv4/rfcopts"
)

// Options is a map of DHCP option code to raw option data.
type Options map[dhcpv4.OptionCode][]byte

// DecodeOptions parses the options section of a DHCP packet.
// RFC 2132 — options are TLV (type-length-value) encoded. A code repeated
// within the same options area keeps its first occurrence; later ones are
// discarded and logged rather than silently overwriting it.
func DecodeOptions(data []byte) (Options, error) {
	opts := make(Options)
	i := 0
	for i < len(data) {
		code := dhcpv4.OptionCode(data[i])
		i++

		// Pad option (RFC 2132 §3.1)
		if code == dhcpv4.OptionPad {
			continue
		}

		// End option (RFC 2132 §3.2)
		if code == dhcpv4.OptionEnd {
			break
		}

		// TLV: need at least 1 byte for length
		if i >= len(data) {
			return nil, fmt.Errorf("truncated option %d: no length byte", code)
		}

		length := int(data[i])
		i++

		if i+length > len(data) {
			return nil, fmt.Errorf("truncated option %d: need %d bytes, have %d", code, length, len(data)-i)
		}

		if _, seen := opts[code]; seen {
			slog.Warn("duplicate option in packet, keeping first occurrence", "code", code)
			i += length
			continue
		}

		value := make([]byte, length)
		copy(value, data[i:i+length])
		opts[code] = value
		i += length
	}

	return opts, nil
}

// Encode serializes options to bytes with end marker. Option 53 (DHCP
// message type) is always written first since some client stacks only
// look at the opening bytes of the options area; every other option
// follows in ascending code order so the wire form is deterministic
// across calls.
func (opts Options) Encode() []byte {
	size := 0
	for _, v := range opts {
		size += 2 + len(v) // code + length + value
	}
	size++ // End option

	codes := make([]dhcpv4.OptionCode, 0, len(opts))
	for code := range opts {
		if code == dhcpv4.OptionPad || code == dhcpv4.OptionEnd {
			continue
		}
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if codes[i] == dhcpv4.OptionDHCPMessageType {
			return true
		}
		if codes[j] == dhcpv4.OptionDHCPMessageType {
			return false
		}
		return codes[i] < codes[j]
	})

	buf := make([]byte, 0, size)
	for _, code := range codes {
		value := opts[code]
		buf = append(buf, byte(code))
		buf = append(buf, byte(len(value)))
		buf = append(buf, value...)
	}

	buf = append(buf, byte(dhcpv4.OptionEnd))
	return buf
}

// Get returns the raw value for an option code.
func (opts Options) Get(code dhcpv4.OptionCode) ([]byte, bool) {
	v, ok := opts[code]
	return v, ok
}

// ErrNoSuchOption is returned by the typed Get* accessors when the option
// is absent. ErrWrongType is returned when it's present but the registry
// (options_registry.go) says it holds a different type than asked for.
var (
	ErrNoSuchOption = errors.New("dhcp: no such option")
	ErrWrongType    = errors.New("dhcp: option is a different registered type")
)

// checkTyped validates an accessor call against the registry before a
// typed getter touches the raw bytes, so every getter reports the same
// NoSuchOption/WrongType distinction. The setters do not call it.
func checkTyped(code dhcpv4.OptionCode, want OptionType) error {
	def := GetOptionDef(code)
	if def == nil {
		return nil // unregistered: no type to conflict with
	}
	if def.Type != want {
		return fmt.Errorf("%w: option %d (%s) is registered as %v, not %v", ErrWrongType, code, def.Name, def.Type, want)
	}
	return nil
}

// GetUint32 returns a uint32 option's value.
func (opts Options) GetUint32(code dhcpv4.OptionCode) (uint32, error) {
	data, ok := opts[code]
	if !ok {
		return 0, fmt.Errorf("%w: option %d", ErrNoSuchOption, code)
	}
	if err := checkTyped(code, TypeUint32); err != nil {
		return 0, err
	}
	return dhcpv4.BytesToUint32(data)
}

// GetUint16 returns a uint16 option's value.
func (opts Options) GetUint16(code dhcpv4.OptionCode) (uint16, error) {
	data, ok := opts[code]
	if !ok {
		return 0, fmt.Errorf("%w: option %d", ErrNoSuchOption, code)
	}
	if err := checkTyped(code, TypeUint16); err != nil {
		return 0, err
	}
	return dhcpv4.BytesToUint16(data)
}

// GetString returns a string option's value.
func (opts Options) GetString(code dhcpv4.OptionCode) (string, error) {
	data, ok := opts[code]
	if !ok {
		return "", fmt.Errorf("%w: option %d", ErrNoSuchOption, code)
	}
	if err := checkTyped(code, TypeString); err != nil {
		return "", err
	}
	return string(data), nil
}

// GetBool returns a boolean option's value.
func (opts Options) GetBool(code dhcpv4.OptionCode) (bool, error) {
	data, ok := opts[code]
	if !ok {
		return false, fmt.Errorf("%w: option %d", ErrNoSuchOption, code)
	}
	if err := checkTyped(code, TypeBool); err != nil {
		return false, err
	}
	if len(data) != 1 {
		return false, fmt.Errorf("%w: option %d: expected 1 byte for bool, got %d", ErrWrongType, code, len(data))
	}
	return data[0] != 0, nil
}

// GetIP returns an IPv4 address option's value.
func (opts Options) GetIP(code dhcpv4.OptionCode) (net.IP, error) {
	data, ok := opts[code]
	if !ok {
		return nil, fmt.Errorf("%w: option %d", ErrNoSuchOption, code)
	}
	if err := checkTyped(code, TypeIP); err != nil {
		return nil, err
	}
	ip := dhcpv4.BytesToIP(data)
	if ip == nil {
		return nil, fmt.Errorf("%w: option %d: expected 4 bytes for IP, got %d", ErrWrongType, code, len(data))
	}
	return ip, nil
}

// GetStructured decodes an option through the RFC sub-codec named by its
// registry entry (options_registry.go's RFCCodec), returning whatever type
// that pkg/dhcpv4/rfcopts decoder produces. Options with no registered
// sub-codec, or ones (like the MoS IP option 139) whose wire form needs
// context GetStructured doesn't have, return ErrWrongType.
func (opts Options) GetStructured(code dhcpv4.OptionCode) (any, error) {
	data, ok := opts[code]
	if !ok {
		return nil, fmt.Errorf("%w: option %d", ErrNoSuchOption, code)
	}
	def := GetOptionDef(code)
	if def == nil || def.RFCCodec == "" {
		return nil, fmt.Errorf("%w: option %d has no registered sub-codec", ErrWrongType, code)
	}
	switch def.RFCCodec {
	case "rfc3046":
		return rfcopts.DecodeRelayAgentInfo(data)
	case "rfc4174":
		return rfcopts.DecodeISNS(data)
	case "rfc3397", "rfc4280", "rfc5223":
		return rfcopts.DecodeDomainList(data)
	case "rfc3361":
		return rfcopts.DecodeSIPServers(data)
	case "rfc3442":
		return rfcopts.DecodeClasslessStaticRoutes(data)
	case "rfc3925":
		if code == dhcpv4.OptionVIVendorClass {
			return rfcopts.DecodeVendorClass(data)
		}
		return rfcopts.DecodeVendorSpecific(data)
	case "rfc5678":
		if code == dhcpv4.OptionMoSFQDN {
			return rfcopts.DecodeMoSFQDN(data)
		}
		return nil, fmt.Errorf("%w: option %d: MoS IP Address needs its per-entry address count, use rfcopts.DecodeMoSIPAddress directly", ErrWrongType, code)
	default:
		return nil, fmt.Errorf("%w: option %d: unrecognized RFCCodec %q", ErrWrongType, code, def.RFCCodec)
	}
}

// IsRequestedOption reports whether code appears in the packet's Parameter
// Request List (option 55) — the client's signal that it wants the option
// included in replies (RFC 2132 §9.8).
func (opts Options) IsRequestedOption(code dhcpv4.OptionCode) bool {
	prl, ok := opts[dhcpv4.OptionParameterRequestList]
	if !ok {
		return false
	}
	for _, b := range prl {
		if dhcpv4.OptionCode(b) == code {
			return true
		}
	}
	return false
}

// Set sets an option to a raw value, validating it against the registry
// (options_registry.go) first. Returns false and leaves opts unchanged if
// the value violates the option's registered length or type constraints.
func (opts Options) Set(code dhcpv4.OptionCode, value []byte) bool {
	if err := ValidateOption(code, value); err != nil {
		slog.Warn("rejected option set: validation failed", "code", code, "error", err)
		return false
	}
	opts[code] = value
	return true
}

// SetIP sets an IP address option.
func (opts Options) SetIP(code dhcpv4.OptionCode, ip interface{}) bool {
	switch v := ip.(type) {
	case [4]byte:
		return opts.Set(code, v[:])
	case []byte:
		return opts.Set(code, v)
	default:
		return false
	}
}

// SetUint32 sets a uint32 option.
func (opts Options) SetUint32(code dhcpv4.OptionCode, v uint32) bool {
	return opts.Set(code, dhcpv4.Uint32ToBytes(v))
}

// SetUint16 sets a uint16 option.
func (opts Options) SetUint16(code dhcpv4.OptionCode, v uint16) bool {
	return opts.Set(code, dhcpv4.Uint16ToBytes(v))
}

// SetString sets a string option.
func (opts Options) SetString(code dhcpv4.OptionCode, s string) bool {
	return opts.Set(code, []byte(s))
}

// SetBool sets a boolean option (1 byte: 0x00 or 0x01).
func (opts Options) SetBool(code dhcpv4.OptionCode, v bool) bool {
	if v {
		return opts.Set(code, []byte{0x01})
	}
	return opts.Set(code, []byte{0x00})
}

// Has returns true if the option is present.
func (opts Options) Has(code dhcpv4.OptionCode) bool {
	_, ok := opts[code]
	return ok
}

// Delete removes an option.
func (opts Options) Delete(code dhcpv4.OptionCode) {
	delete(opts, code)
}

// Clone returns a deep copy of the options.
func (opts Options) Clone() Options {
	clone := make(Options, len(opts))
	for k, v := range opts {
		vc := make([]byte, len(v))
		copy(vc, v)
		clone[k] = vc
	}
	return clone
}
