// Package nip19 decodes the shareable post references used in SCRUTINY
// content (note1..., nevent1..., nostr: URIs, web links ending in either)
// into raw 64-hex post ids.
package nip19

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const (
	prefixNote  = "note"
	prefixEvent = "nevent"

	uriScheme = "nostr:"

	tlvSpecial = 0
	idLen      = 32
)

var (
	// ErrUnsupported is returned for references that are not post ids.
	ErrUnsupported = errors.New("unsupported reference format")
	// ErrInvalid is returned when a reference is malformed.
	ErrInvalid = errors.New("invalid reference")
)

// EventID decodes ref into a lowercase 64-hex post id.
func EventID(ref string) (string, error) {
	s := strip(ref)
	if isHexID(s) {
		return strings.ToLower(s), nil
	}

	prefix, data, err := bech32.DecodeNoLimit(strings.ToLower(s))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnsupported, ref, err)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("%w: convert bits: %v", ErrInvalid, err)
	}

	switch prefix {
	case prefixNote:
		if len(payload) != idLen {
			return "", fmt.Errorf("%w: note payload is %d bytes", ErrInvalid, len(payload))
		}
		return hex.EncodeToString(payload), nil
	case prefixEvent:
		id, ok := tlvValue(payload, tlvSpecial)
		if !ok || len(id) != idLen {
			return "", fmt.Errorf("%w: nevent missing event id", ErrInvalid)
		}
		return hex.EncodeToString(id), nil
	default:
		return "", fmt.Errorf("%w: prefix %q", ErrUnsupported, prefix)
	}
}

// EncodeNote encodes a 64-hex id as note1....
func EncodeNote(id string) (string, error) {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != idLen {
		return "", fmt.Errorf("%w: id must be 64 hex characters", ErrInvalid)
	}
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.Encode(prefixNote, conv)
}

// EncodeEvent encodes a 64-hex id as a minimal nevent1... with relay hints.
func EncodeEvent(id string, relays ...string) (string, error) {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) != idLen {
		return "", fmt.Errorf("%w: id must be 64 hex characters", ErrInvalid)
	}
	tlv := append([]byte{tlvSpecial, idLen}, raw...)
	for _, r := range relays {
		if len(r) > 255 {
			continue
		}
		tlv = append(tlv, 1, byte(len(r)))
		tlv = append(tlv, r...)
	}
	conv, err := bech32.ConvertBits(tlv, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	return bech32.Encode(prefixEvent, conv)
}

// strip removes surrounding whitespace, the nostr: scheme and web link
// wrappers such as https://njump.me/note1....
func strip(ref string) string {
	s := strings.TrimSpace(ref)
	if len(s) >= len(uriScheme) && strings.EqualFold(s[:len(uriScheme)], uriScheme) {
		s = s[len(uriScheme):]
	}
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Path != "" {
		s = path.Base(strings.TrimRight(u.Path, "/"))
	}
	return s
}

func isHexID(s string) bool {
	if len(s) != 2*idLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func tlvValue(payload []byte, typ byte) ([]byte, bool) {
	for i := 0; i+2 <= len(payload); {
		t, l := payload[i], int(payload[i+1])
		i += 2
		if i+l > len(payload) {
			return nil, false
		}
		if t == typ {
			return payload[i : i+l], true
		}
		i += l
	}
	return nil, false
}
