package frame

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// ChecksumStart is the first byte covered by the default checksum rule.
	ChecksumStart = 8
	// ReplyCodeMarker precedes the little-endian command code in a frame.
	ReplyCodeMarker = 0x57

	minChecksumLen  = 10
	replyCodeScanTo = 40
	payloadScanBack = 96
)

// SyncPrefix is the fixed 7-byte synchronization prefix of every UDP frame.
var SyncPrefix = []byte{0x55, 0xAA, 0x00, 0x00, 0xFE, 0x00, 0x00}

var (
	ErrOddHex      = errors.New("frame: odd number of hex digits")
	ErrEmptyHex    = errors.New("frame: empty hex string")
	ErrPayloadSize = errors.New("frame: payload longer than 255 bytes")
)

// Checksum returns the sum of bytes 8 through len-2 modulo 256. Frames shorter
// than 10 bytes have no checksum region and yield 0.
func Checksum(b []byte) byte {
	if len(b) < minChecksumLen {
		return 0
	}
	var sum byte
	for _, v := range b[ChecksumStart : len(b)-1] {
		sum += v
	}
	return sum
}

// ChecksumValid reports whether the trailing byte matches Checksum.
func ChecksumValid(b []byte) bool {
	if len(b) < minChecksumLen {
		return false
	}
	return b[len(b)-1] == Checksum(b)
}

// DecodeReplyCode scans offsets 8..min(len-3, 40) for ReplyCodeMarker and
// renders the two following bytes high byte first. A missing marker is
// reported through ok=false.
func DecodeReplyCode(b []byte) (code string, ok bool) {
	last := len(b) - 3
	if last > replyCodeScanTo {
		last = replyCodeScanTo
	}
	for i := ChecksumStart; i <= last; i++ {
		if b[i] == ReplyCodeMarker {
			return fmt.Sprintf("%02X%02X", b[i+2], b[i+1]), true
		}
	}
	return "", false
}

// Payload is the length-delimited region selected by ExtractPayload.
type Payload struct {
	Data []byte
	// Offset is the index of the leading 00 of the selected 00 <len> 00 marker.
	Offset     int
	Ambiguous  bool
	Candidates []int
}

// ExtractPayload walks backward from len-4 looking for a 00 <len> 00 marker
// whose payload ends right before the checksum byte. The candidate nearest
// the tail wins; Ambiguous is set when more than one candidate exists.
func ExtractPayload(b []byte) (Payload, bool) {
	end := len(b) - 1
	low := len(b) - payloadScanBack
	if low < 0 {
		low = 0
	}
	var candidates []int
	for i := len(b) - 4; i >= low; i-- {
		if b[i] != 0x00 || b[i+2] != 0x00 {
			continue
		}
		if i+3+int(b[i+1]) == end {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return Payload{}, false
	}
	sel := candidates[0]
	data := make([]byte, int(b[sel+1]))
	copy(data, b[sel+3:end])
	return Payload{
		Data:       data,
		Offset:     sel,
		Ambiguous:  len(candidates) > 1,
		Candidates: candidates,
	}, true
}

// Equal reports byte-exact equality.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// EqualIgnoringChecksum reports whether a and b have the same length and
// differ at most in their final byte.
func EqualIgnoringChecksum(a, b []byte) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	return bytes.Equal(a[:len(a)-1], b[:len(b)-1])
}

func HasSyncPrefix(b []byte) bool {
	return bytes.HasPrefix(b, SyncPrefix)
}

// ParseHex decodes hex text as found in truth datasets: whitespace, 0x
// prefixes and ':' or '-' separators are ignored.
func ParseHex(s string) ([]byte, error) {
	cleaned := strings.NewReplacer("0x", "", "0X", "", " ", "", "\t", "", "\n", "", "\r", "", ":", "", "-", "", ",", "").Replace(s)
	if cleaned == "" {
		return nil, ErrEmptyHex
	}
	if len(cleaned)%2 != 0 {
		return nil, fmt.Errorf("%w: %q", ErrOddHex, s)
	}
	out, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("frame: decode hex %q: %w", s, err)
	}
	return out, nil
}

// Hex renders b as upper-case, space separated byte pairs.
func Hex(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(b) * 3)
	const digits = "0123456789ABCDEF"
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte(digits[v>>4])
		sb.WriteByte(digits[v&0x0F])
	}
	return sb.String()
}

// NormalizeCode upper-cases a command code and strips an optional 0x prefix.
func NormalizeCode(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	c = strings.TrimPrefix(c, "0X")
	return c
}

// ParseCode converts a rendered code such as "C203" or "0xC203" to its
// numeric value.
func ParseCode(code string) (uint16, error) {
	raw, err := hex.DecodeString(NormalizeCode(code))
	if err != nil || len(raw) != 2 {
		return 0, fmt.Errorf("frame: invalid command code %q", code)
	}
	return uint16(raw[0])<<8 | uint16(raw[1]), nil
}
