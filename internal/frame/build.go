package frame

import "fmt"

// BuildOptions controls the optional header fields written by Build.
type BuildOptions struct {
	DeviceID byte
	// Header bytes are written right after the command code.
	Header []byte
	// Length pads the header so the finished frame has exactly this many
	// bytes. Zero means the minimal length.
	Length int
	// Fill is written into the padding region.
	Fill byte
}

const buildHeaderLen = 11 // sync(7) + device(1) + marker(1) + code(2)

// Build assembles a well-formed frame carrying code and payload:
// sync prefix, device id, code marker, code (low byte first), header bytes,
// padding, 00 <len> 00, payload and the checksum byte.
func Build(code uint16, payload []byte, opts BuildOptions) ([]byte, error) {
	if len(payload) > 0xFF {
		return nil, ErrPayloadSize
	}
	minLen := buildHeaderLen + len(opts.Header) + 3 + len(payload) + 1
	total := opts.Length
	if total == 0 {
		total = minLen
	}
	if total < minLen {
		return nil, fmt.Errorf("frame: length %d shorter than minimum %d", total, minLen)
	}
	b := make([]byte, total)
	copy(b, SyncPrefix)
	b[7] = opts.DeviceID
	b[8] = ReplyCodeMarker
	b[9] = byte(code)
	b[10] = byte(code >> 8)
	for i := buildHeaderLen; i < total-len(payload)-4; i++ {
		b[i] = opts.Fill
	}
	copy(b[buildHeaderLen:], opts.Header)
	m := total - len(payload) - 4
	b[m] = 0x00
	b[m+1] = byte(len(payload))
	b[m+2] = 0x00
	copy(b[m+3:], payload)
	b[total-1] = Checksum(b)
	return b, nil
}

// MustBuild is Build for static fixtures; it panics on invalid input.
func MustBuild(code uint16, payload []byte, opts BuildOptions) []byte {
	b, err := Build(code, payload, opts)
	if err != nil {
		panic(err)
	}
	return b
}
