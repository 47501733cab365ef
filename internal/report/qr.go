package report

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const qrScheme = "exview-cert"

var ErrNoDigest = errors.New("report: record digest has no hex digits")

// RunQR renders a PNG QR code of "exview-cert:<runID>:<DIGEST>", so a
// printed certificate can be matched back to its record set.
func RunQR(runID, digest string, size int) ([]byte, error) {
	payload, err := qrPayload(runID, digest)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 128
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}

func qrPayload(runID, digest string) (string, error) {
	hexDigits := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'F':
			return r
		case r >= 'a' && r <= 'f':
			return r - 'a' + 'A'
		}
		return -1
	}, digest)
	if hexDigits == "" {
		return "", ErrNoDigest
	}
	if runID = strings.TrimSpace(runID); runID == "" {
		runID = "run"
	}
	return fmt.Sprintf("%s:%s:%s", qrScheme, runID, hexDigits), nil
}
