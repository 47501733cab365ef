package cases

import (
	"strings"

	"github.com/daveleo/exview-aio-protocol-tool/internal/common"
	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

var (
	modeChangeWords = []string{"source", "input", "display mode", "layout", "split", "scene", "pip"}
	powerWords      = []string{"power", "standby", "sleep", "reboot", "restart", "shutdown"}
	disruptiveWords = []string{"blackout", "factory", "reset"}
	setPrefixes     = []string{"set", "adjust", "switch"}
)

// IsSet reports whether a row mutates device state: a 0xC2xx set code, or a
// description that starts with set, adjust or switch.
func IsSet(setCode, description string) bool {
	if v, err := frame.ParseCode(setCode); err == nil && v>>8 == 0xC2 {
		return true
	}
	words := strings.Fields(common.NormalizeText(description))
	if len(words) == 0 {
		return false
	}
	for _, p := range setPrefixes {
		if words[0] == p {
			return true
		}
	}
	return false
}

// IsModeChange reports set commands that change source, layout or display
// mode, which need the longer settle delay.
func IsModeChange(isSet bool, text string) bool {
	return isSet && common.HasPhrase(common.NormalizeText(text), modeChangeWords)
}

// IsPower reports set commands that change power or sleep state.
func IsPower(isSet bool, text string) bool {
	return isSet && common.HasPhrase(common.NormalizeText(text), powerWords)
}

// IsDisruptive reports commands that need an operator in the loop.
func IsDisruptive(isSet bool, text string) bool {
	return IsPower(isSet, text) || (isSet && common.HasPhrase(common.NormalizeText(text), disruptiveWords))
}

// IsSerialOnly reports rows that cannot be exercised over UDP.
func IsSerialOnly(row truth.Row, request []byte) bool {
	if !frame.HasSyncPrefix(request) {
		return true
	}
	return mentionsSerial(row.Transport) || mentionsSerial(row.Remarks)
}

func mentionsSerial(text string) bool {
	for _, w := range strings.Fields(common.NormalizeText(text)) {
		switch {
		case w == "serial" || w == "rs232" || w == "rs485" || w == "uart":
			return true
		case strings.HasPrefix(w, "com") && strings.TrimLeft(w[3:], "0123456789") == "":
			return true
		}
	}
	return false
}
