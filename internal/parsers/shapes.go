package parsers

import (
	"encoding/binary"
	"fmt"
	"strings"
)

var (
	videoSources = map[byte]string{
		0x01: "HDMI1",
		0x02: "HDMI2",
		0x03: "HDMI3",
		0x04: "HDMI4",
		0x05: "DP",
		0x06: "USB",
		0x07: "Android",
		0x08: "LAN",
	}
	displayModes = map[byte]string{
		0x00: "Full",
		0x01: "Split-2",
		0x02: "Split-4",
		0x03: "PIP",
	}
	colorTemps = map[byte]string{
		0x00: "Standard",
		0x01: "Warm",
		0x02: "Cool",
		0x03: "User",
	}
	sceneModes = map[byte]string{
		0x00: "Standard",
		0x01: "Meeting",
		0x02: "Cinema",
		0x03: "Energy saving",
		0x04: "Custom",
	}
	monitoringStatuses = map[uint16]string{
		0x0001: "OK",
		0x0002: "NO_SIGNAL",
	}
)

const (
	screenAwake    = 0x01
	screenBlackout = 0x02

	maxMonitorPorts    = 32
	maxMonitorCabinets = 4096
	monitorFixedLen    = 6
)

func parseRange(p []byte, min, max int) Result {
	if len(p) != 1 {
		return lengthMismatch("range", 1, len(p))
	}
	v := int(p[0])
	res := Result{
		Value:   map[string]any{"value": v},
		Meaning: fmt.Sprintf("value=%d", v),
		Number:  intPtr(int64(v)),
	}
	if v < min || v > max {
		res.Note = fmt.Sprintf("value %d outside [%d,%d]", v, min, max)
		return res
	}
	res.OK = true
	return res
}

// enumByte picks the enumerated byte: a lone byte, or the second byte when
// the first is a zero placeholder.
func enumByte(p []byte) (byte, bool) {
	switch {
	case len(p) == 1:
		return p[0], true
	case len(p) == 2 && p[0] == 0x00:
		return p[1], true
	default:
		return 0, false
	}
}

func parseEnum(p []byte, field string, table map[byte]string) Result {
	b, ok := enumByte(p)
	if !ok {
		return Result{Note: fmt.Sprintf("%s expects 1 byte or 00+1 byte, got %d byte(s)", field, len(p))}
	}
	label, known := table[b]
	res := Result{
		Value:  map[string]any{field: int(b)},
		Number: intPtr(int64(b)),
	}
	if !known {
		res.Meaning = fmt.Sprintf("%s=unknown(0x%02X)", field, b)
		res.Note = fmt.Sprintf("unknown %s code 0x%02X", field, b)
		return res
	}
	res.OK = true
	res.Value[field+"Label"] = label
	res.Meaning = fmt.Sprintf("%s=%s", field, label)
	return res
}

func parseVideoCombo(p []byte) Result {
	if len(p) != 7 {
		return lengthMismatch("video combo", 7, len(p))
	}
	value := map[string]any{}
	var problems []string
	var meaning []string

	level := func(name string, b byte) {
		value[name] = int(b)
		meaning = append(meaning, fmt.Sprintf("%s=%d", name, b))
		if b > 100 {
			problems = append(problems, fmt.Sprintf("%s %d outside [0,100]", name, b))
		}
	}
	enum := func(name string, b byte, table map[byte]string) {
		value[name] = int(b)
		label, ok := table[b]
		if !ok {
			meaning = append(meaning, fmt.Sprintf("%s=unknown(0x%02X)", name, b))
			problems = append(problems, fmt.Sprintf("unknown %s code 0x%02X", name, b))
			return
		}
		value[name+"Label"] = label
		meaning = append(meaning, fmt.Sprintf("%s=%s", name, label))
	}

	level("brightness", p[0])
	enum("colorTemp", p[1], colorTemps)
	enum("displayMode", p[2], displayModes)
	enum("source", p[3], videoSources)
	level("volume", p[4])
	level("contrast", p[5])
	enum("sceneMode", p[6], sceneModes)

	res := Result{OK: len(problems) == 0, Value: value, Meaning: strings.Join(meaning, " ")}
	if len(problems) > 0 {
		res.Note = strings.Join(problems, "; ")
	}
	return res
}

func parseHDMIBitmap(p []byte) Result {
	if len(p) != 4 {
		return lengthMismatch("hdmi bitmap", 4, len(p))
	}
	value := map[string]any{}
	active := []string{}
	var problems []string
	for i, b := range p {
		port := fmt.Sprintf("hdmi%d", i+1)
		value[port] = int(b)
		switch b {
		case 0:
		case 1:
			active = append(active, strings.ToUpper(port))
		default:
			problems = append(problems, fmt.Sprintf("%s flag 0x%02X is not 0 or 1", port, b))
		}
	}
	value["activeInputs"] = active
	res := Result{
		OK:      len(problems) == 0,
		Value:   value,
		Meaning: "active inputs: " + joinOrNone(active),
	}
	if len(problems) > 0 {
		res.Note = strings.Join(problems, "; ")
	}
	return res
}

func parseMonitoring(p []byte) Result {
	if len(p) < monitorFixedLen {
		return Result{Note: fmt.Sprintf("monitoring payload needs at least %d bytes, got %d", monitorFixedLen, len(p))}
	}
	status := binary.LittleEndian.Uint16(p[0:2])
	source := p[2]
	ports := int(p[3])
	cabinets := int(binary.LittleEndian.Uint16(p[4:6]))

	value := map[string]any{
		"status":       int(status),
		"dataSource":   int(source),
		"portCount":    ports,
		"cabinetCount": cabinets,
	}
	var problems []string
	label, known := monitoringStatuses[status]
	if known {
		value["statusLabel"] = label
	} else {
		label = fmt.Sprintf("unknown(0x%04X)", status)
		problems = append(problems, fmt.Sprintf("unknown status word 0x%04X", status))
	}
	if ports > maxMonitorPorts {
		problems = append(problems, fmt.Sprintf("port count %d exceeds %d", ports, maxMonitorPorts))
	}
	if cabinets > maxMonitorCabinets {
		problems = append(problems, fmt.Sprintf("cabinet count %d exceeds %d", cabinets, maxMonitorCabinets))
	}

	var notes []string
	declared := monitorFixedLen + ports*2
	perPort := []int{}
	for i := 0; i < ports; i++ {
		off := monitorFixedLen + i*2
		if off+2 > len(p) {
			break
		}
		perPort = append(perPort, int(binary.LittleEndian.Uint16(p[off:off+2])))
	}
	value["ports"] = perPort
	if declared > len(p) {
		value["truncated"] = true
		notes = append(notes, fmt.Sprintf("declared structure needs %d bytes, payload has %d", declared, len(p)))
	}

	res := Result{
		OK:      len(problems) == 0,
		Value:   value,
		Meaning: fmt.Sprintf("status=%s ports=%d cabinets=%d", label, ports, cabinets),
	}
	notes = append(problems, notes...)
	if len(notes) > 0 {
		res.Note = strings.Join(notes, "; ")
	}
	return res
}

func parseUptime(p []byte) Result {
	if len(p) != 4 {
		return lengthMismatch("uptime", 4, len(p))
	}
	minutes := binary.LittleEndian.Uint32(p)
	days := minutes / (24 * 60)
	hours := (minutes / 60) % 24
	mins := minutes % 60
	return Result{
		OK:      true,
		Value:   map[string]any{"minutes": int64(minutes)},
		Meaning: fmt.Sprintf("uptime %dd %dh %dm", days, hours, mins),
		Number:  intPtr(int64(minutes)),
	}
}

func parseScreenState(p []byte) Result {
	if len(p) != 1 {
		return lengthMismatch("screen state", 1, len(p))
	}
	res := Result{Value: map[string]any{"state": int(p[0])}, Number: intPtr(int64(p[0]))}
	switch p[0] {
	case screenAwake:
		res.OK = true
		res.Value["stateLabel"] = "awake"
		res.Meaning = "screen awake"
	case screenBlackout:
		res.OK = true
		res.Value["stateLabel"] = "blackout"
		res.Meaning = "screen blackout"
	default:
		res.Meaning = fmt.Sprintf("screen state unknown(0x%02X)", p[0])
		res.Note = res.Meaning
	}
	return res
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
