// Package truthtest provides a complete, checksum-valid truth dataset for
// tests of the packages that consume one.
package truthtest

import (
	"fmt"

	"github.com/daveleo/exview-aio-protocol-tool/internal/frame"
	"github.com/daveleo/exview-aio-protocol-tool/internal/truth"
)

// Header is the header byte used by every fixture frame. With a 40-byte
// frame it places a one-byte payload at offset 38.
var Header = []byte{0x3E}

// Frame builds a 40-byte fixture frame.
func Frame(code uint16, payload ...byte) []byte {
	return frame.MustBuild(code, payload, frame.BuildOptions{Length: 40, Header: Header})
}

func hexOf(code uint16, payload ...byte) string {
	return frame.Hex(Frame(code, payload...))
}

type numeric struct {
	set, query uint16
	name       string
	value      byte
}

var numerics = []numeric{
	{0xC201, 0xC101, "brightness", 60},
	{0xC202, 0xC102, "contrast", 50},
	{0xC203, 0xC103, "volume", 30},
	{0xC204, 0xC104, "saturation", 50},
	{0xC205, 0xC105, "sharpness", 40},
	{0xC206, 0xC106, "hue", 50},
	{0xC207, 0xC107, "backlight", 80},
	{0xC208, 0xC108, "noise reduction", 10},
}

func code(v uint16) string {
	return fmt.Sprintf("%04X", v)
}

// Rows returns the fixture rows in dataset order.
func Rows() []truth.Row {
	var rows []truth.Row
	for _, n := range numerics {
		rows = append(rows, truth.Row{
			CommandKey:  "set_" + key(n.name),
			Category:    "Picture",
			Description: "Set " + n.name,
			RequestHex:  hexOf(n.set, n.value),
			ReplyHex:    hexOf(n.set, n.value),
			SetCode:     code(n.set),
			ReplyCode:   code(n.set),
		})
	}
	for _, n := range numerics {
		rows = append(rows, truth.Row{
			CommandKey:  "query_" + key(n.name),
			Category:    "Picture",
			Description: "Query " + n.name,
			RequestHex:  hexOf(n.query),
			ReplyHex:    hexOf(n.query, n.value),
			ReplyCode:   code(n.query),
		})
	}
	rows = append(rows,
		truth.Row{CommandKey: "set_volume_mute", Category: "Audio", Description: "Set volume to zero", RequestHex: hexOf(0xC203, 0), ReplyHex: hexOf(0xC203, 0), SetCode: "C203", ReplyCode: "C203"},
		truth.Row{CommandKey: "query_video_combo", Category: "Status", Description: "Query video settings", RequestHex: hexOf(0xC110), ReplyHex: hexOf(0xC110, 60, 0x01, 0x00, 0x02, 30, 50, 0x02), ReplyCode: "C110"},
		truth.Row{CommandKey: "query_hdmi", Category: "Status", Description: "Query HDMI presence", RequestHex: hexOf(0xC111), ReplyHex: hexOf(0xC111, 0x01, 0x00, 0x01, 0x00), ReplyCode: "C111"},
		truth.Row{CommandKey: "query_source", Category: "Input", Description: "Query video source", RequestHex: hexOf(0xC112), ReplyHex: hexOf(0xC112, 0x00, 0x02), ReplyCode: "C112"},
		truth.Row{CommandKey: "query_display_mode", Category: "Display", Description: "Query display mode", RequestHex: hexOf(0xC113), ReplyHex: hexOf(0xC113, 0x00), ReplyCode: "C113"},
		truth.Row{CommandKey: "query_color_temp", Category: "Picture", Description: "Query colour temperature", RequestHex: hexOf(0xC114), ReplyHex: hexOf(0xC114, 0x01), ReplyCode: "C114"},
		truth.Row{CommandKey: "query_monitoring", Category: "Monitoring", Description: "Query monitoring status", RequestHex: hexOf(0xC131), ReplyHex: hexOf(0xC131, 0x01, 0x00, 0x01, 0x02, 0x08, 0x00, 0x04, 0x00, 0x04, 0x00), ReplyCode: "C131"},
		truth.Row{CommandKey: "query_uptime", Category: "Monitoring", Description: "Query uptime", RequestHex: hexOf(0xC132), ReplyHex: hexOf(0xC132, 0x3D, 0x06, 0x00, 0x00), ReplyCode: "C132"},
		truth.Row{CommandKey: "query_screen", Category: "Display", Description: "Query screen state", RequestHex: hexOf(0xC133), ReplyHex: hexOf(0xC133, 0x01), ReplyCode: "C133"},
		truth.Row{CommandKey: "query_scene", Category: "Picture", Description: "Query scene mode", RequestHex: hexOf(0xC1F0), ReplyHex: hexOf(0xC1F0, 0x02), ReplyCode: "C1F0"},
		truth.Row{CommandKey: "set_source_hdmi2", Category: "Input", Description: "Switch source to HDMI2", RequestHex: hexOf(0xC210, 0x02), ReplyHex: hexOf(0xC210, 0x01, 0x00), SetCode: "C210", ReplyCode: "C210"},
		truth.Row{CommandKey: "set_layout_split", Category: "Display", Description: "Set split layout", RequestHex: hexOf(0xC211, 0x01), ReplyHex: hexOf(0xC211, 0x01, 0x00), SetCode: "C211", ReplyCode: "C211", Remarks: "no reply while split-screen is active"},
		truth.Row{CommandKey: "set_standby", Category: "Power", Description: "Set standby", RequestHex: hexOf(0xC220, 0x01), ReplyHex: hexOf(0xC220, 0x01, 0x00), SetCode: "C220", ReplyCode: "C220"},
		truth.Row{CommandKey: "set_reboot", Category: "Power", Description: "Set reboot", RequestHex: hexOf(0xC222), SetCode: "C222", ReplyCode: "C222"},
		truth.Row{CommandKey: "heartbeat", Category: "System", Description: "Heartbeat", RequestHex: hexOf(0xC230), ReplyHex: hexOf(0xC230, 0x01, 0x00), SetCode: "C230", ReplyCode: "C230"},
		truth.Row{CommandKey: "set_baud", Category: "System", Description: "Set baud rate", RequestHex: hexOf(0xC240, 0x04), SetCode: "C240", Transport: "RS-232", Remarks: "serial console only"},
	)
	return rows
}

func key(name string) string {
	out := []byte(name)
	for i, c := range out {
		if c == ' ' {
			out[i] = '_'
		}
	}
	return string(out)
}

// Dataset returns Rows as a validated dataset.
func Dataset() *truth.Dataset {
	ds, err := truth.NewDataset("exview-aio", Rows()...)
	if err != nil {
		panic(err)
	}
	return ds
}

// Counts of fixture rows by kind, for tests that assert suite sizes.
const (
	NumericCodes   = 8
	NonNumericRows = 8 + 9 + 6
	DisruptiveRows = 2
	SuiteCases     = NumericCodes*101 + NonNumericRows
)
