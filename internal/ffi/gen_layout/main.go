//go:build ignore

// Code generator for rtc.h/Go struct layout tests.
//
// Usage: go run main.go (requires libdatachannel headers in include/)
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
)

type fieldSpec struct {
	CName string
	GoName string
}

type structSpec struct {
	CName  string
	GoType string
	Fields []fieldSpec
}

var structSpecs = []structSpec{
	{
		CName:  "rtcConfiguration",
		GoType: "cConfiguration",
		Fields: []fieldSpec{
			{CName: "iceServers", GoName: "ICEServers"},
			{CName: "iceServersCount", GoName: "ICEServersCount"},
			{CName: "proxyServer", GoName: "ProxyServer"},
			{CName: "bindAddress", GoName: "BindAddress"},
			{CName: "certificateType", GoName: "CertificateType"},
			{CName: "iceTransportPolicy", GoName: "ICETransportPolicy"},
			{CName: "enableIceTcp", GoName: "EnableICETCP"},
			{CName: "enableIceUdpMux", GoName: "EnableICEUDPMux"},
			{CName: "disableAutoNegotiation", GoName: "DisableAutoNegotiation"},
			{CName: "forceMediaTransport", GoName: "ForceMediaTransport"},
			{CName: "portRangeBegin", GoName: "PortRangeBegin"},
			{CName: "portRangeEnd", GoName: "PortRangeEnd"},
			{CName: "mtu", GoName: "MTU"},
			{CName: "maxMessageSize", GoName: "MaxMessageSize"},
		},
	},
	{
		CName:  "rtcReliability",
		GoType: "cReliability",
		Fields: []fieldSpec{
			{CName: "unordered", GoName: "Unordered"},
			{CName: "unreliable", GoName: "Unreliable"},
			{CName: "maxPacketLifeTime", GoName: "MaxPacketLifeTime"},
			{CName: "maxRetransmits", GoName: "MaxRetransmits"},
		},
	},
	{
		CName:  "rtcDataChannelInit",
		GoType: "cDataChannelInit",
		Fields: []fieldSpec{
			{CName: "reliability", GoName: "Reliability"},
			{CName: "protocol", GoName: "Protocol"},
			{CName: "negotiated", GoName: "Negotiated"},
			{CName: "manualStream", GoName: "ManualStream"},
			{CName: "stream", GoName: "Stream"},
		},
	},
	{
		CName:  "rtcTrackInit",
		GoType: "cTrackInit",
		Fields: []fieldSpec{
			{CName: "direction", GoName: "Direction"},
			{CName: "codec", GoName: "Codec"},
			{CName: "payloadType", GoName: "PayloadType"},
			{CName: "ssrc", GoName: "SSRC"},
			{CName: "mid", GoName: "Mid"},
			{CName: "name", GoName: "Name"},
			{CName: "msid", GoName: "MsID"},
			{CName: "trackId", GoName: "TrackID"},
			{CName: "profile", GoName: "Profile"},
		},
	},
	{
		CName:  "rtcPacketizerInit",
		GoType: "cPacketizerInit",
		Fields: []fieldSpec{
			{CName: "ssrc", GoName: "SSRC"},
			{CName: "cname", GoName: "CName"},
			{CName: "payloadType", GoName: "PayloadType"},
			{CName: "clockRate", GoName: "ClockRate"},
			{CName: "sequenceNumber", GoName: "SequenceNumber"},
			{CName: "timestamp", GoName: "Timestamp"},
			{CName: "maxFragmentSize", GoName: "MaxFragmentSize"},
			{CName: "nalSeparator", GoName: "NalSeparator"},
			{CName: "obuPacketization", GoName: "ObuPacketization"},
			{CName: "playoutDelayId", GoName: "PlayoutDelayID"},
			{CName: "playoutDelayMin", GoName: "PlayoutDelayMin"},
			{CName: "playoutDelayMax", GoName: "PlayoutDelayMax"},
		},
	},
}

func main() {
	outDir := ".."
	if err := writeGoFile(filepath.Join(outDir, "struct_layout_cgo.go"), generateLayoutGo(structSpecs)); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating struct_layout_cgo.go: %v\n", err)
		os.Exit(1)
	}
	if err := writeGoFile(filepath.Join(outDir, "struct_layout_cgo_test.go"), generateLayoutTestGo(structSpecs)); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating struct_layout_cgo_test.go: %v\n", err)
		os.Exit(1)
	}
}

func generateLayoutGo(specs []structSpec) []byte {
	var buf bytes.Buffer

	buf.WriteString(`// Code generated by go generate; DO NOT EDIT.

//go:build ffigo_cgo

package ffi

/*
#cgo CFLAGS: -I${SRCDIR}/../../include
#include <rtc/rtc.h>
*/
import "C"

import "unsafe"

type cStructLayout struct {
	size    uintptr
	offsets map[string]uintptr
}

`)

	for _, spec := range specs {
		fmt.Fprintf(&buf, "func %s() cStructLayout {\n", layoutFuncName(spec.CName))
		fmt.Fprintf(&buf, "\tvar cCfg C.%s\n", spec.CName)
		buf.WriteString("\treturn cStructLayout{\n")
		buf.WriteString("\t\tsize:    unsafe.Sizeof(cCfg),\n")
		buf.WriteString("\t\toffsets: map[string]uintptr{\n")
		for _, field := range spec.Fields {
			fmt.Fprintf(&buf, "\t\t\t%q: unsafe.Offsetof(cCfg.%s),\n", field.GoName, cgoFieldName(field.CName))
		}
		buf.WriteString("\t\t},\n")
		buf.WriteString("\t}\n")
		buf.WriteString("}\n\n")
	}

	return buf.Bytes()
}

func generateLayoutTestGo(specs []structSpec) []byte {
	var buf bytes.Buffer

	buf.WriteString(`// Code generated by go generate; DO NOT EDIT.

//go:build ffigo_cgo

package ffi

import (
	"testing"
	"unsafe"
)

`)

	buf.WriteString("// TestStructLayoutCgo compares Go struct layouts against rtc.h.\n")
	buf.WriteString("func TestStructLayoutCgo(t *testing.T) {\n")
	for _, spec := range specs {
		fmt.Fprintf(&buf, "\tt.Run(%q, func(t *testing.T) {\n", spec.CName)
		fmt.Fprintf(&buf, "\t\tvar goCfg %s\n", spec.GoType)
		fmt.Fprintf(&buf, "\t\tlayout := %s()\n", layoutFuncName(spec.CName))
		fmt.Fprintf(&buf, "\t\tcheckSizeEqual(t, %q, unsafe.Sizeof(goCfg), layout.size)\n", spec.CName)
		for _, field := range spec.Fields {
			fmt.Fprintf(&buf, "\t\tcheckOffsetEqual(t, %q, unsafe.Offsetof(goCfg.%s), layout.offsets[%q])\n",
				fmt.Sprintf("%s.%s", spec.CName, field.GoName), field.GoName, field.GoName)
		}
		buf.WriteString("\t})\n\n")
	}
	buf.WriteString("}\n\n")
	buf.WriteString("func checkSizeEqual(t *testing.T, name string, goSize, cSize uintptr) {\n")
	buf.WriteString("\tt.Helper()\n")
	buf.WriteString("\tif goSize != cSize {\n")
	buf.WriteString("\t\tt.Errorf(\"%s size = %d, want %d\", name, goSize, cSize)\n")
	buf.WriteString("\t}\n")
	buf.WriteString("}\n\n")
	buf.WriteString("func checkOffsetEqual(t *testing.T, name string, goOffset, cOffset uintptr) {\n")
	buf.WriteString("\tt.Helper()\n")
	buf.WriteString("\tif goOffset != cOffset {\n")
	buf.WriteString("\t\tt.Errorf(\"%s offset = %d, want %d\", name, goOffset, cOffset)\n")
	buf.WriteString("\t}\n")
	buf.WriteString("}\n")

	return buf.Bytes()
}

func layoutFuncName(cName string) string {
	return "c" + cName + "Layout"
}

func cgoFieldName(cName string) string {
	if cName == "type" {
		return "_type"
	}
	return cName
}

func writeGoFile(path string, data []byte) error {
	formatted, err := format.Source(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, formatted, 0644)
}
