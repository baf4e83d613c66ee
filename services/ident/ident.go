// services/ident/ident.go
package ident

import (
	"strings"

	"propcode-go/types"
	"propcode-go/x/conv"
)

// Hardware descriptor bitfields in the OTP version word:
//
//	[31:24] model  [23:20] audio  [19:17] charger
//	[16:14] sensor [13]    batProt [12:10] cpu
const (
	modelShift   = 24
	audioShift   = 20
	audioMask    = 0x00F00000
	chargerShift = 17
	chargerMask  = 0x000E0000
	sensorShift  = 14
	sensorMask   = 0x0001C000
	batProtMask  = 0x00002000
	cpuShift     = 10
	cpuMask      = 0x00001C00
)

// blankWord is what erased OTP reads back; a blank descriptor means the
// board was never provisioned.
const blankWord = 0xFFFFFFFF

// Decode expands the raw OTP words into the ident document. Unknown field
// values decode to explicit "UNKNOWN"/zero markers rather than guesses.
func Decode(serial, version uint32, hex uint64) types.IdentInfo {
	info := types.IdentInfo{
		Serial: serial,
		Hex:    conv.U64HexString(hex),
	}

	model := byte(version >> modelShift)
	short := [5]byte{'N', ' ', 'N', 'N', 'N'}
	switch model {
	case 0:
		info.Model, info.Storage = "UltraProffie Zero", "FLASH"
		short[0], short[1] = 'P', 'Z'
	case 1:
		info.Model, info.Storage = "UltraProffie Lite", "SD"
		short[0], short[1] = 'P', 'L'
	case 2:
		info.Model, info.Storage = "SaberProp", "SD"
		short[0], short[1] = 'S', 'P'
	case 3:
		info.Model, info.Storage = "SaberProp Lite", "SD"
		short[0], short[1] = 'S', 'L'
	default:
		info.Model, info.Storage = "UNKNOWN", "UNK"
	}

	switch (version & audioMask) >> audioShift {
	case 0:
		info.AudioWatts = 2
		short[2] = '2'
	case 1:
		info.AudioWatts = 3
		short[2] = '3'
	}

	switch (version & chargerMask) >> chargerShift {
	case 0:
		info.Charger = "NONE"
		short[3] = '0'
	case 1:
		info.Charger = "1A"
		short[3] = '1'
	default:
		info.Charger = "UNKNOWN"
	}

	if (version&sensorMask)>>sensorShift == 0 {
		info.Sensor = "LSM"
		short[4] = 'L'
	} else {
		info.Sensor = "UNKNOWN"
	}

	info.BatProtect = version&batProtMask != 0

	if (version&cpuMask)>>cpuShift == 0 {
		info.CPU = "RP2040"
	} else {
		info.CPU = "UNKNOWN"
	}

	info.Short = string(short[:])
	return info
}

// Provisioned reports whether the OTP words carry a real descriptor.
func Provisioned(serial, version uint32) bool {
	return serial != blankWord || version != blankWord
}

// Describe renders the multi-line hwid console output.
func Describe(info types.IdentInfo) string {
	var b strings.Builder
	b.WriteString("ID: ")
	b.WriteString(info.Model)
	b.WriteString(" ")
	b.WriteString(info.Short)
	b.WriteString("\nAudio: ")
	b.WriteString(conv.ItoaString(int64(info.AudioWatts)))
	b.WriteString("W\nCharger: ")
	b.WriteString(info.Charger)
	b.WriteString("\nSensor: ")
	b.WriteString(info.Sensor)
	b.WriteString("\nBattery protection: ")
	if info.BatProtect {
		b.WriteString("On")
	} else {
		b.WriteString("Off")
	}
	b.WriteString("\nStorage: ")
	b.WriteString(info.Storage)
	b.WriteString("\nCPU: ")
	b.WriteString(info.CPU)
	b.WriteString("\nSerialNumber: ")
	b.WriteString(conv.ItoaString(int64(info.Serial)))
	b.WriteString("\nHexString: ")
	b.WriteString(info.Hex)
	return b.String()
}
