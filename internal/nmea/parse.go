package nmea

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Sentence is one checksum-verified NMEA 0183 sentence.
type Sentence struct {
	Talker string
	Type   string
	// Fields is the comma-split payload (excluding $ and checksum). Fields[0]
	// is the address field.
	Fields []string
}

// Field returns field i trimmed, or "" when the sentence is too short.
func (s Sentence) Field(i int) string {
	if i < 0 || i >= len(s.Fields) {
		return ""
	}
	return strings.TrimSpace(s.Fields[i])
}

// Parse validates the checksum of line and splits it into fields. Both '$'
// and '!' start delimiters are accepted.
func Parse(line string) (Sentence, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") && !strings.HasPrefix(line, "!") {
		return Sentence{}, fmt.Errorf("nmea: missing '$'")
	}
	star := strings.LastIndexByte(line, '*')
	if star == -1 {
		return Sentence{}, fmt.Errorf("nmea: missing checksum")
	}
	payload := line[1:star]
	ck := strings.TrimSpace(line[star+1:])
	if len(ck) < 2 {
		return Sentence{}, fmt.Errorf("nmea: short checksum")
	}
	want, err := hex.DecodeString(ck[:2])
	if err != nil || len(want) != 1 {
		return Sentence{}, fmt.Errorf("nmea: bad checksum")
	}
	if Checksum(payload) != want[0] {
		return Sentence{}, fmt.Errorf("nmea: checksum mismatch")
	}

	parts := strings.Split(payload, ",")
	addr := strings.ToUpper(strings.TrimSpace(parts[0]))
	if len(addr) < 3 {
		return Sentence{}, fmt.Errorf("nmea: short type")
	}
	s := Sentence{Type: addr[len(addr)-3:], Fields: parts}
	// Proprietary sentences (P...) carry a manufacturer code, not a talker.
	if len(addr) == 5 && addr[0] != 'P' {
		s.Talker = addr[:2]
	}
	return s, nil
}

// Checksum is the XOR of every byte of payload.
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Format frames payload as "$payload*CK" without a line terminator.
func Format(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, Checksum(payload))
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
