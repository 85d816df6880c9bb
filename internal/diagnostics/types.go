package diagnostics

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Kind is the closed set of supported diagnostics.
type Kind string

const (
	KindPing      Kind = "ping"
	KindMTR       Kind = "mtr"
	KindNextTrace Kind = "nexttrace"
	KindIperf3    Kind = "iperf3"
)

// Kinds lists the supported diagnostics in display order.
func Kinds() []Kind {
	return []Kind{KindPing, KindMTR, KindNextTrace, KindIperf3}
}

// ParseKind returns the Kind for raw, or ErrUnsupportedType.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(raw); k {
	case KindPing, KindMTR, KindNextTrace, KindIperf3:
		return k, nil
	default:
		return "", ErrUnsupportedType
	}
}

const (
	ProtocolTCP = "tcp"
	ProtocolUDP = "udp"
)

// Number is a loosely typed numeric request field. JSON numbers and numeric
// strings are accepted; anything else leaves the field unset so the caller's
// default applies.
type Number struct {
	value float64
	set   bool
}

// NumberOf returns a set Number.
func NumberOf(v float64) Number {
	return Number{value: v, set: true}
}

// ParseNumber coerces raw text the same way a JSON string field is coerced.
// Values out of float64 range stay set as ±Inf so Clamp bounds them.
func ParseNumber(raw string) Number {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return Number{}
	}
	if math.IsNaN(v) {
		return Number{}
	}
	return Number{value: v, set: true}
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*n = ParseNumber(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		*n = ParseNumber(string(data))
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.set {
		return []byte("null"), nil
	}
	if math.IsInf(n.value, 0) {
		return json.Marshal(math.Copysign(math.MaxFloat64, n.value))
	}
	return json.Marshal(n.value)
}

// Protocol is a loosely typed protocol field. Non-string JSON values leave
// it empty, which resolves to tcp.
type Protocol string

func (p *Protocol) UnmarshalJSON(data []byte) error {
	*p = ""
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	*p = Protocol(s)
	return nil
}

// Clamp bounds n to [lo, hi] and truncates any fraction. An unset or zero
// value yields def.
func (n Number) Clamp(def, lo, hi int) int {
	if !n.set || n.value == 0 {
		return def
	}
	v := math.Max(float64(lo), math.Min(n.value, float64(hi)))
	return int(math.Trunc(v))
}

// Request is one inbound diagnostic request. Target is untrusted.
type Request struct {
	Type     string   `json:"type"`
	Target   string   `json:"target"`
	Count    Number   `json:"count"`
	Port     Number   `json:"port"`
	Duration Number   `json:"duration"`
	Protocol Protocol `json:"protocol"`
}

// Result carries trimmed tool output and the parameters actually used.
// Port, Duration and Protocol are set only for iperf3.
type Result struct {
	Type     Kind   `json:"type"`
	Target   string `json:"target"`
	Count    int    `json:"count"`
	Output   string `json:"output"`
	Warnings string `json:"warnings"`
	Port     int    `json:"port,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Protocol string `json:"protocol,omitempty"`
}
