// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package enrich

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-lpc/spidec/spi"
)

// Kind is the category of a request.
type Kind uint8

const (
	KindFeature Kind = iota
	KindMarker
	KindBubble
	KindTabular
)

func (k Kind) String() string {
	switch k {
	case KindFeature:
		return "feature"
	case KindMarker:
		return "marker"
	case KindBubble:
		return "bubble"
	case KindTabular:
		return "tabular"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind parses the prefix of a request.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "feature":
		return KindFeature, true
	case "marker":
		return KindMarker, true
	case "bubble":
		return KindBubble, true
	case "tabular":
		return KindTabular, true
	}
	return 0, false
}

// Request is a message sent to the enrichment process.
type Request struct {
	Kind Kind

	Feature Kind // category queried by a feature request

	Packet spi.PacketID
	Index  uint64    // frame index
	Bits   int       // number of sampled bits (marker requests)
	Line   spi.Line  // data line (bubble requests)
	Frame  spi.Frame // bubble requests only carry the word of Line
}

func hex(v uint64) string { return strconv.FormatUint(v, 16) }

func packetField(pkt spi.PacketID) string {
	if pkt < 0 {
		return ""
	}
	return hex(uint64(pkt))
}

// Encode returns the wire form of the request, newline included.
func (req Request) Encode() string {
	var (
		f      = req.Frame
		fields []string
	)
	switch req.Kind {
	case KindFeature:
		fields = []string{req.Feature.String()}
	case KindMarker:
		fields = []string{
			packetField(req.Packet), hex(req.Index), hex(uint64(req.Bits)),
			hex(f.Start), hex(f.End), hex(uint64(f.Type)), hex(uint64(f.Flags)),
			hex(f.Data1), hex(f.Data2),
		}
	case KindBubble:
		fields = []string{
			packetField(req.Packet), hex(req.Index),
			hex(f.Start), hex(f.End), hex(uint64(f.Type)), hex(uint64(f.Flags)),
			req.Line.String(), hex(f.Word(req.Line)),
		}
	case KindTabular:
		fields = []string{
			packetField(req.Packet), hex(req.Index),
			hex(f.Start), hex(f.End), hex(uint64(f.Type)), hex(uint64(f.Flags)),
			hex(f.Data1), hex(f.Data2),
		}
	default:
		panic(fmt.Errorf("enrich: invalid request kind %v", req.Kind))
	}

	var o strings.Builder
	o.WriteString(req.Kind.String())
	for _, field := range fields {
		o.WriteByte(sep)
		o.WriteString(field)
	}
	o.WriteByte(eol)
	return o.String()
}

// ParseRequest decodes a request line, with or without its newline.
func ParseRequest(line string) (Request, error) {
	var req Request
	fields := strings.Split(strings.TrimRight(line, "\r\n"), string(sep))

	kind, ok := ParseKind(fields[0])
	if !ok {
		return req, fmt.Errorf("%w: unknown request %q", ErrProtocol, fields[0])
	}
	req.Kind = kind

	want := map[Kind]int{
		KindFeature: 2,
		KindMarker:  10,
		KindBubble:  9,
		KindTabular: 9,
	}[kind]
	if len(fields) != want {
		return req, fmt.Errorf("%w: %s request with %d fields (want=%d)",
			ErrProtocol, kind, len(fields), want,
		)
	}

	if kind == KindFeature {
		req.Feature, ok = ParseKind(fields[1])
		if !ok || req.Feature == KindFeature {
			return req, fmt.Errorf("%w: unknown feature %q", ErrProtocol, fields[1])
		}
		return req, nil
	}

	p := parser{fields: fields[1:]}
	req.Packet = p.packet()
	req.Index = p.u64()
	if kind == KindMarker {
		req.Bits = int(p.u64())
	}
	req.Frame.Start = p.u64()
	req.Frame.End = p.u64()
	req.Frame.Type = uint8(p.u64())
	req.Frame.Flags = uint8(p.u64())
	switch kind {
	case KindBubble:
		req.Line = p.line()
		v := p.u64()
		if req.Line == spi.MISO {
			req.Frame.Data2 = v
		} else {
			req.Frame.Data1 = v
		}
	default:
		req.Frame.Data1 = p.u64()
		req.Frame.Data2 = p.u64()
	}
	if p.err != nil {
		return req, fmt.Errorf("%w: invalid %s request: %v", ErrProtocol, kind, p.err)
	}
	return req, nil
}

type parser struct {
	fields []string
	err    error
}

func (p *parser) next() string {
	v := p.fields[0]
	p.fields = p.fields[1:]
	return v
}

func (p *parser) u64() uint64 {
	s := p.next()
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		p.err = err
	}
	return v
}

func (p *parser) packet() spi.PacketID {
	s := p.next()
	if s == "" || p.err != nil {
		return spi.NoPacket
	}
	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		p.err = err
		return spi.NoPacket
	}
	return spi.PacketID(v)
}

func (p *parser) line() spi.Line {
	s := p.next()
	if p.err != nil {
		return 0
	}
	l, ok := spi.ParseLine(s)
	if !ok {
		p.err = fmt.Errorf("invalid data line %q", s)
	}
	return l
}

// EncodeMarker returns the response line of a marker, newline excluded.
func EncodeMarker(m spi.BitMarker) string {
	return hex(m.Bit) + string(sep) + m.Line.String() + string(sep) + m.Type.String()
}

// markerLine is a marker response with its names unresolved.
type markerLine struct {
	bit  uint64
	line string
	typ  string
}

// parseMarker splits a marker response line into exactly 3 fields.
// Empty fields are skipped.
func parseMarker(s string) (markerLine, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == sep })
	if len(fields) != 3 {
		return markerLine{}, fmt.Errorf(
			"%w: marker response %q should hold 3 tab separated fields: bit, line, marker type",
			ErrProtocol, s,
		)
	}
	bit, err := strconv.ParseUint(fields[0], 16, 64)
	if err != nil {
		return markerLine{}, fmt.Errorf("%w: invalid marker bit %q", ErrProtocol, fields[0])
	}
	return markerLine{bit: bit, line: fields[1], typ: fields[2]}, nil
}
