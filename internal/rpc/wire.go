package rpc

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Message is a hand-encoded protobuf message of booking.v1.
type Message interface {
	Marshal() []byte
	Unmarshal(b []byte) error
}

// encoder skips zero values, matching proto3 implicit presence.
type encoder struct{ b []byte }

func (e *encoder) string(num protowire.Number, v string) {
	if v == "" {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendString(e.b, v)
}

func (e *encoder) strings(num protowire.Number, vs []string) {
	for _, v := range vs {
		e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
		e.b = protowire.AppendString(e.b, v)
	}
}

func (e *encoder) bool(num protowire.Number, v bool) {
	if !v {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, 1)
}

func (e *encoder) int64(num protowire.Number, v int64) {
	if v == 0 {
		return
	}
	e.b = protowire.AppendTag(e.b, num, protowire.VarintType)
	e.b = protowire.AppendVarint(e.b, uint64(v))
}

func (e *encoder) message(num protowire.Number, m Message) {
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, m.Marshal())
}

// timestamp writes t as a google.protobuf.Timestamp.
func (e *encoder) timestamp(num protowire.Number, t time.Time) {
	if t.IsZero() {
		return
	}
	ts := timestamppb.New(t)
	var inner encoder
	inner.int64(1, ts.Seconds)
	inner.int64(2, int64(ts.Nanos))
	e.b = protowire.AppendTag(e.b, num, protowire.BytesType)
	e.b = protowire.AppendBytes(e.b, inner.b)
}

type field struct {
	num protowire.Number
	typ protowire.Type
	raw []byte // BytesType payload
	u   uint64 // VarintType payload
}

func (f field) str() string {
	if f.typ != protowire.BytesType {
		return ""
	}
	return string(f.raw)
}

func (f field) boolean() bool { return f.typ == protowire.VarintType && f.u != 0 }

func (f field) time() (time.Time, error) {
	if f.typ != protowire.BytesType {
		return time.Time{}, nil
	}
	var ts timestamppb.Timestamp
	err := walk(f.raw, func(f field) error {
		switch f.num {
		case 1:
			ts.Seconds = int64(f.u)
		case 2:
			ts.Nanos = int32(f.u)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}
	return ts.AsTime(), nil
}

// walk calls fn for each varint and length-delimited field of b and skips
// the other wire types.
func walk(b []byte, fn func(field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if typ != protowire.BytesType && typ != protowire.VarintType {
			continue
		}
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}
