package main

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/danmuck/edgexfer/internal/protocol/frame"
	"github.com/danmuck/edgexfer/internal/testutil/testlog"
)

func capture(t *testing.T, frames ...frame.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		if err := frame.WriteFrame(&buf, f, frame.DefaultLimits()); err != nil {
			t.Fatalf("write %s: %v", f.Kind(), err)
		}
	}
	return buf.Bytes()
}

func TestDumpSummarizesCapture(t *testing.T) {
	testlog.Start(t)
	wire := capture(t,
		frame.Start(1, "a.bin", true, 3),
		frame.Chunk(1, 0, []byte("abc")),
		frame.End(1),
		frame.TransmissionEnd(),
	)
	var lines []string
	s, err := dump(bytes.NewReader(wire), frame.DefaultLimits(), func(f frame.Frame) {
		lines = append(lines, describe(f))
	})
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if s.Frames != 4 || s.PayloadBytes != 3 || s.ByKind[frame.KindChunk] != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if !strings.Contains(lines[0], `name="a.bin"`) || lines[3] != "transmission_end" {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestDumpTruncatedCapture(t *testing.T) {
	testlog.Start(t)
	wire := capture(t, frame.Start(1, "a.bin", true, 3), frame.Chunk(1, 0, []byte("abc")))
	s, err := dump(bytes.NewReader(wire[:len(wire)-1]), frame.DefaultLimits(), nil)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
	if s.Frames != 1 {
		t.Fatalf("frames=%d", s.Frames)
	}
}

func TestDumpUnknownTag(t *testing.T) {
	testlog.Start(t)
	wire := append([]byte{0x00, 0x09}, capture(t, frame.Ack())...)
	s, err := dump(bytes.NewReader(wire), frame.DefaultLimits(), nil)
	if err != nil {
		t.Fatalf("dump: %v", err)
	}
	if s.ByKind[frame.KindError] != 1 || s.ByKind[frame.KindAck] != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
