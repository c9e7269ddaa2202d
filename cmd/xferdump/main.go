package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/edgexfer/internal/observability"
	"github.com/danmuck/edgexfer/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

// summary tallies a dumped capture.
type summary struct {
	Frames       int
	PayloadBytes int
	ByKind       map[frame.Kind]int
}

func main() {
	input := flag.String("input", "-", "captured frame stream (- for stdin)")
	maxChunk := flag.Uint("max-chunk", uint(frame.DefaultLimits().MaxPayloadBytes), "largest chunk payload accepted")
	flag.Parse()

	observability.InitLogger("xferdump")
	src := io.Reader(os.Stdin)
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "xferdump: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		src = f
	}

	s, err := dump(src, frame.Limits{MaxPayloadBytes: uint32(*maxChunk)}, func(f frame.Frame) {
		log.Info().Msg(describe(f))
	})
	log.Info().Msgf("xferdump frames=%d payload_bytes=%d", s.Frames, s.PayloadBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xferdump: %v\n", err)
		os.Exit(1)
	}
}

// dump reads frames from r until a clean end of stream. A capture cut
// mid-frame is reported as io.ErrUnexpectedEOF.
func dump(r io.Reader, limits frame.Limits, each func(frame.Frame)) (summary, error) {
	s := summary{ByKind: make(map[frame.Kind]int)}
	for {
		f, err := frame.ReadFrame(r, limits)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s, nil
			}
			return s, err
		}
		s.Frames++
		s.PayloadBytes += len(f.Payload)
		s.ByKind[f.Kind()]++
		if each != nil {
			each(f)
		}
	}
}

func describe(f frame.Frame) string {
	switch f.Kind() {
	case frame.KindStart:
		return fmt.Sprintf("start id=%d name=%q definite=%v length=%d", f.FileID, f.Name, f.Definite, f.Length)
	case frame.KindChunk:
		return fmt.Sprintf("chunk id=%d offset=%d len=%d", f.FileID, f.Offset, len(f.Payload))
	case frame.KindEnd:
		return fmt.Sprintf("end id=%d", f.FileID)
	case frame.KindError:
		return fmt.Sprintf("error tag=%d", f.Tag)
	default:
		return f.Kind().String()
	}
}
