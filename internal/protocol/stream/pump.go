package stream

import (
	"context"
	"errors"
	"io"
)

const DefaultBatchSize = 32 * 1024

// Pump reads r in batches and forwards each batch, unparsed, on out. out is
// closed when Pump returns. io.EOF ends the pump cleanly with a nil error.
func Pump(ctx context.Context, r io.Reader, out chan<- []byte, batchSize int) error {
	defer close(out)
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	for {
		buf := make([]byte, batchSize)
		n, err := r.Read(buf)
		if n > 0 {
			select {
			case out <- buf[:n]:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}
