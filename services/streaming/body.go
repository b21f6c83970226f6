package streaming

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/time/rate"

	"mediastream/internal/httprange"
	"mediastream/internal/media"
)

// body delivers exactly window.Length() bytes or fails with a StreamIOError.
// Close releases the store handle exactly once.
type body struct {
	ctx     context.Context
	rc      io.ReadCloser
	path    string
	window  httprange.Window
	limiter *rate.Limiter

	read int64

	once     sync.Once
	closeErr error
	onRead   func(n int)
	onClose  func(read int64)
}

func (b *body) Read(p []byte) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}

	remaining := b.window.Length() - b.read
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}

	if b.limiter != nil {
		if burst := b.limiter.Burst(); len(p) > burst {
			p = p[:burst]
		}
		if err := b.limiter.WaitN(b.ctx, len(p)); err != nil {
			if ctxErr := b.ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}
			return 0, err
		}
	}

	n, err := b.rc.Read(p)
	if n > 0 {
		b.read += int64(n)
		if b.onRead != nil {
			b.onRead(n)
		}
	}

	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF):
		if b.read < b.window.Length() {
			return n, b.ioError(io.ErrUnexpectedEOF)
		}
		return n, io.EOF
	default:
		if ctxErr := b.ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, b.ioError(err)
	}
}

func (b *body) Close() error {
	b.once.Do(func() {
		b.closeErr = b.rc.Close()
		if b.onClose != nil {
			b.onClose(b.read)
		}
	})
	return b.closeErr
}

func (b *body) ioError(err error) error {
	return &media.StreamIOError{
		Path:      b.path,
		Offset:    b.window.Start + b.read,
		BytesRead: b.read,
		Expected:  b.window.Length(),
		Err:       err,
	}
}

// newLimiter paces a single stream; burst bounds each read so WaitN never
// exceeds the bucket.
func newLimiter(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	burst := int(min(bytesPerSecond, int64(copyBufferHint)))
	return rate.NewLimiter(rate.Limit(bytesPerSecond), burst)
}

// copyBufferHint matches the handler's copy buffer.
const copyBufferHint = 512 * 1024
