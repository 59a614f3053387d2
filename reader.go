package siteinit

import (
	"context"
	"errors"
	"io/fs"
)

type (
	// TextReader reads the full text of a script. It is called off the event
	// loop, and may block.
	TextReader interface {
		ReadText(ctx context.Context, handle ScriptHandle) (string, error)
	}

	// TextReaderFunc implements [TextReader].
	TextReaderFunc func(ctx context.Context, handle ScriptHandle) (string, error)

	// FSReader reads scripts from their handle's [fs.FS].
	FSReader struct{}
)

var (
	// compile time assertions

	_ TextReader = TextReaderFunc(nil)
	_ TextReader = FSReader{}
)

func (x TextReaderFunc) ReadText(ctx context.Context, handle ScriptHandle) (string, error) {
	return x(ctx, handle)
}

func (FSReader) ReadText(ctx context.Context, handle ScriptHandle) (string, error) {
	if err := ctx.Err(); err != nil {
		return ``, err
	}
	if handle.FS == nil {
		return ``, errors.New("siteinit: script handle has no filesystem")
	}
	b, err := fs.ReadFile(handle.FS, handle.Path)
	if err != nil {
		return ``, err
	}
	return string(b), nil
}
