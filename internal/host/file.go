package host

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// File is an open handle on a published device. It satisfies
// [io.ReadWriteCloser].
type File struct {
	id     uuid.UUID
	reg    *Registration
	offset atomic.Int64
	closed atomic.Bool
}

func newFile(reg *Registration) *File {
	return &File{
		id:  uuid.New(),
		reg: reg,
	}
}

// ID returns the unique identifier of the [File].
func (f *File) ID() uuid.UUID {
	return f.id
}

// Name returns the device name the [File] was opened on.
func (f *File) Name() string {
	return f.reg.name
}

// Offset returns the current file offset.
func (f *File) Offset() int64 {
	return f.offset.Load()
}

// Read routes a read to the device's [FileOperations.Read] handler.
func (f *File) Read(buf []byte) (int, error) {
	if f.closed.Load() {
		return 0, fmt.Errorf("(host-read) %w", ErrClosed)
	}

	ops, err := f.reg.enter()
	if err != nil {
		return 0, fmt.Errorf("(host-read) %w", err)
	}
	defer f.reg.exit()

	n, err := ops.Read(f, buf, f.offset.Load())
	f.offset.Add(int64(n))

	if err != nil {
		return n, fmt.Errorf("(host-read) %w", err)
	}

	return n, nil
}

// Write routes a write to the device's [FileOperations.Write] handler.
func (f *File) Write(buf []byte) (int, error) {
	if f.closed.Load() {
		return 0, fmt.Errorf("(host-write) %w", ErrClosed)
	}

	ops, err := f.reg.enter()
	if err != nil {
		return 0, fmt.Errorf("(host-write) %w", err)
	}
	defer f.reg.exit()

	n, err := ops.Write(f, buf, f.offset.Load())
	f.offset.Add(int64(n))

	if err != nil {
		return n, fmt.Errorf("(host-write) %w", err)
	}

	return n, nil
}

// Close releases the [File]. The device's [FileOperations.Release] handler
// is only invoked while the device is still published.
func (f *File) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("(host-close) %w", ErrClosed)
	}

	ops, err := f.reg.enter()
	if err != nil {
		return nil //nolint:nilerr
	}
	defer f.reg.exit()

	ops.Release(f)

	return nil
}
