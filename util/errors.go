package util

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedHeader 长度或偏移字段与缓冲区声明的大小不一致
	ErrMalformedHeader = errors.New("malformed header")
	// ErrUnsupportedEncoding 编码字节不属于任何已定义的字符串/整数编码
	ErrUnsupportedEncoding = errors.New("unsupported encoding")
	// ErrCorrupt 头部可以解析, 但容器的结构性约束被破坏(顺序、成对等)
	ErrCorrupt = errors.New("corrupt container")

	ErrNoEntry       = errors.New("no entry at offset")
	ErrInvalidOffset = errors.New("offset does not point into the entries")
)

// DataError 描述某个编码缓冲区在 Off 处的损坏。
type DataError struct {
	Format string
	Data   []byte
	Off    int
	Err    error
	Msg    string
}

func DataErrf(format string, data []byte, off int, err error, msg string, args ...any) error {
	return &DataError{Format: format, Data: data, Off: off, Err: err, Msg: fmt.Sprintf(msg, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 32
	n := len(e.Data)
	var dump string
	if n <= prefixLen {
		dump = fmt.Sprintf("(%d) %x", n, e.Data)
	} else {
		dump = fmt.Sprintf("(%d) %x...", n, e.Data[:prefixLen])
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s at offset %d: %v: %s", e.Format, e.Msg, e.Off, e.Err, dump)
	}
	return fmt.Sprintf("%s: %s at offset %d: %s", e.Format, e.Msg, e.Off, dump)
}
