// Package mmap 把 dump 文件只读地映射进内存, 解码器直接在映射的字节上工作。
package mmap

import (
	"fmt"
	"os"
)

type Options uint

const (
	// SequentialAccess 提示内核积极预读, 对应 MADV_SEQUENTIAL
	SequentialAccess Options = 1 << 0

	// RandomAccess 提示预读没有用处, 对应 MADV_RANDOM。不能和 SequentialAccess 同时使用。
	RandomAccess Options = 1 << 1

	// Prefault 映射时把整个文件读进内存, 在 Linux 上对应 MAP_POPULATE
	Prefault Options = 1 << 2
)

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// File 是一个只读映射的文件
type File struct {
	f      *os.File
	data   []byte
	mapped bool
}

// Open 映射整个文件。空文件不做映射, Bytes 返回空切片。
func Open(path string, opt Options) (*File, error) {
	if opt.Has(SequentialAccess) && opt.Has(RandomAccess) {
		return nil, fmt.Errorf("mmap %s: SequentialAccess and RandomAccess are mutually exclusive", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := fi.Size()
	if size != int64(int(size)) {
		f.Close()
		return nil, fmt.Errorf("mmap %s: file of %d bytes is too large", path, size)
	}

	m := &File{f: f}
	if size == 0 {
		m.data = []byte{}
		return m, nil
	}
	m.data, m.mapped, err = mmap(f, int(size), opt)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return m, nil
}

// Bytes 返回映射的内容, Close 之后不能再访问
func (m *File) Bytes() []byte {
	return m.data
}

func (m *File) Len() int {
	return len(m.data)
}

func (m *File) Close() error {
	var err error
	if m.mapped {
		err = munmap(m.data)
		m.mapped = false
	}
	m.data = nil
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
