//go:build !unix

package mmap

import (
	"io"
	"os"
)

// 没有 mmap 的平台直接把文件读进内存
func mmap(f *os.File, size int, _ Options) ([]byte, bool, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(f, b); err != nil {
		return nil, false, err
	}
	return b, false, nil
}

func munmap([]byte) error {
	return nil
}
