//go:build unix

package mmap

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func mmap(f *os.File, size int, opt Options) ([]byte, bool, error) {
	flags := unix.MAP_SHARED
	if opt.Has(Prefault) {
		flags |= mapPopulate
	}

	b, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, flags)
	if err != nil {
		return nil, false, err
	}

	if opt.Has(SequentialAccess) {
		err = unix.Madvise(b, unix.MADV_SEQUENTIAL)
		if err != nil && err != syscall.ENOSYS {
			unix.Munmap(b)
			return nil, false, fmt.Errorf("madvise(MADV_SEQUENTIAL): %w", err)
		}
	} else if opt.Has(RandomAccess) {
		err = unix.Madvise(b, unix.MADV_RANDOM)
		if err != nil && err != syscall.ENOSYS {
			unix.Munmap(b)
			return nil, false, fmt.Errorf("madvise(MADV_RANDOM): %w", err)
		}
	}

	return b, true, nil
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
