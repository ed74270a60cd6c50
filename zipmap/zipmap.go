// Package zipmap 读写 zipmap 编码: 按插入顺序排列的 key/value 记录, 查找只能线性扫描。
//
// 两种头部:
//
//	<count:1> <key> <value> ... <0xff>            count < 254, 254 表示需要遍历
//	<0xff> <count:2 big endian> <key> <value> ... <0xff>   65279 表示需要遍历
//
// key 记录是 <len><bytes>, value 记录是 <len><free><bytes><free 个空闲字节>。
// len 小于 254 时占 1 字节, 否则是 254 加上 4 字节小端序长度。
//
// Get 是 O(n) 的, zipmap 只适合很小的集合。
package zipmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pengdafu/rdb-encoding/util"
)

const (
	zipmapBigLen    = 254
	zipmapEnd       = 255
	zipmapBigLenNew = 65279

	// value 记录最多保留的空闲字节, 超过就收缩
	zipmapValueMaxFree = 3
)

// None 表示迭代结束。记录至少从偏移 1 开始, 所以 0 不会是记录的偏移。
const None = 0

func corrupt(zm []byte, off int, err error, msg string, args ...any) error {
	return util.DataErrf("zipmap", zm, off, err, msg, args...)
}

func zipmapLenBytes(l int) int {
	if l < zipmapBigLen {
		return 1
	}
	return 5
}

func zipmapDecodeLength(zm []byte, p int) (l, size int, err error) {
	if p >= len(zm) {
		return 0, 0, corrupt(zm, p, util.ErrMalformedHeader, "record length past the end of the buffer")
	}
	switch b := zm[p]; {
	case b < zipmapBigLen:
		return int(b), 1, nil
	case b == zipmapEnd:
		return 0, 0, corrupt(zm, p, util.ErrMalformedHeader, "unexpected end marker")
	}
	if p+5 > len(zm) {
		return 0, 0, corrupt(zm, p, util.ErrMalformedHeader, "truncated 5 byte length")
	}
	return int(binary.LittleEndian.Uint32(zm[p+1:])), 5, nil
}

func zipmapEncodeLength(p []byte, l int) int {
	if p == nil {
		return zipmapLenBytes(l)
	}
	if l < zipmapBigLen {
		p[0] = byte(l)
		return 1
	}
	p[0] = zipmapBigLen
	binary.LittleEndian.PutUint32(p[1:], uint32(l))
	return 5
}

// Rewind 返回第一条记录的偏移
func Rewind(zm []byte) (int, error) {
	if len(zm) < 2 {
		return None, corrupt(zm, 0, util.ErrMalformedHeader, "buffer of %d bytes is shorter than the header", len(zm))
	}
	if zm[0] == zipmapEnd {
		if len(zm) < 4 {
			return None, corrupt(zm, 0, util.ErrMalformedHeader, "buffer of %d bytes is shorter than the extended header", len(zm))
		}
		return 3, nil
	}
	return 1, nil
}

// Next 解码 p 处的 key/value, 返回下一条记录的偏移。p 是结束标记时 next 为 None。
// key 和 value 直接引用 zm 中的字节。
func Next(zm []byte, p int) (key, value []byte, next int, err error) {
	if p < 1 || p > len(zm) {
		return nil, nil, None, fmt.Errorf("zipmap: offset %d: %w", p, util.ErrInvalidOffset)
	}
	if p == len(zm) {
		return nil, nil, None, corrupt(zm, p, util.ErrMalformedHeader, "missing end marker")
	}
	if zm[p] == zipmapEnd {
		return nil, nil, None, nil
	}

	klen, ksize, err := zipmapDecodeLength(zm, p)
	if err != nil {
		return nil, nil, None, err
	}
	k := p + ksize
	if klen > len(zm)-k {
		return nil, nil, None, corrupt(zm, p, util.ErrMalformedHeader, "key of %d bytes overruns the zipmap", klen)
	}
	key = zm[k : k+klen : k+klen]

	q := k + klen
	if q < len(zm) && zm[q] == zipmapEnd {
		return nil, nil, None, corrupt(zm, q, util.ErrMalformedHeader, "key without a value")
	}
	vlen, vsize, err := zipmapDecodeLength(zm, q)
	if err != nil {
		return nil, nil, None, err
	}
	f := q + vsize
	if f >= len(zm) {
		return nil, nil, None, corrupt(zm, q, util.ErrMalformedHeader, "missing free byte count")
	}
	free := int(zm[f])
	v := f + 1
	if vlen > len(zm)-v || free > len(zm)-v-vlen {
		return nil, nil, None, corrupt(zm, q, util.ErrMalformedHeader, "value of %d bytes (%d free) overruns the zipmap", vlen, free)
	}
	value = zm[v : v+vlen : v+vlen]

	return key, value, v + vlen + free, nil
}

// Iterate 从头遍历所有 key/value。每次调用都重新开始, 对同一个没有修改过的缓冲区结果相同。
func Iterate(zm []byte, fn func(key, value []byte) error) error {
	p, err := Rewind(zm)
	if err != nil {
		return err
	}
	for {
		key, value, next, err := Next(zm, p)
		if err != nil {
			return err
		}
		if next == None {
			return nil
		}
		if err := fn(key, value); err != nil {
			return err
		}
		p = next
	}
}

func count(zm []byte) (n, end int, err error) {
	p, err := Rewind(zm)
	if err != nil {
		return 0, 0, err
	}
	for {
		_, _, next, err := Next(zm, p)
		if err != nil {
			return 0, 0, err
		}
		if next == None {
			return n, p, nil
		}
		n++
		p = next
	}
}

// cachedLen 返回头部记录的个数, ok 为 false 表示需要遍历
func cachedLen(zm []byte) (n int, ok bool) {
	if zm[0] != zipmapEnd {
		return int(zm[0]), zm[0] < zipmapBigLen
	}
	n = int(binary.BigEndian.Uint16(zm[1:]))
	return n, n != zipmapBigLenNew
}

func storeLen(zm []byte, n int) {
	if zm[0] != zipmapEnd {
		if n >= zipmapBigLen {
			n = zipmapBigLen
		}
		zm[0] = byte(n)
		return
	}
	if n >= zipmapBigLenNew {
		n = zipmapBigLenNew
	}
	binary.BigEndian.PutUint16(zm[1:], uint16(n))
}

// Len 返回记录个数。头部不知道个数时遍历一次, 个数放得下就写回头部,
// 所以调用方必须独占 zm。
func Len(zm []byte) (int, error) {
	if _, err := Rewind(zm); err != nil {
		return 0, err
	}
	if n, ok := cachedLen(zm); ok {
		return n, nil
	}

	n, _, err := count(zm)
	if err != nil {
		return 0, err
	}
	if n < zipmapBigLen && zm[0] == zipmapBigLen {
		zm[0] = byte(n)
	} else if n < zipmapBigLenNew && zm[0] == zipmapEnd {
		binary.BigEndian.PutUint16(zm[1:], uint16(n))
	}
	return n, nil
}

// Get 线性查找 key
func Get(zm []byte, key []byte) (value []byte, ok bool, err error) {
	p, _, err := lookup(zm, key)
	if err != nil || p == None {
		return nil, false, err
	}
	_, value, _, err = Next(zm, p)
	return value, err == nil, err
}

// lookup 返回 key 所在记录的偏移, 不存在时返回 None。end 是结束标记的偏移,
// 找到 key 之后也会继续扫描到结束标记, 缺少结束标记的 zipmap 返回错误。
func lookup(zm []byte, key []byte) (found, end int, err error) {
	p, err := Rewind(zm)
	if err != nil {
		return None, 0, err
	}
	found = None
	for {
		k, _, next, err := Next(zm, p)
		if err != nil {
			return None, 0, err
		}
		if next == None {
			return found, p, nil
		}
		if found == None && bytes.Equal(k, key) {
			found = p
		}
		p = next
	}
}

// Validate 检查所有记录, 结束标记必须是最后一个字节, 头部记录的个数(如果已知)必须正确。
func Validate(zm []byte) error {
	_, err := validate(zm)
	return err
}

func validate(zm []byte) (int, error) {
	n, end, err := count(zm)
	if err != nil {
		return 0, err
	}
	if end != len(zm)-1 {
		return 0, corrupt(zm, end, util.ErrCorrupt, "%d bytes after the end marker", len(zm)-1-end)
	}
	if cached, ok := cachedLen(zm); ok && cached != n {
		return 0, corrupt(zm, 0, util.ErrCorrupt, "header counts %d records, found %d", cached, n)
	}
	return n, nil
}
