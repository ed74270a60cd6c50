package ziplist

import (
	"encoding/binary"

	"github.com/pengdafu/rdb-encoding/util"
)

type zlentry struct {
	prevRawLenSize int   // 前一个元素长度编码字节
	prevRawLen     int   // 前一个元素长度
	lenSize        int   // 当前元素长度编码字节
	len            int   // 当前元素长度
	headerSize     int   // prevRawLenSize + lenSize
	encoding       uint8 // zipStr* 或者 zipInt* 的编码值，对于4bit 直接是数字的范围值
	p              int   // 元素在 ziplist 中的偏移
}

func (e *zlentry) rawLen() int {
	return e.headerSize + e.len
}

// zipEntry 解码 p 处元素的头部。end 是结束标记的偏移, 元素的任何一个字节都不允许越过它。
func zipEntry(zl []byte, p, end int) (e zlentry, err error) {
	if p < HeaderSize || p >= end {
		return e, corrupt(zl, p, util.ErrMalformedHeader, "entry offset outside of [%d, %d)", HeaderSize, end)
	}
	e.p = p
	if e.prevRawLenSize, e.prevRawLen, err = zipDecodePrevLen(zl, p, end); err != nil {
		return e, err
	}

	q := p + e.prevRawLenSize
	if q >= end {
		return e, corrupt(zl, p, util.ErrMalformedHeader, "entry header runs into the end marker")
	}
	if e.encoding, e.lenSize, e.len, err = zipDecodeLength(zl, q, end); err != nil {
		return e, err
	}
	e.headerSize = e.prevRawLenSize + e.lenSize

	if e.len < 0 || e.len > end-(p+e.headerSize) {
		return e, corrupt(zl, p, util.ErrMalformedHeader, "payload of %d bytes overruns the ziplist", e.len)
	}
	return e, nil
}

func zipDecodePrevLenSize(zl []byte, p int) int {
	if zl[p] < zipBigPrevLen {
		return 1
	}
	return 5
}

func zipDecodePrevLen(zl []byte, p, end int) (prevlensize, prevlen int, err error) {
	switch {
	case zl[p] < zipBigPrevLen:
		return 1, int(zl[p]), nil
	case zl[p] == zipEnd:
		return 0, 0, corrupt(zl, p, util.ErrMalformedHeader, "unexpected end marker")
	}
	if p+5 > end {
		return 0, 0, corrupt(zl, p, util.ErrMalformedHeader, "truncated 5 byte prevlen")
	}
	return 5, int(binary.LittleEndian.Uint32(zl[p+1:])), nil
}

// zipDecodeLength 解码 q 处的 encoding 字节(以及字符串长度)。
// 字符串长度是大端序, 整数元素的长度由 encoding 决定。
func zipDecodeLength(zl []byte, q, end int) (encoding uint8, lensize, _len int, err error) {
	b := zl[q]
	if b < zipStrMask {
		encoding = b & zipStrMask
		switch encoding {
		case zipStr06B:
			return encoding, 1, int(b & 0x3f), nil
		case zipStr14B:
			if q+2 > end {
				return 0, 0, 0, corrupt(zl, q, util.ErrMalformedHeader, "truncated 14 bit string length")
			}
			return encoding, 2, int(b&0x3f)<<8 | int(zl[q+1]), nil
		default:
			if q+5 > end {
				return 0, 0, 0, corrupt(zl, q, util.ErrMalformedHeader, "truncated 32 bit string length")
			}
			return encoding, 5, int(binary.BigEndian.Uint32(zl[q+1:])), nil
		}
	}

	size, ok := zipIntSize(b)
	if !ok {
		return 0, 0, 0, corrupt(zl, q, util.ErrUnsupportedEncoding, "encoding byte %#02x", b)
	}
	return b, 1, size, nil
}

func zipIntSize(encoding uint8) (int, bool) {
	switch encoding {
	case zipInt8B:
		return 1, true
	case zipInt16B:
		return 2, true
	case zipInt24B:
		return 3, true
	case zipInt32B:
		return 4, true
	case zipInt64B:
		return 8, true
	}
	if encoding >= zipIntImmMin && encoding <= zipIntImmMax {
		return 0, true
	}
	return 0, false
}

func zipRawEntryLength(zl []byte, p, end int) (int, error) {
	e, err := zipEntry(zl, p, end)
	if err != nil {
		return 0, err
	}
	return e.rawLen(), nil
}

func zipIsStr(enc uint8) bool {
	return enc&zipStrMask < zipStrMask
}

func zipLoadInteger(zl []byte, p int, encoding uint8) int64 {
	if encoding >= zipIntImmMin && encoding <= zipIntImmMax {
		return int64(encoding&zipIntImmMask) - 1
	}
	size, _ := zipIntSize(encoding)
	return util.IntLE(zl[p:], size)
}
