package ziplist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/pengdafu/rdb-encoding/util"
)

const (
	bytesOffset  = 0
	tailOffset   = 4
	lengthOffset = 8
)

const (
	// HeaderSize 两个32bit分别表示总共占用的字节数和最后一个item的偏移量，一个16bit表示一共有多少item
	HeaderSize = 4*2 + 2

	// EndSize 1个字节表示ziplist的结束标记
	EndSize = 1
)

const (
	zipEnd        = 255
	zipBigPrevLen = 254
)
const (
	zipStrMask    = 0xc0
	zipStr06B     = 0 << 6
	zipStr14B     = 1 << 6
	zipStr32B     = 2 << 6
	zipInt16B     = zipStrMask | 0<<4
	zipInt32B     = zipStrMask | 1<<4
	zipInt64B     = zipStrMask | 2<<4
	zipInt24B     = zipStrMask | 3<<4
	zipInt8B      = 0xfe
	zipIntImmMin  = 0xf1
	zipIntImmMax  = 0xfd
	zipIntImmMask = 0x0f

	int24Max = 1<<23 - 1
	int24Min = -1 << 23
)
const (
	Head = 0
	Tail = 1
)

// None 是"没有元素"的偏移。头部占据 [0, HeaderSize)，所以 0 不会是任何元素的偏移。
const None = 0

// lengthUnknown 头部的元素个数到达这个值之后只是一个缓存, 需要遍历才能得到真实个数
const lengthUnknown = math.MaxUint16

// MaxSafetySize 是 ziplist 允许的最大字节数
const MaxSafetySize = 1 << 30

var safetySize = MaxSafetySize

// ErrTooLarge 插入之后 ziplist 会超过 MaxSafetySize
var ErrTooLarge = errors.New("ziplist would exceed the safety size")

func corrupt(zl []byte, off int, err error, msg string, args ...any) error {
	return util.DataErrf("ziplist", zl, off, err, msg, args...)
}

func ziplistBytes(zl []byte) int {
	return int(binary.LittleEndian.Uint32(zl[bytesOffset:]))
}
func setZiplistBytes(zl []byte, n int) {
	binary.LittleEndian.PutUint32(zl[bytesOffset:], uint32(n))
}
func ziplistTailOffset(zl []byte) int {
	return int(binary.LittleEndian.Uint32(zl[tailOffset:]))
}
func setZiplistTailOffset(zl []byte, off int) {
	binary.LittleEndian.PutUint32(zl[tailOffset:], uint32(off))
}
func ziplistLength(zl []byte) int {
	return int(binary.LittleEndian.Uint16(zl[lengthOffset:]))
}
func setZiplistLength(zl []byte, n int) {
	binary.LittleEndian.PutUint16(zl[lengthOffset:], uint16(n))
}

// ziplistEntryEnd 结束标记的偏移
func ziplistEntryEnd(zl []byte) int {
	return ziplistBytes(zl) - 1
}

// checkHeader 在读取任何元素之前校验头部, 之后所有偏移都以头部声明的大小为界
func checkHeader(zl []byte) error {
	if len(zl) < HeaderSize+EndSize {
		return corrupt(zl, 0, util.ErrMalformedHeader, "buffer of %d bytes is shorter than the header", len(zl))
	}
	total := ziplistBytes(zl)
	if total < HeaderSize+EndSize || total > len(zl) {
		return corrupt(zl, bytesOffset, util.ErrMalformedHeader, "declared size %d, buffer has %d bytes", total, len(zl))
	}
	if zl[total-1] != zipEnd {
		return corrupt(zl, total-1, util.ErrMalformedHeader, "missing end marker")
	}
	if tail := ziplistTailOffset(zl); tail < HeaderSize || tail >= total {
		return corrupt(zl, tailOffset, util.ErrMalformedHeader, "tail offset %d outside of the entries", tail)
	}
	return nil
}

func checkOffset(zl []byte, p int) error {
	if p < HeaderSize || p > ziplistEntryEnd(zl) {
		return fmt.Errorf("ziplist: offset %d: %w", p, util.ErrInvalidOffset)
	}
	return nil
}

func zipTryEncoding(entry []byte) (v int64, encoding uint8, ok bool) {
	if len(entry) >= 32 || len(entry) == 0 {
		return 0, 0, false
	}

	var value int64
	if !util.String2Int64(entry, &value) {
		return 0, 0, false
	}
	if value >= 0 && value <= 12 {
		encoding = zipIntImmMin + uint8(value)
	} else if value >= math.MinInt8 && value <= math.MaxInt8 {
		encoding = zipInt8B
	} else if value >= math.MinInt16 && value <= math.MaxInt16 {
		encoding = zipInt16B
	} else if value >= int24Min && value <= int24Max {
		encoding = zipInt24B
	} else if value >= math.MinInt32 && value <= math.MaxInt32 {
		encoding = zipInt32B
	} else {
		encoding = zipInt64B
	}
	return value, encoding, true
}

func zipStorePrevEntryLengthLarge(p []byte, _len int) int {
	if p != nil {
		p[0] = zipBigPrevLen
		binary.LittleEndian.PutUint32(p[1:], uint32(_len))
	}
	return 5
}

// zipStorePrevEntryLength p 为 nil 时只计算需要的字节数
func zipStorePrevEntryLength(p []byte, _len int) int {
	if p == nil {
		if _len < zipBigPrevLen {
			return 1
		}
		return 5
	}
	if _len < zipBigPrevLen {
		p[0] = byte(_len)
		return 1
	}
	return zipStorePrevEntryLengthLarge(p, _len)
}

func zipStoreEntryEncoding(p []byte, encoding uint8, rawlen int) int {
	_len := 1
	var buf [5]byte
	if zipIsStr(encoding) {
		if rawlen <= 0x3f {
			if p == nil {
				return _len
			}
			buf[0] = zipStr06B | byte(rawlen)
		} else if rawlen <= 0x3fff {
			_len += 1
			if p == nil {
				return _len
			}
			buf[0] = zipStr14B | byte((rawlen>>8)&0x3f)
			buf[1] = byte(rawlen & 0xff)
		} else {
			_len += 4
			if p == nil {
				return _len
			}
			buf[0] = zipStr32B
			binary.BigEndian.PutUint32(buf[1:], uint32(rawlen))
		}
	} else {
		if p == nil {
			return _len
		}
		buf[0] = encoding
	}
	copy(p, buf[:_len])
	return _len
}

// zipPrevLenByteDiff p 处的 prevlen 字段要改存 _len 时需要增加(或减少)的字节数
func zipPrevLenByteDiff(zl []byte, p int, _len int) int {
	return zipStorePrevEntryLength(nil, _len) - zipDecodePrevLenSize(zl, p)
}

func zipSaveInteger(p []byte, value int64, encoding uint8) {
	if encoding >= zipIntImmMin && encoding <= zipIntImmMax {
		return
	}
	size, _ := zipIntSize(encoding)
	util.PutIntLE(p, value, size)
}

func ziplistIncrLength(zl []byte, incr int) {
	if l := ziplistLength(zl); l < lengthUnknown {
		setZiplistLength(zl, l+incr)
	}
}

// ziplistResize 调整大小并重写总字节数和结束标记。
// 和 append 一样, 容量足够时复用底层数组, 调用方必须使用返回的切片。
func ziplistResize(zl []byte, _len int) []byte {
	if _len <= cap(zl) {
		zl = zl[:_len]
	} else {
		c := 2 * cap(zl)
		if c < _len {
			c = _len
		}
		n := make([]byte, _len, c)
		copy(n, zl)
		zl = n
	}

	setZiplistBytes(zl, _len)
	zl[_len-1] = zipEnd
	return zl
}

// __ziplistCascadeUpdate 插入或删除之后, p 之后元素的 prevlen 字段可能需要从 1 字节扩展到 5 字节,
// 扩展又会让这个元素变长, 于是一直向后传递, 直到某个元素的 prevlen 不需要变化。
func __ziplistCascadeUpdate(zl []byte, p int) ([]byte, error) {
	curlen := ziplistBytes(zl)
	for p < curlen-1 {
		end := curlen - 1
		cur, err := zipEntry(zl, p, end)
		if err != nil {
			return zl, err
		}
		rawlen := cur.rawLen()
		rawlensize := zipStorePrevEntryLength(nil, rawlen)

		if p+rawlen == end {
			break
		}
		next, err := zipEntry(zl, p+rawlen, end)
		if err != nil {
			return zl, err
		}

		if next.prevRawLen == rawlen {
			break
		}

		if next.prevRawLenSize < rawlensize {
			extra := rawlensize - next.prevRawLenSize
			zl = ziplistResize(zl, curlen+extra)
			np := p + rawlen

			if ziplistTailOffset(zl) != np {
				setZiplistTailOffset(zl, ziplistTailOffset(zl)+extra)
			}

			copy(zl[np+rawlensize:], zl[np+next.prevRawLenSize:curlen-1])
			zipStorePrevEntryLength(zl[np:], rawlen)

			p += rawlen
			curlen += extra
		} else {
			// 不收缩 prevlen 字段, 直接用 5 字节存小的长度
			if next.prevRawLenSize > rawlensize {
				zipStorePrevEntryLengthLarge(zl[p+rawlen:], rawlen)
			} else {
				zipStorePrevEntryLength(zl[p+rawlen:], rawlen)
			}
			break
		}
	}
	return zl, nil
}

func __ziplistDelete(zl []byte, p int, num int) ([]byte, error) {
	curlen := ziplistBytes(zl)
	end := curlen - 1

	first, err := zipEntry(zl, p, end)
	if err != nil {
		return zl, err
	}
	deleted := 0
	for i := 0; p < end && i < num; i++ {
		l, err := zipRawEntryLength(zl, p, end)
		if err != nil {
			return zl, err
		}
		p += l
		deleted++
	}

	totlen := p - first.p
	if totlen == 0 {
		return zl, nil
	}

	nextDiff := 0
	if p < end {
		// 后一个元素的 prevlen 改存 first 之前那个元素的长度
		nextDiff = zipPrevLenByteDiff(zl, p, first.prevRawLen)
		p -= nextDiff
		zipStorePrevEntryLength(zl[p:], first.prevRawLen)

		setZiplistTailOffset(zl, ziplistTailOffset(zl)-totlen)

		tail, err := zipEntry(zl, p, end)
		if err != nil {
			return zl, err
		}
		if p+tail.rawLen() != end {
			setZiplistTailOffset(zl, ziplistTailOffset(zl)+nextDiff)
		}

		copy(zl[first.p:], zl[p:end])
	} else {
		setZiplistTailOffset(zl, first.p-first.prevRawLen)
	}

	zl = ziplistResize(zl, curlen-totlen+nextDiff)
	ziplistIncrLength(zl, -deleted)
	if nextDiff != 0 {
		return __ziplistCascadeUpdate(zl, first.p)
	}
	return zl, nil
}

func __ziplistInsert(zl []byte, p int, s []byte) ([]byte, error) { // p 是要被插入的位置
	curLen := ziplistBytes(zl)
	end := curLen - 1
	atEnd := p == end

	var prevlen int
	var err error
	if !atEnd {
		if _, prevlen, err = zipDecodePrevLen(zl, p, end); err != nil {
			return zl, err
		}
	} else if ptail := ziplistTailOffset(zl); ptail < end {
		if prevlen, err = zipRawEntryLength(zl, ptail, end); err != nil {
			return zl, err
		}
	}

	var reqLen int
	value, encoding, isInt := zipTryEncoding(s)
	if isInt {
		reqLen, _ = zipIntSize(encoding)
	} else {
		encoding = zipStr06B
		reqLen = len(s)
	}
	reqLen += zipStorePrevEntryLength(nil, prevlen)
	reqLen += zipStoreEntryEncoding(nil, encoding, len(s))

	// 后一个元素的 prevlen 是 5 字节而新元素很小时, 保留 5 字节不收缩
	var forceLarge bool
	nextDiff := 0
	if !atEnd {
		nextDiff = zipPrevLenByteDiff(zl, p, reqLen)
	}
	if nextDiff == -4 && reqLen < 4 {
		nextDiff = 0
		forceLarge = true
	}

	if !SafeToAdd(zl, reqLen+nextDiff) {
		return zl, fmt.Errorf("inserting %d bytes into a ziplist of %d bytes: %w", reqLen+nextDiff, curLen, ErrTooLarge)
	}
	zl = ziplistResize(zl, curLen+reqLen+nextDiff)
	newEnd := curLen + reqLen + nextDiff - 1

	if !atEnd {
		copy(zl[p+reqLen:], zl[p-nextDiff:curLen-1])
		if forceLarge {
			zipStorePrevEntryLengthLarge(zl[p+reqLen:], reqLen)
		} else {
			zipStorePrevEntryLength(zl[p+reqLen:], reqLen)
		}

		setZiplistTailOffset(zl, ziplistTailOffset(zl)+reqLen)
		tail, err := zipEntry(zl, p+reqLen, newEnd)
		if err != nil {
			return zl, err
		}
		if p+reqLen+tail.rawLen() != newEnd {
			setZiplistTailOffset(zl, ziplistTailOffset(zl)+nextDiff)
		}
	} else {
		setZiplistTailOffset(zl, p)
	}

	if nextDiff != 0 {
		if zl, err = __ziplistCascadeUpdate(zl, p+reqLen); err != nil {
			return zl, err
		}
	}

	q := p
	q += zipStorePrevEntryLength(zl[q:], prevlen)
	q += zipStoreEntryEncoding(zl[q:], encoding, len(s))
	if zipIsStr(encoding) {
		copy(zl[q:], s)
	} else {
		zipSaveInteger(zl[q:], value, encoding)
	}
	ziplistIncrLength(zl, 1)
	return zl, nil
}

func New() []byte {
	bytesLen := HeaderSize + EndSize
	zl := make([]byte, bytesLen)
	setZiplistBytes(zl, bytesLen)
	setZiplistTailOffset(zl, HeaderSize)
	setZiplistLength(zl, 0)
	zl[bytesLen-1] = zipEnd
	return zl
}

// SafeToAdd 报告 zl 再增加 add 字节之后是否仍然不超过 MaxSafetySize
func SafeToAdd(zl []byte, add int) bool {
	l := 0
	if len(zl) >= HeaderSize {
		l = ziplistBytes(zl)
	}
	return l+add <= safetySize
}

// End 返回结束标记的偏移; Prev(zl, End(zl)) 得到最后一个元素。
func End(zl []byte) (int, error) {
	if err := checkHeader(zl); err != nil {
		return None, err
	}
	return ziplistEntryEnd(zl), nil
}

// Index 返回第 index 个元素的偏移, index 为负数时从尾部往前数 (-1 是最后一个)。
// 越界时返回 None。
func Index(zl []byte, index int) (int, error) {
	if err := checkHeader(zl); err != nil {
		return None, err
	}
	end := ziplistEntryEnd(zl)

	var p int
	if index < 0 {
		index = -index - 1
		p = ziplistTailOffset(zl)
		if p < end {
			e, err := zipEntry(zl, p, end)
			if err != nil {
				return None, err
			}
			for e.prevRawLen > 0 && index > 0 {
				index--
				if e.prevRawLen > p-HeaderSize {
					return None, corrupt(zl, p, util.ErrMalformedHeader, "prevlen %d points before the first entry", e.prevRawLen)
				}
				p -= e.prevRawLen
				if e, err = zipEntry(zl, p, end); err != nil {
					return None, err
				}
			}
		}
	} else {
		p = HeaderSize
		for p < end && index > 0 {
			l, err := zipRawEntryLength(zl, p, end)
			if err != nil {
				return None, err
			}
			p += l
			index--
		}
	}
	if p >= end || index > 0 {
		return None, nil
	}
	return p, nil
}

// Next 返回 p 之后的元素, p 是最后一个元素或者结束标记时返回 None。
func Next(zl []byte, p int) (int, error) {
	if err := checkHeader(zl); err != nil {
		return None, err
	}
	if err := checkOffset(zl, p); err != nil {
		return None, err
	}
	end := ziplistEntryEnd(zl)
	if p == end {
		return None, nil
	}

	l, err := zipRawEntryLength(zl, p, end)
	if err != nil {
		return None, err
	}
	p += l
	if p == end {
		return None, nil
	}
	return p, nil
}

// Prev 返回 p 之前的元素。p 是结束标记时返回最后一个元素, p 是第一个元素时返回 None。
func Prev(zl []byte, p int) (int, error) {
	if err := checkHeader(zl); err != nil {
		return None, err
	}
	if err := checkOffset(zl, p); err != nil {
		return None, err
	}
	end := ziplistEntryEnd(zl)

	if p == end {
		if tail := ziplistTailOffset(zl); tail < end {
			return tail, nil
		}
		return None, nil
	}
	if p == HeaderSize {
		return None, nil
	}

	e, err := zipEntry(zl, p, end)
	if err != nil {
		return None, err
	}
	if e.prevRawLen == 0 || e.prevRawLen > p-HeaderSize {
		return None, corrupt(zl, p, util.ErrMalformedHeader, "prevlen %d does not point at an entry", e.prevRawLen)
	}
	return p - e.prevRawLen, nil
}

// Get 解码 p 处的元素。字符串直接引用 zl 中的字节, 不做拷贝。
func Get(zl []byte, p int) (Value, error) {
	if err := checkHeader(zl); err != nil {
		return Value{}, err
	}
	if p == None {
		return Value{}, util.ErrNoEntry
	}
	if err := checkOffset(zl, p); err != nil {
		return Value{}, err
	}
	end := ziplistEntryEnd(zl)
	if p == end {
		return Value{}, util.ErrNoEntry
	}

	e, err := zipEntry(zl, p, end)
	if err != nil {
		return Value{}, err
	}
	return entryValue(zl, &e), nil
}

func entryValue(zl []byte, e *zlentry) Value {
	q := e.p + e.headerSize
	if zipIsStr(e.encoding) {
		return Value{Str: zl[q : q+e.len : q+e.len], IsStr: true}
	}
	return Value{Int: zipLoadInteger(zl, q, e.encoding)}
}

// EntrySize 返回 p 处元素占用的全部字节: prevlen + encoding + 内容。
func EntrySize(zl []byte, p int) (int, error) {
	if err := checkHeader(zl); err != nil {
		return 0, err
	}
	if err := checkOffset(zl, p); err != nil {
		return 0, err
	}
	return zipRawEntryLength(zl, p, ziplistEntryEnd(zl))
}

func EntryIsStr(zl []byte, p int) (bool, error) {
	v, err := Get(zl, p)
	if err != nil {
		return false, err
	}
	return v.IsStr, nil
}

// EntryText 返回元素的文本形式, 整数元素会被格式化成十进制。
func EntryText(zl []byte, p int) ([]byte, error) {
	v, err := Get(zl, p)
	if err != nil {
		return nil, err
	}
	return v.Text(), nil
}

// Find 从 p 开始查找等于 vstr 的元素, 每比较一次之后跳过 skip 个元素
// (hash 里 skip 为 1, 只比较 field 不比较 value)。
func Find(zl []byte, p int, vstr []byte, skip int) (int, error) {
	if err := checkHeader(zl); err != nil {
		return None, err
	}
	if err := checkOffset(zl, p); err != nil {
		return None, err
	}
	end := ziplistEntryEnd(zl)

	skipCnt := 0
	vTried, vIsInt := false, false
	var vll int64

	for p < end {
		e, err := zipEntry(zl, p, end)
		if err != nil {
			return None, err
		}
		q := p + e.headerSize
		if skipCnt == 0 {
			if zipIsStr(e.encoding) {
				if bytes.Equal(zl[q:q+e.len], vstr) {
					return p, nil
				}
			} else {
				if !vTried {
					vll, _, vIsInt = zipTryEncoding(vstr)
					vTried = true
				}
				if vIsInt && zipLoadInteger(zl, q, e.encoding) == vll {
					return p, nil
				}
			}
			skipCnt = skip
		} else {
			skipCnt--
		}
		p = q + e.len
	}
	return None, nil
}

// Len 返回元素个数。头部的个数到达 65535 之后需要遍历整个 ziplist,
// 并且在个数重新放得下时写回头部: 这是一个会修改 zl 的"读"操作,
// 调用方必须独占 zl, 不能和任何其他读写者并发调用。
func Len(zl []byte) (int, error) {
	if err := checkHeader(zl); err != nil {
		return 0, err
	}
	if l := ziplistLength(zl); l < lengthUnknown {
		return l, nil
	}

	l, err := count(zl)
	if err != nil {
		return 0, err
	}
	if l < lengthUnknown {
		setZiplistLength(zl, l)
	}
	return l, nil
}

func count(zl []byte) (int, error) {
	end := ziplistEntryEnd(zl)
	l := 0
	for p := HeaderSize; p < end; l++ {
		n, err := zipRawEntryLength(zl, p, end)
		if err != nil {
			return 0, err
		}
		p += n
	}
	return l, nil
}

// Validate 完整检查 zl: 头部, 每一个元素, prevlen 链, 尾部偏移以及缓存的个数。
func Validate(zl []byte) error {
	_, err := validate(zl)
	return err
}

func validate(zl []byte) (int, error) {
	if err := checkHeader(zl); err != nil {
		return 0, err
	}
	end := ziplistEntryEnd(zl)

	n, prevlen, last := 0, 0, None
	for p := HeaderSize; p < end; n++ {
		e, err := zipEntry(zl, p, end)
		if err != nil {
			return 0, err
		}
		if e.prevRawLen != prevlen {
			return 0, corrupt(zl, p, util.ErrCorrupt, "prevlen %d, previous entry has %d bytes", e.prevRawLen, prevlen)
		}
		last = p
		prevlen = e.rawLen()
		p += prevlen
	}

	tail := ziplistTailOffset(zl)
	if (n == 0 && tail != HeaderSize) || (n > 0 && tail != last) {
		return 0, corrupt(zl, tailOffset, util.ErrCorrupt, "tail offset %d, last entry at %d", tail, last)
	}
	if l := ziplistLength(zl); l < lengthUnknown && l != n {
		return 0, corrupt(zl, lengthOffset, util.ErrCorrupt, "header counts %d entries, found %d", l, n)
	}
	return n, nil
}

// Delete 删除 p 处的元素, 之后 p 指向原来的下一个元素(或者结束标记)。
func Delete(zl []byte, p int) ([]byte, error) {
	return DeleteN(zl, p, 1)
}

// DeleteN 从 p 开始删除最多 num 个元素
func DeleteN(zl []byte, p int, num int) ([]byte, error) {
	if err := checkHeader(zl); err != nil {
		return zl, err
	}
	if err := checkOffset(zl, p); err != nil {
		return zl, err
	}
	if p == ziplistEntryEnd(zl) || num <= 0 {
		return zl, nil
	}
	return __ziplistDelete(zl, p, num)
}

// DeleteRange 从第 index 个元素开始删除 num 个
func DeleteRange(zl []byte, index, num int) ([]byte, error) {
	p, err := Index(zl, index)
	if err != nil || p == None {
		return zl, err
	}
	return __ziplistDelete(zl, p, num)
}

// Insert 在 p 之前插入 s, p 为结束标记时追加到尾部。s 不能引用 zl 自身的字节。
func Insert(zl []byte, p int, s []byte) ([]byte, error) {
	if err := checkHeader(zl); err != nil {
		return zl, err
	}
	if err := checkOffset(zl, p); err != nil {
		return zl, err
	}
	return __ziplistInsert(zl, p, s)
}

func Push(zl, s []byte, where int) ([]byte, error) {
	if err := checkHeader(zl); err != nil {
		return zl, err
	}
	p := HeaderSize
	if where != Head {
		p = ziplistEntryEnd(zl)
	}
	return __ziplistInsert(zl, p, s)
}
