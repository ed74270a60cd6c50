package intset

import (
	"encoding/binary"
	"math"

	"github.com/pengdafu/rdb-encoding/util"
)

// IntSet 是有序不重复的定长整数数组, 编码宽度随插入的值自动升级。
// 序列化格式: encoding u32 LE, length u32 LE, 然后是 length 个小端序整数。
type IntSet struct {
	encoding uint32
	length   uint32
	contents []byte
}

const (
	EncInt16 = 2
	EncInt32 = 4
	EncInt64 = 8
)

const HeaderSize = 4 + 4

func New() *IntSet {
	is := &IntSet{}
	is.encoding = EncInt16
	is.length = 0
	return is
}

func corrupt(buf []byte, off int, err error, msg string, args ...any) error {
	return util.DataErrf("intset", buf, off, err, msg, args...)
}

// Load 校验 buf 并在其上构造 IntSet。读操作直接引用 buf, 修改操作总是先拷贝, 不会改写 buf。
func Load(buf []byte) (*IntSet, error) {
	if len(buf) < HeaderSize {
		return nil, corrupt(buf, 0, util.ErrMalformedHeader, "buffer of %d bytes is shorter than the header", len(buf))
	}
	enc := binary.LittleEndian.Uint32(buf[0:])
	if enc != EncInt16 && enc != EncInt32 && enc != EncInt64 {
		return nil, corrupt(buf, 0, util.ErrUnsupportedEncoding, "encoding width %d", enc)
	}
	length := binary.LittleEndian.Uint32(buf[4:])
	size := uint64(length) * uint64(enc)
	if uint64(len(buf)-HeaderSize) != size {
		return nil, corrupt(buf, 4, util.ErrMalformedHeader, "%d elements of %d bytes need %d bytes, have %d", length, enc, size, len(buf)-HeaderSize)
	}

	is := &IntSet{encoding: enc, length: length, contents: buf[HeaderSize:len(buf):len(buf)]}
	for i := 1; i < int(length); i++ {
		if is.get(i-1) >= is.get(i) {
			return nil, corrupt(buf, HeaderSize+i*int(enc), util.ErrCorrupt, "element %d is not greater than its predecessor", i)
		}
	}
	return is, nil
}

// Bytes 返回序列化后的新缓冲区
func (is *IntSet) Bytes() []byte {
	buf := make([]byte, HeaderSize+len(is.contents))
	binary.LittleEndian.PutUint32(buf[0:], is.encoding)
	binary.LittleEndian.PutUint32(buf[4:], is.length)
	copy(buf[HeaderSize:], is.contents)
	return buf
}

func (is *IntSet) Encoding() int {
	return int(is.encoding)
}

func _intsetValueEncoding(v int64) uint32 {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return EncInt64
	} else if v < math.MinInt16 || v > math.MaxInt16 {
		return EncInt32
	} else {
		return EncInt16
	}
}

func (is *IntSet) set(pos int, value int64) {
	util.PutIntLE(is.contents[pos*int(is.encoding):], value, int(is.encoding))
}

// resize 总是分配新的数组, 所以 Load 进来的缓冲区不会被修改
func (is *IntSet) resize(_len uint32) {
	contents := make([]byte, int(_len)*int(is.encoding))
	copy(contents, is.contents)
	is.contents = contents
}

func (is *IntSet) getEncoded(pos int, enc uint32) int64 {
	return util.IntLE(is.contents[pos*int(enc):], int(enc))
}

func (is *IntSet) get(pos int) int64 {
	return is.getEncoded(pos, is.encoding)
}

func (is *IntSet) upgradeAndAdd(value int64) *IntSet {
	curEnc := is.encoding
	newEnc := _intsetValueEncoding(value)

	length := int(is.length)
	prepend := 0
	if value < 0 {
		prepend = 1
	}

	old := is.contents
	is.encoding = newEnc
	is.contents = make([]byte, (length+1)*int(newEnc))

	for i := 0; i < length; i++ {
		is.set(i+prepend, util.IntLE(old[i*int(curEnc):], int(curEnc)))
	}

	// 升级的值一定比现有的都小(负数)或者都大
	if prepend > 0 {
		is.set(0, value)
	} else {
		is.set(length, value)
	}
	is.length++
	return is
}

func (is *IntSet) search(value int64, pos *int) bool {
	min := 0
	max := int(is.length) - 1
	if is.length == 0 {
		if pos != nil {
			*pos = 0
		}
		return false
	}

	if value > is.get(max) {
		if pos != nil {
			*pos = int(is.length)
		}
		return false
	} else if value < is.get(0) {
		if pos != nil {
			*pos = 0
		}
		return false
	}

	var mid int
	var cur int64
	for max >= min {
		mid = (max + min) >> 1
		cur = is.get(mid)
		if value > cur {
			min = mid + 1
		} else if value < cur {
			max = mid - 1
		} else {
			break
		}
	}

	if value == cur {
		if pos != nil {
			*pos = mid
		}
		return true
	}
	if pos != nil {
		*pos = min
	}
	return false
}

func (is *IntSet) moveTail(from, to int) {
	enc := int(is.encoding)
	src := from * enc
	dst := to * enc
	copy(is.contents[dst:], is.contents[src:int(is.length)*enc])
}

func (is *IntSet) Add(value int64, success *bool) *IntSet {
	valenc := _intsetValueEncoding(value)
	if success != nil {
		*success = true
	}

	var pos int
	if valenc > is.encoding {
		return is.upgradeAndAdd(value)
	} else {
		if is.search(value, &pos) {
			if success != nil {
				*success = false
			}
			return is
		}
		is.resize(is.length + 1)
		if pos < int(is.length) {
			is.moveTail(pos, pos+1)
		}
	}
	is.set(pos, value)
	is.length++
	return is
}

func (is *IntSet) Len() int {
	return int(is.length)
}

// Get 读取第 pos 个元素, pos 越界时返回 false
func (is *IntSet) Get(pos int, value *int64) bool {
	if pos >= 0 && pos < int(is.length) {
		*value = is.get(pos)
		return true
	}
	return false
}

func (is *IntSet) Find(value int64) bool {
	return _intsetValueEncoding(value) <= is.encoding && is.search(value, nil)
}

func (is *IntSet) Remove(value int64, success *bool) *IntSet {
	valEnc := _intsetValueEncoding(value)
	if success != nil {
		*success = false
	}

	var pos int
	if valEnc <= is.encoding && is.search(value, &pos) {
		if success != nil {
			*success = true
		}
		enc := int(is.encoding)
		contents := make([]byte, 0, len(is.contents)-enc)
		contents = append(contents, is.contents[:pos*enc]...)
		is.contents = append(contents, is.contents[(pos+1)*enc:]...)
		is.length--
	}
	return is
}
