package util

import (
	"encoding/binary"
	"math"
	"strconv"
)

// Ll2String 把 value 的十进制表示写入 dst，并以 0 字节结尾。
// dst 不够大时截断数字（结尾的 0 字节总会写入），返回值始终是完整表示的长度，
// 调用方可以用返回值 >= len(dst) 判断是否被截断。
func Ll2String(dst []byte, value int64) int {
	var buf [20]byte
	p := len(buf)

	// 用 uint64 计算绝对值, 这样 math.MinInt64 也不会溢出
	v := uint64(value)
	if value < 0 {
		v = -v
	}
	for {
		p--
		buf[p] = '0' + byte(v%10)
		v /= 10
		if v == 0 {
			break
		}
	}
	if value < 0 {
		p--
		buf[p] = '-'
	}

	natural := len(buf) - p
	if len(dst) == 0 {
		return natural
	}
	l := natural
	if l+1 > len(dst) {
		l = len(dst) - 1
	}
	copy(dst, buf[p:p+l])
	dst[l] = 0
	return natural
}

func AppendInt64(dst []byte, value int64) []byte {
	return strconv.AppendInt(dst, value, 10)
}

func Int64ToString(value int64) string {
	return strconv.FormatInt(value, 10)
}

// String2Int64 只接受规范的十进制整数：可选的 '-'，没有前导 0（"0" 本身除外），
// 没有其他字符，并且在 int64 范围内。解析失败时 v 保持不变。
func String2Int64[T []byte | string](str T, v *int64) bool {
	slen := len(str)
	if slen == 0 {
		return false
	}

	if slen == 1 && str[0] == '0' {
		if v != nil {
			*v = 0
		}
		return true
	}

	i := 0
	negative := false
	if str[0] == '-' {
		negative = true
		i++
		if i == slen {
			return false
		}
	}

	// 第一位必须是 1-9, 否则只能是 "0"
	if str[i] < '1' || str[i] > '9' {
		return false
	}
	u := uint64(str[i] - '0')
	i++

	for ; i < slen; i++ {
		c := str[i]
		if c < '0' || c > '9' {
			return false
		}
		if u > math.MaxUint64/10 {
			return false
		}
		u *= 10
		if u > math.MaxUint64-uint64(c-'0') {
			return false
		}
		u += uint64(c - '0')
	}

	var value int64
	if negative {
		if u > uint64(math.MaxInt64)+1 {
			return false
		}
		value = int64(-u)
	} else {
		if u > math.MaxInt64 {
			return false
		}
		value = int64(u)
	}
	if v != nil {
		*v = value
	}
	return true
}

// PutIntLE 以小端序把 value 的低 size 个字节写入 dst，size 取 1/2/3/4/8。
func PutIntLE(dst []byte, value int64, size int) {
	switch size {
	case 1:
		dst[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(value))
	case 3:
		dst[0] = byte(value)
		dst[1] = byte(value >> 8)
		dst[2] = byte(value >> 16)
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(value))
	case 8:
		binary.LittleEndian.PutUint64(dst, uint64(value))
	default:
		panic("util: unknown integer size " + strconv.Itoa(size))
	}
}

// IntLE 读取 size 个字节的小端序有符号整数并做符号扩展。
func IntLE(src []byte, size int) int64 {
	switch size {
	case 1:
		return int64(int8(src[0]))
	case 2:
		return int64(int16(binary.LittleEndian.Uint16(src)))
	case 3:
		// 放进 int32 的高 24 位再算术右移, 得到正确的符号位
		u := uint32(src[0])<<8 | uint32(src[1])<<16 | uint32(src[2])<<24
		return int64(int32(u) >> 8)
	case 4:
		return int64(int32(binary.LittleEndian.Uint32(src)))
	case 8:
		return int64(binary.LittleEndian.Uint64(src))
	}
	panic("util: unknown integer size " + strconv.Itoa(size))
}
