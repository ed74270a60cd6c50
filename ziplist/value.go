package ziplist

import (
	"github.com/pengdafu/rdb-encoding/util"
)

// Value 是解码后的元素: 字符串(Str 引用原缓冲区)或者整数。
type Value struct {
	Str   []byte
	Int   int64
	IsStr bool
}

func StrValue(s []byte) Value {
	return Value{Str: s, IsStr: true}
}

func IntValue(v int64) Value {
	return Value{Int: v}
}

// AppendText 把元素的文本形式追加到 dst
func (v Value) AppendText(dst []byte) []byte {
	if v.IsStr {
		return append(dst, v.Str...)
	}
	return util.AppendInt64(dst, v.Int)
}

// Text 返回文本形式。字符串元素直接返回 Str, 不做拷贝。
func (v Value) Text() []byte {
	if v.IsStr {
		return v.Str
	}
	return v.AppendText(nil)
}

func (v Value) String() string {
	if v.IsStr {
		return string(v.Str)
	}
	return util.Int64ToString(v.Int)
}

// Equal 按照 ziplist 的比较规则: 字符串逐字节比较, 整数比较数值
func (v Value) Equal(o Value) bool {
	if v.IsStr != o.IsStr {
		return false
	}
	if v.IsStr {
		return string(v.Str) == string(o.Str)
	}
	return v.Int == o.Int
}
