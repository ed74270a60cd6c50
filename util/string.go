package util

import "unsafe"

// Bytes2String 零拷贝转换, b 之后不能再被修改
func Bytes2String(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
