package types

import (
	"github.com/pengdafu/rdb-encoding/ziplist"
)

const (
	HashKey   = 1
	HashValue = 2
	HashBoth  = HashKey | HashValue
)

// HashIterator 遍历 ziplist 编码的 hash, field 和 value 是相邻的两个元素。
type HashIterator struct {
	cursor
	fptr, vptr   int
	field, value ziplist.Value
}

func NewHashIterator(zl []byte) *HashIterator {
	return &HashIterator{cursor: newCursor(zl)}
}

func (hi *HashIterator) Next() bool {
	if hi.done {
		return false
	}

	var fptr int
	var err error
	if hi.fptr == ziplist.None {
		fptr, err = ziplist.Index(hi.buf, 0)
	} else {
		fptr, err = ziplist.Next(hi.buf, hi.vptr)
	}
	if err != nil {
		return hi.fail(err)
	}
	if fptr == ziplist.None {
		return hi.finish()
	}

	vptr, err := ziplist.Next(hi.buf, fptr)
	if err != nil {
		return hi.fail(err)
	}
	if vptr == ziplist.None {
		return hi.fail(corrupt("hash", hi.buf, fptr, "field without a value"))
	}

	if hi.field, err = ziplist.Get(hi.buf, fptr); err != nil {
		return hi.fail(err)
	}
	if hi.value, err = ziplist.Get(hi.buf, vptr); err != nil {
		return hi.fail(err)
	}
	hi.fptr, hi.vptr = fptr, vptr
	return true
}

// Current 返回 what 选中的部分, 没有选中的部分是零值
func (hi *HashIterator) Current(what int) (field, value ziplist.Value) {
	if what&HashKey > 0 {
		field = hi.field
	}
	if what&HashValue > 0 {
		value = hi.value
	}
	return field, value
}

// CurrentString what 包含 HashKey 时返回 field 的文本, 否则返回 value 的文本
func (hi *HashIterator) CurrentString(what int) string {
	if what&HashKey > 0 {
		return hi.field.String()
	}
	return hi.value.String()
}

// HashGet 线性查找 field
func HashGet(zl []byte, field []byte) (ziplist.Value, bool, error) {
	fptr, err := ziplist.Index(zl, 0)
	if err != nil || fptr == ziplist.None {
		return ziplist.Value{}, false, err
	}
	if fptr, err = ziplist.Find(zl, fptr, field, 1); err != nil || fptr == ziplist.None {
		return ziplist.Value{}, false, err
	}
	vptr, err := ziplist.Next(zl, fptr)
	if err != nil {
		return ziplist.Value{}, false, err
	}
	if vptr == ziplist.None {
		return ziplist.Value{}, false, corrupt("hash", zl, fptr, "field without a value")
	}
	v, err := ziplist.Get(zl, vptr)
	return v, err == nil, err
}

// HashSet 设置 field 的值, update 表示 field 已经存在。调用方必须使用返回的切片。
func HashSet(zl []byte, field, value []byte) (_ []byte, update bool, err error) {
	fptr, err := ziplist.Index(zl, 0)
	if err != nil {
		return zl, false, err
	}
	if fptr != ziplist.None {
		if fptr, err = ziplist.Find(zl, fptr, field, 1); err != nil {
			return zl, false, err
		}
		if fptr != ziplist.None {
			vptr, err := ziplist.Next(zl, fptr)
			if err != nil {
				return zl, false, err
			}
			if vptr == ziplist.None {
				return zl, false, corrupt("hash", zl, fptr, "field without a value")
			}
			update = true

			// 删除之后 vptr 指向下一个元素, 在那里插入新的 value
			if zl, err = ziplist.Delete(zl, vptr); err != nil {
				return zl, false, err
			}
			if zl, err = ziplist.Insert(zl, vptr, value); err != nil {
				return zl, false, err
			}
		}
	}

	if !update {
		if zl, err = ziplist.Push(zl, field, ziplist.Tail); err != nil {
			return zl, false, err
		}
		if zl, err = ziplist.Push(zl, value, ziplist.Tail); err != nil {
			return zl, false, err
		}
	}
	return zl, update, nil
}

// HashLen 返回 field 的个数
func HashLen(zl []byte) (int, error) {
	n, err := ziplist.Len(zl)
	if err != nil {
		return 0, err
	}
	if n%2 != 0 {
		return 0, corrupt("hash", zl, 0, "odd number of entries (%d)", n)
	}
	return n / 2, nil
}
