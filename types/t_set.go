package types

import (
	"errors"

	"github.com/pengdafu/rdb-encoding/intset"
	"github.com/pengdafu/rdb-encoding/util"
)

// ErrNotInteger 元素不是规范的整数, 不能放进 intset
var ErrNotInteger = errors.New("value is not representable in an intset")

// SetIterator 按升序遍历 intset
type SetIterator struct {
	cursor
	is *intset.IntSet
	ii int
	v  int64
}

func NewSetIterator(is *intset.IntSet) *SetIterator {
	return &SetIterator{cursor: newCursor(is.Bytes()), is: is}
}

func (si *SetIterator) Next() bool {
	if si.done {
		return false
	}
	if !si.is.Get(si.ii, &si.v) {
		return si.finish()
	}
	si.ii++
	return true
}

func (si *SetIterator) Int() int64 {
	return si.v
}

func (si *SetIterator) Release() error {
	if util.Fingerprint(si.is.Bytes()) != si.fingerprint {
		return ErrModified
	}
	return nil
}

// SetAdd 把 ele 按整数加入 is, ele 必须是规范的十进制整数
func SetAdd(is *intset.IntSet, ele []byte) (bool, error) {
	var llval int64
	if !util.String2Int64(ele, &llval) {
		return false, ErrNotInteger
	}
	var success bool
	is.Add(llval, &success)
	return success, nil
}
