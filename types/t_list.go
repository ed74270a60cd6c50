package types

import (
	"github.com/pengdafu/rdb-encoding/ziplist"
)

type ListIterator struct {
	cursor
	direction int
	zi        int // 下一次 Next 要返回的元素
	entry     ziplist.Value
}

// NewListIterator 从第 index 个元素开始, direction 为 ziplist.Tail 时向尾部移动, ziplist.Head 时向头部移动。
func NewListIterator(zl []byte, index int, direction int) *ListIterator {
	li := &ListIterator{cursor: newCursor(zl), direction: direction}
	if li.zi, li.err = ziplist.Index(zl, index); li.err != nil {
		li.done = true
	}
	return li
}

func (li *ListIterator) Next() bool {
	if li.done || li.zi == ziplist.None {
		return li.finish()
	}

	v, err := ziplist.Get(li.buf, li.zi)
	if err != nil {
		return li.fail(err)
	}
	if li.direction == ziplist.Tail {
		li.zi, err = ziplist.Next(li.buf, li.zi)
	} else {
		li.zi, err = ziplist.Prev(li.buf, li.zi)
	}
	if err != nil {
		return li.fail(err)
	}
	li.entry = v
	return true
}

// Entry 返回当前元素, 字符串直接引用缓冲区
func (li *ListIterator) Entry() ziplist.Value {
	return li.entry
}

func ListLen(zl []byte) (int, error) {
	return ziplist.Len(zl)
}
