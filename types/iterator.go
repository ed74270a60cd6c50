// Package types 在 ziplist 和 intset 之上实现 list/hash/set/zset 的游标。
//
// 所有游标都是同一个状态机: 创建之后没有当前元素, 每次 Next() 返回 true 时
// 定位到下一个元素, 返回 false 之后游标结束, 之后的 Next() 都返回 false。
// 想重新遍历就创建新的游标。
//
// 游标借用缓冲区, 不做拷贝。Release() 检查缓冲区在游标存活期间是否被修改过。
package types

import (
	"errors"

	"github.com/pengdafu/rdb-encoding/util"
)

// ErrModified 游标存活期间底层缓冲区被修改
var ErrModified = errors.New("container modified during iteration")

type cursor struct {
	buf         []byte
	fingerprint uint64
	err         error
	done        bool
}

func newCursor(buf []byte) cursor {
	return cursor{buf: buf, fingerprint: util.Fingerprint(buf)}
}

func (c *cursor) fail(err error) bool {
	c.err = err
	c.done = true
	return false
}

func (c *cursor) finish() bool {
	c.done = true
	return false
}

// Err 返回让游标提前结束的解码错误
func (c *cursor) Err() error {
	return c.err
}

// Release 在缓冲区被修改过时返回 ErrModified
func (c *cursor) Release() error {
	if util.Fingerprint(c.buf) != c.fingerprint {
		return ErrModified
	}
	return nil
}

func corrupt(format string, buf []byte, off int, msg string, args ...any) error {
	return util.DataErrf(format, buf, off, util.ErrCorrupt, msg, args...)
}
