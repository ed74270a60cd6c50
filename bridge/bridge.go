// Package bridge 把解码出来的元素交给外部的消费者(脚本引擎、导出工具等)。
//
// 列表和集合一个元素调用一次 PushSequenceValue, hash 和有序集合一对调用一次 PushMapPair。
// 消费者决定这些值最后变成什么。
package bridge

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/pengdafu/rdb-encoding/intset"
	"github.com/pengdafu/rdb-encoding/types"
	"github.com/pengdafu/rdb-encoding/util"
	"github.com/pengdafu/rdb-encoding/ziplist"
	"github.com/pengdafu/rdb-encoding/zipmap"
)

// Pusher 接收解码后的元素。Value 里的字符串引用原缓冲区, 需要保留时由 Pusher 自己拷贝。
type Pusher interface {
	PushSequenceValue(v ziplist.Value, index int) error
	PushMapPair(key, value ziplist.Value) error
}

// Type 是 RDB 文件里紧凑编码对象的类型标记
type Type uint8

const (
	TypeHashZipmap  Type = 9
	TypeListZiplist Type = 10
	TypeSetIntset   Type = 11
	TypeZsetZiplist Type = 12
	TypeHashZiplist Type = 13
)

var typeNames = map[Type]string{
	TypeHashZipmap:  "hash-zipmap",
	TypeListZiplist: "list-ziplist",
	TypeSetIntset:   "set-intset",
	TypeZsetZiplist: "zset-ziplist",
	TypeHashZiplist: "hash-ziplist",
}

// 简写, hash 指 ziplist 编码
var typeAliases = map[string]Type{
	"zipmap": TypeHashZipmap,
	"list":   TypeListZiplist,
	"set":    TypeSetIntset,
	"intset": TypeSetIntset,
	"zset":   TypeZsetZiplist,
	"hash":   TypeHashZiplist,
}

var ErrUnknownType = errors.New("unknown container type")

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return "type-" + strconv.Itoa(int(t))
}

// ParseType 接受类型名(比如 "list-ziplist" 或者简写 "list")或者数字标记
func ParseType(s string) (Type, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		if _, ok := typeNames[Type(n)]; ok {
			return Type(n), nil
		}
		return 0, fmt.Errorf("%w: %d", ErrUnknownType, n)
	}
	if t, ok := typeAliases[s]; ok {
		return t, nil
	}
	for t, name := range typeNames {
		if s == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// PushZiplistListOrSet 按顺序推送每一个元素, index 从 0 开始
func PushZiplistListOrSet(p Pusher, zl []byte) error {
	li := types.NewListIterator(zl, 0, ziplist.Tail)
	for i := 0; li.Next(); i++ {
		if err := p.PushSequenceValue(li.Entry(), i); err != nil {
			return err
		}
	}
	if err := li.Err(); err != nil {
		return err
	}
	return li.Release()
}

// PushZiplistHashOrZset 两个相邻元素组成一对推送。有序集合的分数按原样推送(整数或者文本)。
func PushZiplistHashOrZset(p Pusher, zl []byte) error {
	hi := types.NewHashIterator(zl)
	for hi.Next() {
		if err := p.PushMapPair(hi.Current(types.HashBoth)); err != nil {
			return err
		}
	}
	if err := hi.Err(); err != nil {
		return err
	}
	return hi.Release()
}

func PushIntset(p Pusher, buf []byte) error {
	is, err := intset.Load(buf)
	if err != nil {
		return err
	}
	si := types.NewSetIterator(is)
	for i := 0; si.Next(); i++ {
		if err := p.PushSequenceValue(ziplist.IntValue(si.Int()), i); err != nil {
			return err
		}
	}
	return si.Release()
}

func PushZipmap(p Pusher, zm []byte) error {
	return zipmap.Iterate(zm, func(key, value []byte) error {
		return p.PushMapPair(ziplist.StrValue(key), ziplist.StrValue(value))
	})
}

// Push 按类型标记选择遍历方式, 并记录解码的容器数和失败数。
func Push(p Pusher, typ Type, buf []byte) error {
	var err error
	counting := &countingPusher{Pusher: p}
	switch typ {
	case TypeListZiplist:
		err = PushZiplistListOrSet(counting, buf)
	case TypeZsetZiplist, TypeHashZiplist:
		err = PushZiplistHashOrZset(counting, buf)
	case TypeSetIntset:
		err = PushIntset(counting, buf)
	case TypeHashZipmap:
		err = PushZipmap(counting, buf)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}

	entriesPushed.WithLabelValues(typ.String()).Add(float64(counting.n))
	if err != nil {
		decodeFailures.WithLabelValues(typ.String(), ErrorKind(err)).Inc()
		return err
	}
	containersDecoded.WithLabelValues(typ.String()).Inc()
	return nil
}

// Validate 只检查结构, 不推送元素
func Validate(typ Type, buf []byte) error {
	switch typ {
	case TypeListZiplist:
		return ziplist.Validate(buf)
	case TypeZsetZiplist, TypeHashZiplist:
		z, err := ziplist.Open(buf)
		if err != nil {
			return err
		}
		if z.Len()%2 != 0 {
			return util.DataErrf("ziplist", buf, 0, util.ErrCorrupt, "%d entries cannot form pairs", z.Len())
		}
		return nil
	case TypeSetIntset:
		_, err := intset.Load(buf)
		return err
	case TypeHashZipmap:
		return zipmap.Validate(buf)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, typ)
	}
}

// ErrorKind 把错误归到一个稳定的类别, 用作指标的标签
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, util.ErrMalformedHeader):
		return "malformed_header"
	case errors.Is(err, util.ErrUnsupportedEncoding):
		return "unsupported_encoding"
	case errors.Is(err, util.ErrCorrupt):
		return "corrupt"
	case errors.Is(err, types.ErrModified):
		return "modified"
	default:
		return "other"
	}
}

type countingPusher struct {
	Pusher
	n int
}

func (c *countingPusher) PushSequenceValue(v ziplist.Value, index int) error {
	c.n++
	return c.Pusher.PushSequenceValue(v, index)
}

func (c *countingPusher) PushMapPair(key, value ziplist.Value) error {
	c.n++
	return c.Pusher.PushMapPair(key, value)
}
