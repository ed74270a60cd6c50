package types

import (
	"bytes"
	"errors"
	"math"
	"strconv"

	"github.com/pengdafu/rdb-encoding/util"
	"github.com/pengdafu/rdb-encoding/ziplist"
)

var ErrNaNScore = errors.New("score is NaN")

// ZsetIterator 遍历 ziplist 编码的有序集合, member 和 score 是相邻的两个元素。
type ZsetIterator struct {
	cursor
	reverse    bool
	eptr, sptr int
	member     ziplist.Value
	score      float64
}

// NewZsetIterator reverse 为 true 时从分数最大的一端开始
func NewZsetIterator(zl []byte, reverse bool) *ZsetIterator {
	return &ZsetIterator{cursor: newCursor(zl), reverse: reverse}
}

func (zi *ZsetIterator) Next() bool {
	if zi.done {
		return false
	}

	var eptr, sptr int
	var err error
	switch {
	case zi.eptr == ziplist.None && !zi.reverse:
		eptr, err = ziplist.Index(zi.buf, 0)
	case zi.eptr == ziplist.None:
		eptr, err = ziplist.Index(zi.buf, -2)
		if err == nil && eptr == ziplist.None {
			// 只有一个元素时 -2 越界, 用 -1 让下面的成对检查报告损坏
			eptr, err = ziplist.Index(zi.buf, -1)
		}
	case !zi.reverse:
		eptr, err = ziplist.Next(zi.buf, zi.sptr)
	default:
		eptr, err = ziplist.Prev(zi.buf, zi.eptr)
		if err == nil && eptr != ziplist.None {
			eptr, err = ziplist.Prev(zi.buf, eptr)
			if err == nil && eptr == ziplist.None {
				err = corrupt("zset", zi.buf, zi.eptr, "score without a member")
			}
		}
	}
	if err != nil {
		return zi.fail(err)
	}
	if eptr == ziplist.None {
		return zi.finish()
	}

	if sptr, err = ziplist.Next(zi.buf, eptr); err != nil {
		return zi.fail(err)
	}
	if sptr == ziplist.None {
		return zi.fail(corrupt("zset", zi.buf, eptr, "member without a score"))
	}

	if zi.member, err = ziplist.Get(zi.buf, eptr); err != nil {
		return zi.fail(err)
	}
	if zi.score, err = zzlGetScore(zi.buf, sptr); err != nil {
		return zi.fail(err)
	}
	zi.eptr, zi.sptr = eptr, sptr
	return true
}

func (zi *ZsetIterator) Member() ziplist.Value {
	return zi.member
}

func (zi *ZsetIterator) Score() float64 {
	return zi.score
}

// zzlGetScore 整数元素直接转换, 字符串元素按浮点数解析
func zzlGetScore(zl []byte, sptr int) (float64, error) {
	v, err := ziplist.Get(zl, sptr)
	if err != nil {
		return 0, err
	}
	if !v.IsStr {
		return float64(v.Int), nil
	}
	// 溢出时 ParseFloat 返回 ±Inf (下溢返回 0), 和 strtod 一样保留这个值
	score, err := strconv.ParseFloat(util.Bytes2String(v.Str), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, corrupt("zset", zl, sptr, "score %q: %v", v.Str, err)
	}
	return score, nil
}

// formatScore 写入的分数格式: 最短的能精确还原的十进制表示, 整数分数会被 ziplist 存成整数
func formatScore(score float64) []byte {
	switch {
	case math.IsInf(score, 1):
		return []byte("inf")
	case math.IsInf(score, -1):
		return []byte("-inf")
	}
	return strconv.AppendFloat(nil, score, 'g', -1, 64)
}

// ZsetPush 按 (score, member) 的顺序插入, member 不能已经存在。调用方必须使用返回的切片。
func ZsetPush(zl []byte, member []byte, score float64) ([]byte, error) {
	if math.IsNaN(score) {
		return zl, ErrNaNScore
	}

	eptr, err := ziplist.Index(zl, 0)
	for err == nil && eptr != ziplist.None {
		var sptr int
		if sptr, err = ziplist.Next(zl, eptr); err != nil {
			break
		}
		if sptr == ziplist.None {
			return zl, corrupt("zset", zl, eptr, "member without a score")
		}
		var s float64
		if s, err = zzlGetScore(zl, sptr); err != nil {
			break
		}
		if s > score {
			return zzlInsertAt(zl, eptr, member, score)
		}
		if s == score {
			m, err := ziplist.EntryText(zl, eptr)
			if err != nil {
				return zl, err
			}
			if bytes.Compare(m, member) > 0 {
				return zzlInsertAt(zl, eptr, member, score)
			}
		}
		eptr, err = ziplist.Next(zl, sptr)
	}
	if err != nil {
		return zl, err
	}

	end, err := ziplist.End(zl)
	if err != nil {
		return zl, err
	}
	return zzlInsertAt(zl, end, member, score)
}

// zzlInsertAt 在 eptr 之前插入 member 和 score
func zzlInsertAt(zl []byte, eptr int, member []byte, score float64) ([]byte, error) {
	zl, err := ziplist.Insert(zl, eptr, member)
	if err != nil {
		return zl, err
	}
	// member 占据了 eptr, score 插在它后面
	sptr, err := ziplist.Next(zl, eptr)
	if err != nil {
		return zl, err
	}
	if sptr == ziplist.None {
		if sptr, err = ziplist.End(zl); err != nil {
			return zl, err
		}
	}
	return ziplist.Insert(zl, sptr, formatScore(score))
}

// ZsetLen 返回 member 的个数
func ZsetLen(zl []byte) (int, error) {
	n, err := ziplist.Len(zl)
	if err != nil {
		return 0, err
	}
	if n%2 != 0 {
		return 0, corrupt("zset", zl, 0, "odd number of entries (%d)", n)
	}
	return n / 2, nil
}
