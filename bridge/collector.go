package bridge

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pengdafu/rdb-encoding/ziplist"
)

type Pair struct {
	Key, Value ziplist.Value
}

// Collector 把推送的元素拷贝下来, 编码成 msgpack: 列表和集合是数组, hash 和有序集合是保持顺序的 map。
type Collector struct {
	Values []ziplist.Value
	Pairs  []Pair
}

var _ msgpack.CustomEncoder = (*Collector)(nil)

func own(v ziplist.Value) ziplist.Value {
	if v.IsStr {
		v.Str = bytes.Clone(v.Str)
		if v.Str == nil {
			v.Str = []byte{}
		}
	}
	return v
}

func (c *Collector) PushSequenceValue(v ziplist.Value, index int) error {
	if index != len(c.Values) {
		return fmt.Errorf("collector: value pushed at %d, expected %d", index, len(c.Values))
	}
	c.Values = append(c.Values, own(v))
	return nil
}

func (c *Collector) PushMapPair(key, value ziplist.Value) error {
	c.Pairs = append(c.Pairs, Pair{Key: own(key), Value: own(value)})
	return nil
}

func (c *Collector) Reset() {
	c.Values = c.Values[:0]
	c.Pairs = c.Pairs[:0]
}

func encodeValue(enc *msgpack.Encoder, v ziplist.Value) error {
	if v.IsStr {
		return enc.EncodeString(string(v.Str))
	}
	return enc.EncodeInt(v.Int)
}

func (c *Collector) EncodeMsgpack(enc *msgpack.Encoder) error {
	if len(c.Pairs) > 0 {
		if err := enc.EncodeMapLen(len(c.Pairs)); err != nil {
			return err
		}
		for _, p := range c.Pairs {
			if err := encodeValue(enc, p.Key); err != nil {
				return err
			}
			if err := encodeValue(enc, p.Value); err != nil {
				return err
			}
		}
		return nil
	}

	if err := enc.EncodeArrayLen(len(c.Values)); err != nil {
		return err
	}
	for _, v := range c.Values {
		if err := encodeValue(enc, v); err != nil {
			return err
		}
	}
	return nil
}

// AppendMsgpack 把编码结果追加到 buf
func (c *Collector) AppendMsgpack(buf []byte) ([]byte, error) {
	bb := bytes.NewBuffer(buf)
	enc := msgpack.GetEncoder()
	enc.Reset(bb)
	err := c.EncodeMsgpack(enc)
	msgpack.PutEncoder(enc)
	if err != nil {
		return buf, fmt.Errorf("encoding collected values: %w", err)
	}
	return bb.Bytes(), nil
}
