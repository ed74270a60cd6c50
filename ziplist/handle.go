package ziplist

// Ziplist 持有编码后的缓冲区, 元素个数由每一次修改增量维护。
// 头部的 count 字段只在 Bytes() 时写入, 所以 Len() 既不会遍历, 也不会改写缓冲区。
type Ziplist struct {
	zl     []byte
	length int
}

func Empty() *Ziplist {
	return &Ziplist{zl: New()}
}

// Open 校验 buf 并数出元素个数。之后 buf 归 Ziplist 所有, 调用方不能再修改它。
func Open(buf []byte) (*Ziplist, error) {
	n, err := validate(buf)
	if err != nil {
		return nil, err
	}
	return &Ziplist{zl: buf[:ziplistBytes(buf)], length: n}, nil
}

func (z *Ziplist) Len() int {
	return z.length
}

// Bytes 返回编码结果, count 字段在这里写入(超过 65534 时写入哨兵值)。
func (z *Ziplist) Bytes() []byte {
	n := z.length
	if n > lengthUnknown {
		n = lengthUnknown
	}
	setZiplistLength(z.zl, n)
	return z.zl
}

func (z *Ziplist) Push(s []byte, where int) error {
	zl, err := Push(z.zl, s, where)
	if err != nil {
		return err
	}
	z.zl = zl
	z.length++
	return nil
}

func (z *Ziplist) Insert(p int, s []byte) error {
	zl, err := Insert(z.zl, p, s)
	if err != nil {
		return err
	}
	z.zl = zl
	z.length++
	return nil
}

// Delete 删除 p 处的元素, 返回下一个元素的偏移(可能是结束标记)。
func (z *Ziplist) Delete(p int) (int, error) {
	if p == ziplistEntryEnd(z.zl) {
		return p, nil
	}
	zl, err := Delete(z.zl, p)
	if err != nil {
		return p, err
	}
	z.zl = zl
	z.length--
	return p, nil
}

func (z *Ziplist) Index(i int) (int, error) {
	return Index(z.zl, i)
}

func (z *Ziplist) Next(p int) (int, error) {
	return Next(z.zl, p)
}

func (z *Ziplist) Prev(p int) (int, error) {
	return Prev(z.zl, p)
}

func (z *Ziplist) Get(p int) (Value, error) {
	return Get(z.zl, p)
}

func (z *Ziplist) End() int {
	return ziplistEntryEnd(z.zl)
}
