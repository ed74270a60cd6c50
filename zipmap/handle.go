package zipmap

// Zipmap 持有编码后的缓冲区和记录个数。个数由 Set/Delete 维护,
// 头部只在 Bytes() 时写入, Len() 不会遍历也不会修改缓冲区。
type Zipmap struct {
	zm     []byte
	length int
}

func Empty() *Zipmap {
	return &Zipmap{zm: New()}
}

// Open 校验 buf 并数出记录个数, 之后 buf 归 Zipmap 所有。
func Open(buf []byte) (*Zipmap, error) {
	n, err := validate(buf)
	if err != nil {
		return nil, err
	}
	return &Zipmap{zm: buf, length: n}, nil
}

func (z *Zipmap) Len() int {
	return z.length
}

func (z *Zipmap) Bytes() []byte {
	storeLen(z.zm, z.length)
	return z.zm
}

func (z *Zipmap) Set(key, val []byte) (bool, error) {
	zm, updated, err := Set(z.zm, key, val)
	if err != nil {
		return false, err
	}
	z.zm = zm
	if !updated {
		z.length++
	}
	return updated, nil
}

func (z *Zipmap) Delete(key []byte) (bool, error) {
	zm, deleted, err := Delete(z.zm, key)
	if err != nil {
		return false, err
	}
	z.zm = zm
	if deleted {
		z.length--
	}
	return deleted, nil
}

func (z *Zipmap) Get(key []byte) ([]byte, bool, error) {
	return Get(z.zm, key)
}

func (z *Zipmap) Iterate(fn func(key, value []byte) error) error {
	return Iterate(z.zm, fn)
}
