package zipmap

// New 返回一个空的 zipmap (单字节头部)
func New() []byte {
	return []byte{0, zipmapEnd}
}

// NewExtended 返回一个空的三字节头部的 zipmap
func NewExtended() []byte {
	return []byte{zipmapEnd, 0, 0, zipmapEnd}
}

func zipmapRequiredLength(klen, vlen int) int {
	l := klen + vlen + 3
	if klen >= zipmapBigLen {
		l += 4
	}
	if vlen >= zipmapBigLen {
		l += 4
	}
	return l
}

func zipmapResize(zm []byte, _len int) []byte {
	if _len <= cap(zm) {
		zm = zm[:_len]
	} else {
		n := make([]byte, _len, max(_len, 2*cap(zm)))
		copy(n, zm)
		zm = n
	}
	zm[_len-1] = zipmapEnd
	return zm
}

func incrLen(zm []byte, incr int) {
	if n, ok := cachedLen(zm); ok {
		storeLen(zm, n+incr)
	}
}

// rawEntryLength p 处 key/value 两条记录加上空闲字节的总长度
func rawEntryLength(zm []byte, p int) (int, error) {
	_, _, next, err := Next(zm, p)
	if err != nil {
		return 0, err
	}
	return next - p, nil
}

// Set 设置 key 的值, updated 表示 key 已经存在。
// 新的 value 放得进原来的位置时原地更新, 多出来的空间少于 3 字节时留作空闲字节。
// 和 append 一样, 调用方必须使用返回的切片。
func Set(zm []byte, key, val []byte) (_ []byte, updated bool, err error) {
	reqlen := zipmapRequiredLength(len(key), len(val))
	freelen := reqlen

	p, end, err := lookup(zm, key)
	if err != nil {
		return zm, false, err
	}
	// 结束标记之后的字节不属于 zipmap
	zmlen := end + 1
	if p == None {
		zm = zipmapResize(zm[:zmlen], zmlen+reqlen)
		p = end
		zmlen += reqlen
		incrLen(zm, 1)
	} else {
		updated = true
		if freelen, err = rawEntryLength(zm, p); err != nil {
			return zm, false, err
		}
		if freelen < reqlen {
			zm = zipmapResize(zm[:zmlen], zmlen-freelen+reqlen)
			copy(zm[p+reqlen:], zm[p+freelen:zmlen-1])
			zmlen = zmlen - freelen + reqlen
			freelen = reqlen
		}
	}

	empty := freelen - reqlen
	vempty := empty
	if empty >= zipmapValueMaxFree {
		copy(zm[p+reqlen:], zm[p+freelen:zmlen-1])
		zmlen -= empty
		zm = zipmapResize(zm[:zmlen+empty], zmlen)
		vempty = 0
	}

	p += zipmapEncodeLength(zm[p:], len(key))
	p += copy(zm[p:], key)
	p += zipmapEncodeLength(zm[p:], len(val))
	zm[p] = byte(vempty)
	p++
	copy(zm[p:], val)
	return zm, updated, nil
}

// Delete 删除 key, deleted 表示 key 存在
func Delete(zm []byte, key []byte) (_ []byte, deleted bool, err error) {
	p, end, err := lookup(zm, key)
	if err != nil || p == None {
		return zm, false, err
	}
	freelen, err := rawEntryLength(zm, p)
	if err != nil {
		return zm, false, err
	}
	zmlen := end + 1
	copy(zm[p:], zm[p+freelen:zmlen-1])
	zm = zipmapResize(zm, zmlen-freelen)
	incrLen(zm, -1)
	return zm, true, nil
}
