package ziplist

import (
	"encoding/binary"
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pengdafu/rdb-encoding/util"
)

func build(t *testing.T, entries ...string) []byte {
	t.Helper()
	zl := New()
	var err error
	for _, e := range entries {
		if zl, err = Push(zl, []byte(e), Tail); err != nil {
			t.Fatalf("Push(%q): %s", e, err)
		}
	}
	return zl
}

func forward(t *testing.T, zl []byte) []string {
	t.Helper()
	var out []string
	p, err := Index(zl, 0)
	for ; err == nil && p != None; p, err = Next(zl, p) {
		v, err := Get(zl, p)
		if err != nil {
			t.Fatalf("Get(%d): %s", p, err)
		}
		out = append(out, v.String())
	}
	if err != nil {
		t.Fatalf("walking forward: %s", err)
	}
	return out
}

func backward(t *testing.T, zl []byte) []string {
	t.Helper()
	var out []string
	end, err := End(zl)
	if err != nil {
		t.Fatal(err)
	}
	p, err := Prev(zl, end)
	for ; err == nil && p != None; p, err = Prev(zl, p) {
		v, err := Get(zl, p)
		if err != nil {
			t.Fatalf("Get(%d): %s", p, err)
		}
		out = append(out, v.String())
	}
	if err != nil {
		t.Fatalf("walking backward: %s", err)
	}
	return out
}

func reversed(s []string) []string {
	r := make([]string, len(s))
	for i, v := range s {
		r[len(s)-1-i] = v
	}
	return r
}

func TestNew(t *testing.T) {
	zl := New()
	if ziplistBytes(zl) != 11 || ziplistTailOffset(zl) != HeaderSize || ziplistLength(zl) != 0 {
		t.Fatalf("unexpected header %x", zl)
	}
	if err := Validate(zl); err != nil {
		t.Fatal(err)
	}
	if n, err := Len(zl); err != nil || n != 0 {
		t.Fatalf("Len = %d, %v", n, err)
	}
	for _, i := range []int{0, 1, -1} {
		if p, err := Index(zl, i); err != nil || p != None {
			t.Errorf("Index(%d) = %d, %v on an empty ziplist", i, p, err)
		}
	}
	if p, err := Prev(zl, HeaderSize); err != nil || p != None {
		t.Errorf("Prev(end) = %d, %v on an empty ziplist", p, err)
	}
	if _, err := Get(zl, HeaderSize); !errors.Is(err, util.ErrNoEntry) {
		t.Errorf("Get(end) = %v, wanted ErrNoEntry", err)
	}
}

func TestEndToEnd(t *testing.T) {
	long := strings.Repeat("verylongstringvalueexceeding63bytes", 3)
	zl := build(t, "foo", "17", long, "-1")

	want := []Value{StrValue([]byte("foo")), IntValue(17), StrValue([]byte(long)), IntValue(-1)}
	for i, w := range want {
		p, err := Index(zl, i)
		if err != nil || p == None {
			t.Fatalf("Index(%d) = %d, %v", i, p, err)
		}
		v, err := Get(zl, p)
		if err != nil {
			t.Fatal(err)
		}
		if !v.Equal(w) {
			t.Errorf("entry %d = %v, wanted %v", i, v, w)
		}
	}

	texts := []string{"foo", "17", long, "-1"}
	if diff := cmp.Diff(texts, forward(t, zl)); diff != "" {
		t.Errorf("forward walk differs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(reversed(texts), backward(t, zl)); diff != "" {
		t.Errorf("backward walk differs (-want +got):\n%s", diff)
	}
	if p, _ := Index(zl, 4); p != None {
		t.Errorf("Index(4) = %d, wanted None", p)
	}
	if p, _ := Index(zl, -5); p != None {
		t.Errorf("Index(-5) = %d, wanted None", p)
	}
	if err := Validate(zl); err != nil {
		t.Fatal(err)
	}
}

func TestIntegerEncodings(t *testing.T) {
	cases := []struct {
		v        int64
		encoding uint8
		size     int
	}{
		{0, 0xf1, 0},
		{12, 0xfd, 0},
		{13, zipInt8B, 1},
		{-1, zipInt8B, 1},
		{math.MaxInt8, zipInt8B, 1},
		{math.MinInt8, zipInt8B, 1},
		{math.MaxInt8 + 1, zipInt16B, 2},
		{math.MinInt8 - 1, zipInt16B, 2},
		{math.MaxInt16, zipInt16B, 2},
		{math.MinInt16, zipInt16B, 2},
		{math.MaxInt16 + 1, zipInt24B, 3},
		{int24Max, zipInt24B, 3},
		{int24Min, zipInt24B, 3},
		{-2, zipInt8B, 1},
		{int24Max + 1, zipInt32B, 4},
		{int24Min - 1, zipInt32B, 4},
		{math.MaxInt32, zipInt32B, 4},
		{math.MinInt32, zipInt32B, 4},
		{math.MaxInt32 + 1, zipInt64B, 8},
		{math.MaxInt64, zipInt64B, 8},
		{math.MinInt64, zipInt64B, 8},
	}
	for _, c := range cases {
		zl := build(t, strconv.FormatInt(c.v, 10))
		if enc := zl[HeaderSize+1]; enc != c.encoding {
			t.Errorf("%d encoded with %#02x, wanted %#02x", c.v, enc, c.encoding)
		}
		if n, err := EntrySize(zl, HeaderSize); err != nil || n != 2+c.size {
			t.Errorf("EntrySize(%d) = %d, %v, wanted %d", c.v, n, err, 2+c.size)
		}
		v, err := Get(zl, HeaderSize)
		if err != nil {
			t.Fatal(err)
		}
		if v.IsStr || v.Int != c.v {
			t.Errorf("Get = %+v, wanted integer %d", v, c.v)
		}
		if text, _ := EntryText(zl, HeaderSize); string(text) != strconv.FormatInt(c.v, 10) {
			t.Errorf("EntryText = %q", text)
		}
	}

	// 不规范的整数文本按字符串保存
	for _, s := range []string{"007", "-0", "+1", "1.5", " 1"} {
		zl := build(t, s)
		isStr, err := EntryIsStr(zl, HeaderSize)
		if err != nil || !isStr {
			t.Errorf("%q stored as an integer", s)
		}
	}
}

func TestStringEncodings(t *testing.T) {
	cases := []struct {
		n      int
		header int
		first  byte
	}{
		{0, 1, 0x00},
		{1, 1, 0x01},
		{63, 1, 0x3f},
		{64, 2, 0x40},
		{16383, 2, 0x7f},
		{16384, 5, 0x80},
	}
	for _, c := range cases {
		s := strings.Repeat("x", c.n)
		zl := build(t, s)
		if zl[HeaderSize+1] != c.first {
			t.Errorf("len %d: first header byte %#02x, wanted %#02x", c.n, zl[HeaderSize+1], c.first)
		}
		if n, _ := EntrySize(zl, HeaderSize); n != 1+c.header+c.n {
			t.Errorf("len %d: EntrySize = %d, wanted %d", c.n, n, 1+c.header+c.n)
		}
		v, err := Get(zl, HeaderSize)
		if err != nil {
			t.Fatal(err)
		}
		if !v.IsStr || string(v.Str) != s {
			t.Errorf("len %d: Get returned %d bytes, IsStr %v", c.n, len(v.Str), v.IsStr)
		}
	}

	// 32 bit 长度是大端序
	zl := build(t, strings.Repeat("y", 70000))
	if got := binary.BigEndian.Uint32(zl[HeaderSize+2:]); got != 70000 {
		t.Fatalf("32 bit length = %d", got)
	}
}

func TestNavigationSymmetry(t *testing.T) {
	var entries []string
	for n := 1; n <= 20; n++ {
		switch n % 3 {
		case 0:
			entries = append(entries, strings.Repeat("z", 250+n))
		case 1:
			entries = append(entries, strconv.Itoa(n*100000))
		default:
			entries = append(entries, "s"+strconv.Itoa(n))
		}
		zl := build(t, entries...)

		head, err := Index(zl, 0)
		if err != nil || head != HeaderSize {
			t.Fatalf("n=%d: Index(0) = %d, %v", n, head, err)
		}
		p := head
		for i := 0; i < n-1; i++ {
			if p, err = Next(zl, p); err != nil || p == None {
				t.Fatalf("n=%d: Next step %d = %d, %v", n, i, p, err)
			}
		}
		last, err := Index(zl, -1)
		if err != nil || last != p {
			t.Fatalf("n=%d: Index(-1) = %d, forward walk reached %d", n, last, p)
		}
		if q, err := Next(zl, last); err != nil || q != None {
			t.Fatalf("n=%d: Next(last) = %d, %v", n, q, err)
		}
		for i := 0; i < n-1; i++ {
			if p, err = Prev(zl, p); err != nil || p == None {
				t.Fatalf("n=%d: Prev step %d = %d, %v", n, i, p, err)
			}
		}
		if p != head {
			t.Fatalf("n=%d: backward walk ended at %d", n, p)
		}
		if q, err := Prev(zl, head); err != nil || q != None {
			t.Fatalf("n=%d: Prev(head) = %d, %v", n, q, err)
		}
		for i := 0; i < n; i++ {
			a, _ := Index(zl, i)
			b, _ := Index(zl, i-n)
			if a != b || a == None {
				t.Fatalf("n=%d: Index(%d) = %d, Index(%d) = %d", n, i, a, i-n, b)
			}
		}
		if err := Validate(zl); err != nil {
			t.Fatalf("n=%d: %s", n, err)
		}
	}
}

func TestLengthSentinel(t *testing.T) {
	const total = 70000
	zl := New()
	var err error
	for i := 0; i < total; i++ {
		if zl, err = Push(zl, []byte("a"), Tail); err != nil {
			t.Fatal(err)
		}
	}
	if ziplistLength(zl) != lengthUnknown {
		t.Fatalf("cached count = %d, wanted the sentinel", ziplistLength(zl))
	}
	n, err := Len(zl)
	if err != nil || n != total {
		t.Fatalf("Len = %d, %v", n, err)
	}
	if ziplistLength(zl) != lengthUnknown {
		t.Fatalf("count written back although it does not fit")
	}

	steps := 0
	for p, _ := Index(zl, 0); p != None; p, _ = Next(zl, p) {
		steps++
	}
	if steps != n {
		t.Fatalf("Next walk counted %d, Len %d", steps, n)
	}

	if zl, err = DeleteRange(zl, 0, 5001); err != nil {
		t.Fatal(err)
	}
	if ziplistLength(zl) != lengthUnknown {
		t.Fatalf("delete changed the sentinel to %d", ziplistLength(zl))
	}
	if n, err = Len(zl); err != nil || n != total-5001 {
		t.Fatalf("Len after delete = %d, %v", n, err)
	}
	if ziplistLength(zl) != total-5001 {
		t.Fatalf("count not written back: %d", ziplistLength(zl))
	}
	if err := Validate(zl); err != nil {
		t.Fatal(err)
	}
}

func TestCascadeUpdate(t *testing.T) {
	small := strings.Repeat("m", 250)
	zl := build(t, small, small, small, small)
	for i := 0; i < 4; i++ {
		p, _ := Index(zl, i)
		if n, _ := EntrySize(zl, p); n != 253 {
			t.Fatalf("entry %d has %d bytes before the update", i, n)
		}
	}

	big := strings.Repeat("B", 300)
	var err error
	if zl, err = Push(zl, []byte(big), Head); err != nil {
		t.Fatal(err)
	}
	if err := Validate(zl); err != nil {
		t.Fatalf("after head insert: %s", err)
	}
	for i := 1; i < 5; i++ {
		p, _ := Index(zl, i)
		if n, _ := EntrySize(zl, p); n != 257 {
			t.Errorf("entry %d has %d bytes, wanted 257 after the cascade", i, n)
		}
	}
	want := []string{big, small, small, small, small}
	if diff := cmp.Diff(want, forward(t, zl)); diff != "" {
		t.Errorf("forward (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(reversed(want), backward(t, zl)); diff != "" {
		t.Errorf("backward (-want +got):\n%s", diff)
	}

	// 删除之后 prevlen 字段保持 5 字节, 不会反向收缩
	if zl, err = Delete(zl, HeaderSize); err != nil {
		t.Fatal(err)
	}
	if err := Validate(zl); err != nil {
		t.Fatalf("after head delete: %s", err)
	}
	if diff := cmp.Diff(want[1:], forward(t, zl)); diff != "" {
		t.Errorf("forward after delete (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(reversed(want[1:]), backward(t, zl)); diff != "" {
		t.Errorf("backward after delete (-want +got):\n%s", diff)
	}
}

func TestInsertDelete(t *testing.T) {
	zl := build(t, "a", "b", "c", "1000")
	p, err := Find(zl, HeaderSize, []byte("b"), 0)
	if err != nil || p == None {
		t.Fatalf("Find(b) = %d, %v", p, err)
	}
	if zl, err = Insert(zl, p, []byte(strings.Repeat("x", 260))); err != nil {
		t.Fatal(err)
	}
	long := strings.Repeat("x", 260)
	if diff := cmp.Diff([]string{"a", long, "b", "c", "1000"}, forward(t, zl)); diff != "" {
		t.Fatalf("after insert (-want +got):\n%s", diff)
	}
	if err := Validate(zl); err != nil {
		t.Fatal(err)
	}

	if zl, err = Delete(zl, p); err != nil {
		t.Fatal(err)
	}
	if v, err := Get(zl, p); err != nil || v.String() != "b" {
		t.Fatalf("after Delete the offset holds %v, %v", v, err)
	}
	if err := Validate(zl); err != nil {
		t.Fatal(err)
	}

	end, _ := End(zl)
	if zl, err = Insert(zl, end, []byte("z")); err != nil {
		t.Fatal(err)
	}
	if zl, err = DeleteRange(zl, 1, 2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "1000", "z"}, forward(t, zl)); diff != "" {
		t.Fatalf("after range delete (-want +got):\n%s", diff)
	}
	if zl, err = DeleteRange(zl, -1, 10); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"1000", "a"}, backward(t, zl)); diff != "" {
		t.Fatalf("after tail delete (-want +got):\n%s", diff)
	}
	if n, _ := Len(zl); n != 2 {
		t.Fatalf("Len = %d", n)
	}
	if err := Validate(zl); err != nil {
		t.Fatal(err)
	}
}

func TestFind(t *testing.T) {
	zl := build(t, "f1", "v1", "f2", "2", "f3", "3")
	p, err := Find(zl, HeaderSize, []byte("f2"), 1)
	if err != nil || p == None {
		t.Fatalf("Find(f2) = %d, %v", p, err)
	}
	q, _ := Next(zl, p)
	if v, _ := Get(zl, q); v.IsStr || v.Int != 2 {
		t.Fatalf("value of f2 = %v", v)
	}

	if p, _ := Find(zl, HeaderSize, []byte("2"), 0); p != q {
		t.Fatalf("Find(2) without skip = %d, wanted %d", p, q)
	}
	for _, s := range []string{"v1", "3", "02"} {
		if p, _ := Find(zl, HeaderSize, []byte(s), 1); p != None {
			t.Errorf("Find(%q) with skip 1 = %d, wanted None", s, p)
		}
	}
}

func TestCorruptBuffers(t *testing.T) {
	check := func(name string, zl []byte, want error) {
		t.Helper()
		if err := Validate(zl); !errors.Is(err, want) {
			t.Errorf("%s: Validate = %v, wanted %v", name, err, want)
		}
		var de *util.DataError
		if err := Validate(zl); err != nil && !errors.As(err, &de) {
			t.Errorf("%s: %T is not a DataError", name, err)
		}
	}

	check("short", []byte{1, 2, 3}, util.ErrMalformedHeader)

	zl := build(t, "hello")
	oversized := append([]byte(nil), zl...)
	setZiplistBytes(oversized, len(zl)+10)
	check("declared size", oversized, util.ErrMalformedHeader)

	noEnd := append([]byte(nil), zl...)
	noEnd[len(noEnd)-1] = 0
	check("end marker", noEnd, util.ErrMalformedHeader)

	overrun := append([]byte(nil), zl...)
	overrun[HeaderSize+1] = 60
	check("payload overrun", overrun, util.ErrMalformedHeader)
	if _, err := Get(overrun, HeaderSize); !errors.Is(err, util.ErrMalformedHeader) {
		t.Errorf("Get on overrun = %v", err)
	}

	badTag := append([]byte(nil), zl...)
	badTag[HeaderSize+1] = 0xc5
	check("bad tag", badTag, util.ErrUnsupportedEncoding)
	if _, err := Get(badTag, HeaderSize); !errors.Is(err, util.ErrUnsupportedEncoding) {
		t.Errorf("Get on bad tag = %v", err)
	}

	two := build(t, "a", "b")
	chain := append([]byte(nil), two...)
	chain[HeaderSize+3] = 2
	check("prevlen chain", chain, util.ErrCorrupt)

	count := append([]byte(nil), two...)
	setZiplistLength(count, 5)
	check("count", count, util.ErrCorrupt)

	back := append([]byte(nil), two...)
	back[HeaderSize+3] = 100
	if _, err := Index(back, -2); !errors.Is(err, util.ErrMalformedHeader) {
		t.Errorf("Index(-2) with a wild prevlen = %v", err)
	}
	if _, err := Prev(back, HeaderSize+3); !errors.Is(err, util.ErrMalformedHeader) {
		t.Errorf("Prev with a wild prevlen = %v", err)
	}

	if _, err := Next(two, 3); !errors.Is(err, util.ErrInvalidOffset) {
		t.Errorf("Next(3) = %v", err)
	}
}

func TestHandle(t *testing.T) {
	z := Empty()
	for _, s := range []string{"x", "1", "y"} {
		if err := z.Push([]byte(s), Tail); err != nil {
			t.Fatal(err)
		}
	}
	if z.Len() != 3 {
		t.Fatalf("Len = %d", z.Len())
	}
	p, _ := z.Index(1)
	next, err := z.Delete(p)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := z.Get(next); v.String() != "y" {
		t.Fatalf("after Delete got %v", v)
	}
	if err := z.Insert(z.End(), []byte("tail")); err != nil {
		t.Fatal(err)
	}

	buf := z.Bytes()
	if ziplistLength(buf) != 3 {
		t.Fatalf("serialized count = %d", ziplistLength(buf))
	}
	o, err := Open(buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"x", "y", "tail"}, forward(t, o.Bytes())); diff != "" {
		t.Fatalf("reopened (-want +got):\n%s", diff)
	}
	if o.Len() != 3 {
		t.Fatalf("reopened Len = %d", o.Len())
	}

	buf[HeaderSize+1] = 0xc5
	if _, err := Open(buf); !errors.Is(err, util.ErrUnsupportedEncoding) {
		t.Fatalf("Open(corrupt) = %v", err)
	}
}

func TestSafetySize(t *testing.T) {
	zl := build(t, "a", "b")
	if !SafeToAdd(zl, MaxSafetySize-len(zl)) || SafeToAdd(zl, MaxSafetySize-len(zl)+1) {
		t.Fatalf("SafeToAdd disagrees with MaxSafetySize for a %d byte ziplist", len(zl))
	}

	defer func(old int) { safetySize = old }(safetySize)
	// 刚好放得下一个 3 字节的元素
	safetySize = len(zl) + 3
	zl, err := Push(zl, []byte("c"), Tail)
	if err != nil {
		t.Fatal(err)
	}
	before := append([]byte{}, zl...)
	if _, err := Push(zl, []byte("d"), Head); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Push over the limit = %v", err)
	}
	if _, err := Insert(zl, HeaderSize, []byte("12")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Insert over the limit = %v", err)
	}
	if diff := cmp.Diff(before, zl); diff != "" {
		t.Fatalf("rejected insert modified the buffer (-want +got):\n%s", diff)
	}

	safetySize = HeaderSize + EndSize
	z := Empty()
	if err := z.Push([]byte("x"), Tail); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("handle Push = %v", err)
	}
	if z.Len() != 0 {
		t.Fatalf("Len after a rejected push = %d", z.Len())
	}
}

func TestValueText(t *testing.T) {
	for _, c := range []struct {
		v    Value
		want string
	}{
		{StrValue([]byte("abc")), "abc"},
		{IntValue(-9223372036854775808), "-9223372036854775808"},
		{IntValue(0), "0"},
	} {
		if got := string(c.v.AppendText([]byte("k="))); got != "k="+c.want {
			t.Errorf("AppendText(%v) = %q", c.v, got)
		}
		if got := string(c.v.Text()); got != c.want {
			t.Errorf("Text(%v) = %q", c.v, got)
		}
	}
}
