package util

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestLl2String(t *testing.T) {
	cases := []struct {
		v    int64
		want string
	}{
		{0, "0"},
		{7, "7"},
		{-1, "-1"},
		{12345, "12345"},
		{math.MaxInt64, "9223372036854775807"},
		{math.MinInt64, "-9223372036854775808"},
	}
	for _, c := range cases {
		buf := make([]byte, 32)
		n := Ll2String(buf, c.v)
		if n != len(c.want) {
			t.Fatalf("Ll2String(%d) = %d, wanted %d", c.v, n, len(c.want))
		}
		if string(buf[:n]) != c.want || buf[n] != 0 {
			t.Fatalf("Ll2String(%d) wrote %q, wanted %q + NUL", c.v, buf[:n+1], c.want)
		}
	}
}

func TestLl2StringTruncates(t *testing.T) {
	buf := []byte{'x', 'x', 'x', 'x'}
	n := Ll2String(buf, -123456)
	if n != 7 {
		t.Fatalf("natural length = %d, wanted 7", n)
	}
	if string(buf) != "-12\x00" {
		t.Fatalf("buf = %q, wanted %q", buf, "-12\x00")
	}

	if n := Ll2String(nil, 42); n != 2 {
		t.Fatalf("Ll2String(nil) = %d, wanted 2", n)
	}

	one := []byte{'x'}
	Ll2String(one, 9)
	if one[0] != 0 {
		t.Fatalf("one byte buffer = %q, wanted only the terminator", one)
	}
}

func TestString2Int64Rejects(t *testing.T) {
	for _, s := range []string{
		"", "-", "00", "01", "-0", "+1", "1a", " 1", "1 ", "--1",
		"9223372036854775808", "-9223372036854775809",
		"99999999999999999999999",
	} {
		v := int64(777)
		if String2Int64(s, &v) {
			t.Errorf("String2Int64(%q) succeeded with %d", s, v)
		}
		if v != 777 {
			t.Errorf("String2Int64(%q) touched the value: %d", s, v)
		}
	}
}

func TestString2Int64Accepts(t *testing.T) {
	cases := map[string]int64{
		"0":                    0,
		"1":                    1,
		"-1":                   -1,
		"10":                   10,
		"9223372036854775807":  math.MaxInt64,
		"-9223372036854775808": math.MinInt64,
	}
	for s, want := range cases {
		var v int64
		if !String2Int64([]byte(s), &v) || v != want {
			t.Errorf("String2Int64(%q) = %d, wanted %d", s, v, want)
		}
	}
	if !String2Int64("123", nil) {
		t.Errorf("String2Int64 with nil target failed")
	}
}

func TestIntRoundTrip(t *testing.T) {
	values := []int64{
		0, 1, -1, 9, 10, -10, 12, 13, 127, -128, 128, -129,
		math.MaxInt16, math.MinInt16, 1<<23 - 1, -1 << 23,
		math.MaxInt32, math.MinInt32, math.MaxInt64, math.MinInt64,
	}
	for _, v := range values {
		var got int64
		if !String2Int64(Int64ToString(v), &got) || got != v {
			t.Errorf("round trip of %d gave %d", v, got)
		}
		buf := make([]byte, 21)
		n := Ll2String(buf, v)
		if !String2Int64(buf[:n], &got) || got != v {
			t.Errorf("Ll2String round trip of %d gave %d", v, got)
		}
	}
}

func TestIntLE(t *testing.T) {
	cases := []struct {
		v    int64
		size int
	}{
		{-128, 1}, {127, 1},
		{math.MinInt16, 2}, {math.MaxInt16, 2},
		{-1 << 23, 3}, {1<<23 - 1, 3}, {-1, 3}, {-2, 3},
		{math.MinInt32, 4}, {math.MaxInt32, 4},
		{math.MinInt64, 8}, {math.MaxInt64, 8},
	}
	for _, c := range cases {
		buf := make([]byte, c.size)
		PutIntLE(buf, c.v, c.size)
		if got := IntLE(buf, c.size); got != c.v {
			t.Errorf("IntLE(PutIntLE(%d, %d)) = %d", c.v, c.size, got)
		}
	}

	// little endian on the wire, whatever the host is
	buf := make([]byte, 4)
	PutIntLE(buf, 0x01020304, 4)
	if string(buf) != "\x04\x03\x02\x01" {
		t.Fatalf("PutIntLE wrote %x", buf)
	}
}

func TestDataError(t *testing.T) {
	err := DataErrf("ziplist", []byte(strings.Repeat("a", 64)), 12, ErrMalformedHeader, "entry of %d bytes", 99)
	if !errors.Is(err, ErrMalformedHeader) {
		t.Fatalf("errors.Is(%v, ErrMalformedHeader) = false", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "entry of 99 bytes at offset 12") || !strings.Contains(msg, "...") {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestFingerprint(t *testing.T) {
	a := []byte("hello")
	fa := Fingerprint(a)
	if fa != Fingerprint([]byte("hello")) {
		t.Fatalf("fingerprint is not deterministic")
	}
	a[0] = 'j'
	if fa == Fingerprint(a) {
		t.Fatalf("fingerprint did not change after mutation")
	}
}
