package bridge

import (
	"fmt"
	"io"
	"strconv"

	"github.com/pengdafu/rdb-encoding/ziplist"
)

// Printer 每个元素输出一行文本, 字符串带引号, 整数不带。
type Printer struct {
	W io.Writer
}

func quote(v ziplist.Value) string {
	if v.IsStr {
		return strconv.Quote(string(v.Str))
	}
	return strconv.FormatInt(v.Int, 10)
}

func (p *Printer) PushSequenceValue(v ziplist.Value, index int) error {
	_, err := fmt.Fprintf(p.W, "  %d) %s\n", index, quote(v))
	return err
}

func (p *Printer) PushMapPair(key, value ziplist.Value) error {
	_, err := fmt.Fprintf(p.W, "  %s => %s\n", quote(key), quote(value))
	return err
}

// Dump 输出一个容器: 类型, 字节数, 然后是所有元素
func Dump(w io.Writer, typ Type, buf []byte) error {
	if _, err := fmt.Fprintf(w, "%s {\n  bytes: %d\n", typ, len(buf)); err != nil {
		return err
	}
	if err := Push(&Printer{W: w}, typ, buf); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "}\n")
	return err
}
