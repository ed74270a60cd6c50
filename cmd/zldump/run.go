package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	errs "github.com/imax9000/errors"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pengdafu/rdb-encoding/blobstore"
	"github.com/pengdafu/rdb-encoding/bridge"
	"github.com/pengdafu/rdb-encoding/mmap"
	"github.com/pengdafu/rdb-encoding/util"
)

var errSomeFailed = errors.New("some containers could not be decoded")

type options struct {
	File       string
	Type       string
	DBFile     string
	Bucket     string
	Key        string
	ImportKey  string
	Format     string
	Prefault   bool
	Sequential bool
	LogFile    string
	LogFormat  string
	LogLevel   zerolog.Level
}

func (o *options) check() error {
	switch {
	case o.Format != "text" && o.Format != "msgpack":
		return fmt.Errorf("unknown output format %q", o.Format)
	case o.File == "" && o.DBFile == "":
		return fmt.Errorf("one of -file or -db is required")
	case o.ImportKey != "" && (o.File == "" || o.DBFile == ""):
		return fmt.Errorf("-import needs both -file and -db")
	case o.Key != "" && o.DBFile == "":
		return fmt.Errorf("-key needs -db")
	}
	return nil
}

func runMain(ctx context.Context, opts *options, out io.Writer) error {
	if opts.File != "" {
		return runFile(ctx, opts, out)
	}
	return runDB(ctx, opts, out)
}

func runFile(ctx context.Context, opts *options, out io.Writer) error {
	log := zerolog.Ctx(ctx)

	if opts.Type == "" {
		opts.Type = bridge.TypeListZiplist.String()
	}
	typ, err := bridge.ParseType(opts.Type)
	if err != nil {
		return err
	}

	var mopt mmap.Options
	if opts.Prefault {
		mopt |= mmap.Prefault
	}
	if opts.Sequential {
		mopt |= mmap.SequentialAccess
	}
	m, err := mmap.Open(opts.File, mopt)
	if err != nil {
		return err
	}
	defer m.Close()
	log.Debug().Str("file", opts.File).Int("bytes", m.Len()).Stringer("type", typ).Msgf("Mapped input file")

	if opts.ImportKey != "" {
		store, err := blobstore.Open(ctx, opts.DBFile, blobstore.Options{Bucket: opts.Bucket})
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Put(ctx, opts.ImportKey, typ, m.Bytes()); err != nil {
			return describe(err)
		}
		log.Info().Str("key", opts.ImportKey).Stringer("type", typ).Msgf("Imported container")
		return nil
	}

	if err := dump(out, opts.Format, "", typ, m.Bytes()); err != nil {
		return describe(err)
	}
	return nil
}

func runDB(ctx context.Context, opts *options, out io.Writer) error {
	log := zerolog.Ctx(ctx)

	store, err := blobstore.Open(ctx, opts.DBFile, blobstore.Options{Bucket: opts.Bucket, ReadOnly: true})
	if err != nil {
		return err
	}
	defer store.Close()

	if opts.Key != "" {
		typ, blob, err := store.Get(opts.Key)
		if err != nil {
			return err
		}
		if err := dump(out, opts.Format, opts.Key, typ, blob); err != nil {
			return describe(err)
		}
		return nil
	}

	failed := 0
	err = store.ForEach(ctx, func(key string, typ bridge.Type, blob []byte) error {
		err := dump(out, opts.Format, key, typ, blob)
		if err == nil {
			return nil
		}
		if !isDataError(err) {
			return err
		}
		failed++
		logDataError(log.Error().Str("key", key).Stringer("type", typ), err).Msgf("Failed to decode container")
		return nil
	})
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d failed", errSomeFailed, failed)
	}
	return nil
}

// dump 输出一个容器。msgpack 格式下带 key 时先写 key 再写容器。
func dump(out io.Writer, format string, key string, typ bridge.Type, blob []byte) error {
	if format == "text" {
		if key != "" {
			if _, err := fmt.Fprintf(out, "%s: ", key); err != nil {
				return err
			}
		}
		return bridge.Dump(out, typ, blob)
	}

	var c bridge.Collector
	if err := bridge.Push(&c, typ, blob); err != nil {
		return err
	}
	var b []byte
	if key != "" {
		kb, err := msgpack.Marshal(key)
		if err != nil {
			return err
		}
		b = kb
	}
	b, err := c.AppendMsgpack(b)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}

func isDataError(err error) bool {
	_, ok := errs.As[*util.DataError](err)
	return ok || errors.Is(err, bridge.ErrUnknownType)
}

func logDataError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.Str("kind", bridge.ErrorKind(err))
	if derr, ok := errs.As[*util.DataError](err); ok {
		e = e.Str("format", derr.Format).Int("offset", derr.Off).Str("problem", derr.Msg)
	} else {
		e = e.Err(err)
	}
	return e
}

// describe 把错误转成不引用原缓冲区的文本, 缓冲区可能在返回之后就被解除映射
func describe(err error) error {
	if derr, ok := errs.As[*util.DataError](err); ok {
		return fmt.Errorf("%s: %s at offset %d (%s)", derr.Format, derr.Msg, derr.Off, bridge.ErrorKind(err))
	}
	return err
}
