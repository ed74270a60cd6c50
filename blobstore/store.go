// Package blobstore 把编码后的容器按 key 保存在 bbolt 里, 每个值是 [类型标记][编码内容]。
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"

	"github.com/pengdafu/rdb-encoding/bridge"
)

const DefaultBucket = "containers"

var (
	ErrNotFound  = errors.New("key not found")
	ErrEmptyBlob = errors.New("stored value has no type tag")
	ErrReadOnly  = errors.New("store is read-only")
)

type Options struct {
	Bucket   string
	ReadOnly bool
	NoSync   bool
	Timeout  time.Duration
}

type Store struct {
	db       *bolt.DB
	bucket   []byte
	readOnly bool
}

func Open(ctx context.Context, path string, opt Options) (*Store, error) {
	log := zerolog.Ctx(ctx)

	if opt.Bucket == "" {
		opt.Bucket = DefaultBucket
	}
	if opt.Timeout == 0 {
		opt.Timeout = 1 * time.Second
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout:  opt.Timeout,
		ReadOnly: opt.ReadOnly,
		NoSync:   opt.NoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt DB: %w", err)
	}

	s := &Store{db: db, bucket: []byte(opt.Bucket), readOnly: opt.ReadOnly}
	if !opt.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(s.bucket)
			return err
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating bucket %q: %w", opt.Bucket, err)
		}
	}
	log.Debug().Str("path", path).Str("bucket", opt.Bucket).Bool("read_only", opt.ReadOnly).Msgf("Opened blob store")
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put 校验 blob 之后保存, 已有的 key 会被覆盖
func (s *Store) Put(ctx context.Context, key string, typ bridge.Type, blob []byte) error {
	if s.readOnly {
		return ErrReadOnly
	}
	if err := bridge.Validate(typ, blob); err != nil {
		return fmt.Errorf("validating %q: %w", key, err)
	}

	v := make([]byte, 0, 1+len(blob))
	v = append(v, byte(typ))
	v = append(v, blob...)
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), v)
	})
	if err != nil {
		return fmt.Errorf("storing %q: %w", key, err)
	}
	zerolog.Ctx(ctx).Debug().Str("key", key).Stringer("type", typ).Int("bytes", len(blob)).Msgf("Stored container")
	return nil
}

// Get 返回 blob 的拷贝
func (s *Store) Get(key string) (bridge.Type, []byte, error) {
	var (
		typ  bridge.Type
		blob []byte
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		t, data, err := split(v)
		if err != nil {
			return err
		}
		typ, blob = t, append([]byte{}, data...)
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("looking up %q: %w", key, err)
	}
	return typ, blob, nil
}

func (s *Store) Delete(key string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// ForEach 按 key 的顺序遍历。blob 只在 fn 里有效, 要保留就拷贝。
// 类型标记缺失的值记一条日志并跳过。
func (s *Store) ForEach(ctx context.Context, fn func(key string, typ bridge.Type, blob []byte) error) error {
	log := zerolog.Ctx(ctx)
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			typ, blob, err := split(v)
			if err != nil {
				log.Warn().Str("key", string(k)).Msgf("Skipping value without a type tag")
				return nil
			}
			return fn(string(k), typ, blob)
		})
	})
}

func split(v []byte) (bridge.Type, []byte, error) {
	if len(v) == 0 {
		return 0, nil, ErrEmptyBlob
	}
	return bridge.Type(v[0]), v[1:], nil
}
