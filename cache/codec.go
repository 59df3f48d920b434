package cache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/sqlcore"
)

// Marshal encodes v with msgpack. Integers keep their full width so that
// dynamic values decode back as int64.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("cache: encode %T: %w", v, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v. Interface values decode integers as int64
// or uint64 and floats as float64.
func Unmarshal(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("cache: decode %T: %w", v, err)
	}
	return nil
}

// Load reads and decodes a cached value. ok is false on a miss.
func Load[T any](ctx context.Context, c sqlcore.Cache, key string) (v T, ok bool, err error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == nil {
		return v, false, err
	}
	if err := Unmarshal(data, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Store encodes and caches a value.
func Store(ctx context.Context, c sqlcore.Cache, key string, v any, ttl time.Duration) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
