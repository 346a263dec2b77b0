package collection

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ReadRaw reads the uncompressed YAML bytes of a collection file without
// parsing them. Paths ending in .zst are zstd-decompressed after reading;
// s3:// URLs are fetched from object storage (see s3.go).
func ReadRaw(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	var err error
	if IsObjectURL(path) {
		data, err = s3Read(ctx, path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".zst") {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", path, err)
		}
	}
	return data, nil
}

// Load reads and parses a collection from path.
func Load(ctx context.Context, path string) (*Collection, error) {
	data, err := ReadRaw(ctx, path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Save writes the collection to path, compressing when the path ends in
// .zst. Local writes go through a temp file and rename so an interrupted
// run never leaves a truncated collection behind.
func Save(ctx context.Context, c *Collection, path string) error {
	data, err := c.Encode()
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, ".zst") {
		data, err = compress(data)
		if err != nil {
			return fmt.Errorf("compressing %s: %w", path, err)
		}
	}

	if IsObjectURL(path) {
		return s3Write(ctx, path, data)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".collection-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
