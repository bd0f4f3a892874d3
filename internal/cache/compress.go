package cache

import (
	"bytes"
	"io"

	"github.com/pierrec/lz4/v4"
)

func compress(in []byte) ([]byte, error) {
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	if _, err := io.Copy(zw, bytes.NewReader(in)); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	out := &bytes.Buffer{}
	if _, err := io.Copy(out, lz4.NewReader(bytes.NewReader(in))); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
