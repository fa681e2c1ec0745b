package source

import (
	"context"
	"errors"
)

// Loader fetches the raw bytes of a preset file.
type Loader interface {
	Load(ctx context.Context) ([]byte, error)
}

// StaticLoader serves fixed bytes, or a fixed error. Used in tests.
type StaticLoader struct {
	data []byte
	err  error
}

func NewStaticLoader(data []byte) *StaticLoader {
	return &StaticLoader{data: data}
}

func NewStaticLoaderWithError() *StaticLoader {
	return &StaticLoader{err: errors.New("not found")}
}

func (s *StaticLoader) Load(ctx context.Context) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}
