package source

import (
	"context"
	"os"
)

type FileLoader struct {
	FilePath string
}

func NewFileLoader(filePath string) *FileLoader {
	return &FileLoader{FilePath: filePath}
}

func (f *FileLoader) Load(ctx context.Context) ([]byte, error) {
	return os.ReadFile(f.FilePath)
}

// Name reports the file path; its extension picks the preset format.
func (f *FileLoader) Name() string { return f.FilePath }
