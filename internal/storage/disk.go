// Package storage 把共享文件内容保存在一个平铺目录中，以清理后的文件名为键
package storage

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	errors "github.com/Laisky/errors/v2"
)

// ErrContentMissing 该名字下没有内容
var ErrContentMissing = errors.New("content missing from storage")

// DiskStore 每个名字对应目录中的一个文件，同名写入会覆盖
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(err, "resolve storage directory")
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create storage directory")
	}
	return &DiskStore{dir: abs}, nil
}

// Dir 存储目录的绝对路径
func (s *DiskStore) Dir() string {
	return s.dir
}

// SanitizeName 去掉所有目录部分（/ 和 \ 都算分隔符），没有文件名或结果为 "."、".." 时返回空
func SanitizeName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	// 以分隔符结尾说明没有文件名部分
	if strings.HasSuffix(name, "/") {
		return ""
	}
	base := path.Base(name)
	switch base {
	case ".", "..", "/":
		return ""
	}
	return base
}

// TypeTag 小写的扩展名，不含点。".bashrc" 没有类型
func TypeTag(name string) string {
	ext := path.Ext(strings.TrimLeft(name, "."))
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Put 先写临时文件再重命名，读者不会看到写了一半的内容。返回写入的字节数
func (s *DiskStore) Put(name string, data []byte) (int64, error) {
	key := SanitizeName(name)
	if key == "" {
		return 0, errors.Errorf("invalid storage key %q", name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return 0, errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return 0, errors.Wrap(err, "write content")
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.Wrap(err, "close temp file")
	}

	target := filepath.Join(s.dir, key)
	if err := os.Rename(tmp.Name(), target); err != nil {
		return 0, errors.Wrap(err, "move content into place")
	}

	info, err := os.Stat(target)
	if err != nil {
		return 0, errors.Wrap(err, "stat stored content")
	}
	return info.Size(), nil
}

func (s *DiskStore) Get(name string) ([]byte, error) {
	key := SanitizeName(name)
	if key == "" {
		return nil, ErrContentMissing
	}

	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrContentMissing
		}
		return nil, errors.Wrap(err, "read content")
	}
	return data, nil
}
