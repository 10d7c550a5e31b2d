package objectstore

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/weberc2/sfs/pkg/types"
)

// Memory is an ObjectStore kept in a map, for tests and the `memory`
// snapshot store.
type Memory struct {
	mutex   sync.Mutex
	objects map[[2]string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: map[[2]string][]byte{}}
}

func (m *Memory) PutObject(bucket, key string, data io.ReadSeeker) error {
	var b bytes.Buffer
	if _, err := io.Copy(&b, data); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.objects[[2]string{bucket, key}] = b.Bytes()
	return nil
}

func (m *Memory) GetObject(bucket, key string) (io.ReadCloser, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	data, found := m.objects[[2]string{bucket, key}]
	if !found {
		return nil, &types.ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ListObjects returns matching keys in lexical order, as S3 does.
func (m *Memory) ListObjects(bucket, prefix string) ([]string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var out []string
	for key := range m.objects {
		if key[0] == bucket && strings.HasPrefix(key[1], prefix) {
			out = append(out, key[1])
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) DeleteObject(bucket, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	k := [2]string{bucket, key}
	if _, found := m.objects[k]; !found {
		return &types.ObjectNotFoundErr{Bucket: bucket, Key: key}
	}
	delete(m.objects, k)
	return nil
}
