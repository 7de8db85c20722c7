// Package dbtest 测试用的内存 SQLite 存储
package dbtest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"go-file-share/pkg/db"

	"github.com/stretchr/testify/require"
)

// NewStore 每个测试一个独立的、已迁移的内存数据库，测试结束时关闭
func NewStore(t testing.TB) *db.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s-%d?mode=memory&cache=shared", name, time.Now().UTC().UnixNano())

	store, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}
