package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		err      error
		wantMsg  string
		wantCode int
	}{
		{ErrCacheMiss, "缓存未命中", 700001},
		{ErrStoreNotFound, "存储后端未找到", 700002},
		{ErrInvalidKey, "缓存 key 不能为空", 700003},
		{ErrSerialize, "序列化失败", 700004},
		{ErrDeserialize, "反序列化失败", 700005},
		{ErrStoreGet, "存储获取失败", 700006},
		{ErrStoreSet, "存储设置失败", 700007},
		{ErrStoreDelete, "存储删除失败", 700008},
		{ErrConfigInvalid, "缓存配置无效", 700009},
		{ErrFlush, "缓存清空失败", 700010},
		{ErrDisabled, "缓存组件未启用", 700011},
	}

	for _, tt := range tests {
		t.Run(tt.wantMsg, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			var coded interface{ Code() int }
			if assert.True(t, errors.As(tt.err, &coded)) {
				assert.Equal(t, tt.wantCode, coded.Code())
			}
		})
	}
}

func TestErrors_WrapKeepsIdentity(t *testing.T) {
	err := ErrStoreGet.Wrap(errors.New("dial tcp: connection refused"))
	assert.ErrorIs(t, err, ErrStoreGet)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Contains(t, err.Error(), "connection refused")
}
