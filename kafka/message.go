package kafka

import (
	"encoding/json"
	"time"
)

// Invalidation 广播到 topic 的失效消息
type Invalidation struct {
	// Origin 发送实例 ID，接收方据此跳过自己发出的消息
	Origin string `json:"origin"`

	Tags []string `json:"tags,omitempty"`

	// All 为 true 时清空整个数据存储
	All bool `json:"all,omitempty"`

	// Timestamp unix 毫秒
	Timestamp int64 `json:"ts"`
}

func newInvalidation(origin string, tags []string) Invalidation {
	return Invalidation{
		Origin:    origin,
		Tags:      tags,
		All:       len(tags) == 0,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (m Invalidation) encode() ([]byte, error) {
	return json.Marshal(m)
}

func decodeInvalidation(data []byte) (Invalidation, error) {
	var m Invalidation
	if err := json.Unmarshal(data, &m); err != nil {
		return m, ErrDecode.Wrap(err)
	}
	if m.Origin == "" {
		return m, ErrDecode.WithMsgf("失效消息缺少 origin")
	}
	return m, nil
}
