package meta

import (
	"context"
	"sync"
)

// 元信息对象
type metadata struct {
	// 同步map，确保并发安全
	carrier map[string]interface{}
	mu      sync.RWMutex
}

func (c *metadata) Value(key string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.carrier[key]
}

func (c *metadata) WithValue(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carrier[key] = value
}

func (c *metadata) snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]interface{}, len(c.carrier))
	for k, v := range c.carrier {
		out[k] = v
	}
	return out
}

type contextKey struct{}

var metaContextKey = contextKey{}

// Begin 开启元信息对象
// 注意：
//
//	1.该方法在整个上下文的对象中注入元信息对象，应该在尽量靠近根上下文处调用
//	2.多次调用数据安全：
//		如父类上下文中存在元信息对象，则直接返回父类上下文
//		如父类上下文中不存在元信息对象，则返回包含元信息对象的指针的子类上下文
func Begin(parent context.Context) context.Context {
	if metadataFrom(parent) != nil {
		return parent
	}
	meta := &metadata{
		carrier: make(map[string]interface{}),
	}
	return context.WithValue(parent, metaContextKey, meta)
}

// 从父类上下文获取元信息对象
func metadataFrom(parent context.Context) *metadata {
	if parent == nil {
		return nil
	}
	value, _ := parent.Value(metaContextKey).(*metadata)
	return value
}

// WithValue 设置键值对至上下文的元信息对象，未调用Begin时忽略
func WithValue(parent context.Context, key string, val interface{}) {
	meta := metadataFrom(parent)
	if meta == nil {
		return
	}
	meta.WithValue(key, val)
}

// Value 从上下文的元信息对象中获取对应key的值
func Value(parent context.Context, key string) interface{} {
	meta := metadataFrom(parent)
	if meta == nil {
		return nil
	}
	return meta.Value(key)
}

// Fields returns a copy of every key/value pair carried by ctx.
func Fields(parent context.Context) map[string]interface{} {
	meta := metadataFrom(parent)
	if meta == nil {
		return nil
	}
	return meta.snapshot()
}
