// Package eino 提供 Eino 组件调用的可观测性接入（指标与追踪）。
package eino

import "context"

type providerKey struct{}

// WithProvider 将 LLM 提供商名称注入 Context，供回调上报指标时使用
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey{}, provider)
}

// ProviderFromContext 从 Context 提取 LLM 提供商名称
func ProviderFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(providerKey{}).(string); ok {
		return v
	}
	return ""
}
