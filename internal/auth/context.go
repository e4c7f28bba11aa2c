package auth

import "context"

// Caller 表示通过鉴权的调用方。
type Caller struct {
	Name string
}

// callerKey 是上下文中存储 Caller 的键类型。
type callerKey struct{}

// WithCaller 将通过鉴权的调用方信息存储到上下文中。
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	if caller == nil {
		return ctx
	}
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFromContext 从上下文中提取调用方信息。
func CallerFromContext(ctx context.Context) *Caller {
	if ctx == nil {
		return nil
	}
	if caller, ok := ctx.Value(callerKey{}).(*Caller); ok {
		return caller
	}
	return nil
}
