package auth

import "context"

type operatorKey struct{}

// WithOperator stores the caller identity for audit columns.
func WithOperator(ctx context.Context, operator string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operatorKey{}, operator)
}

// OperatorFromContext returns the caller identity or "" for system work.
func OperatorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(operatorKey{}).(string); ok {
		return v
	}
	return ""
}

// OperatorPtr is OperatorFromContext as a nullable column value.
func OperatorPtr(ctx context.Context) *string {
	op := OperatorFromContext(ctx)
	if op == "" {
		return nil
	}
	return &op
}
