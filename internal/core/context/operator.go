package context

import "context"

// SystemOperator is recorded when a change is not attributable to a caller.
const SystemOperator = "system"

type operatorKey struct{}

// WithOperator records who is acting. The value is free-form (login, service name).
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey{}, operator)
}

// GetOperator returns the acting operator or SystemOperator.
func GetOperator(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey{}).(string); ok && v != "" {
		return v
	}
	return SystemOperator
}
