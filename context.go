package authgate

import "context"

type clientAddressContextKey struct{}
type deviceInfoContextKey struct{}

// WithClientAddress attaches the caller's network address to ctx. The Gate
// uses it for per-address admission throttling and audit logging, and
// stores it on issued refresh records for introspection.
func WithClientAddress(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, clientAddressContextKey{}, address)
}

// WithDeviceInfo attaches a free-form device descriptor (typically the HTTP
// User-Agent) to ctx. It is stored on issued refresh records so principals
// can recognize their active tokens.
func WithDeviceInfo(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceInfoContextKey{}, device)
}

func clientAddressFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	address, _ := ctx.Value(clientAddressContextKey{}).(string)
	return address
}

func deviceInfoFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	device, _ := ctx.Value(deviceInfoContextKey{}).(string)
	return device
}
