package we

import "context"

// AccountID identifies an authenticated caller. The value is opaque to
// modules; whoever places it in a context has already verified it.
type AccountID string

func (id AccountID) String() string {
	return string(id)
}

type originKey struct{}

func WithOrigin(ctx context.Context, who AccountID) context.Context {
	return context.WithValue(ctx, originKey{}, who)
}

// Signed returns the caller carried by ctx, or BadOrigin when the request was
// not signed.
func Signed(ctx context.Context) (AccountID, error) {
	who, ok := ctx.Value(originKey{}).(AccountID)
	if !ok || who == "" {
		return "", BadOrigin
	}

	return who, nil
}
