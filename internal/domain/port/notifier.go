package port

import "context"

type FailureNotifier interface {
	NotifyFailure(ctx context.Context, to string, jobID string, sourcePrefix string, errorMsg string) error
}
