package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Readier reports whether a dependency can serve traffic.
type Readier interface {
	Ready(ctx context.Context) error
}

// ReadyCheck validates store connectivity and migration state with a
// bounded timeout.
func ReadyCheck(ctx context.Context, store Readier) error {
	if store == nil {
		return errors.New("sample store not initialized")
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := store.Ready(checkCtx); err != nil {
		return fmt.Errorf("sample store: %w", err)
	}
	return nil
}
