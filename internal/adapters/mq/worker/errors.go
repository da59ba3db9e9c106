package worker

import (
	"fmt"

	"github.com/okian/turnout/internal/domain"
)

// ErrStopped is returned by Submit after Shutdown.
var ErrStopped = fmt.Errorf("%w: writer pool stopped", domain.ErrStoreUnavailable)
