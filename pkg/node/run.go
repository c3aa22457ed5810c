// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 The Radiance Authors

package node

import (
	"context"
	"time"
)

// PollInterval bounds how long Run sleeps between pumps when nothing
// signals activity.
const PollInterval = 5 * time.Millisecond

// Run is the node main loop: it pumps the engine until ctx is done,
// sleeping on wake between pumps. wake may be nil.
func Run(ctx context.Context, e *Engine, wake <-chan struct{}) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	for {
		e.Pump()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-ticker.C:
		}
	}
}
