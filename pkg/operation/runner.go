// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package operation

import (
	"context"

	"gitlab.com/tozd/go/errors"
)

// ⚙️ Operation is one unit of work against the document service
type Operation interface {
	Execute(ctx context.Context) error
}

// OperationFunc adapts a function to Operation
type OperationFunc func(ctx context.Context) error

// Execute implements Operation
func (f OperationFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// 🏃 Runner executes operations, either inline or in a goroutine that the
// caller stops waiting on once ctx is done
type Runner struct {
	async bool
}

// 🏗️ NewRunner creates a new runner
func NewRunner(async bool) *Runner {
	return &Runner{async: async}
}

// 🏃 Run executes an operation
func (r *Runner) Run(ctx context.Context, op Operation) error {
	if r == nil || !r.async {
		return op.Execute(ctx)
	}
	return r.runAsync(ctx, op)
}

// ⚡ runAsync runs an operation in its own goroutine
func (r *Runner) runAsync(ctx context.Context, op Operation) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- op.Execute(ctx)
	}()

	select {
	case <-ctx.Done():
		return errors.Errorf("operation cancelled: %w", ctx.Err())
	case err := <-errCh:
		return err
	}
}
