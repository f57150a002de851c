// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package app

import (
	"context"
	"errors"
	"time"
)

// HookFunc runs once the inner [Runtime] has returned.
type HookFunc func(context.Context) error

// HookRegistry collects the hooks registered while the service is built.
type HookRegistry struct {
	hooks []HookFunc
}

// OnPostRun registers hook. Hooks run in reverse registration order so
// resources are released after everything built on top of them.
func (r *HookRegistry) OnPostRun(hook HookFunc) {
	r.hooks = append(r.hooks, hook)
}

// ShutdownTimeout bounds the time all post run hooks may take together.
const ShutdownTimeout = 30 * time.Second

type hookRuntime struct {
	inner Runtime
	hooks []HookFunc
}

// Run runs the inner runtime followed by every hook, even when the
// runtime or an earlier hook failed. Hooks get a fresh context since the
// run context is usually cancelled by then.
func (rt hookRuntime) Run(ctx context.Context) error {
	errs := []error{rt.inner.Run(ctx)}

	hookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ShutdownTimeout)
	defer cancel()

	for i := len(rt.hooks) - 1; i >= 0; i-- {
		errs = append(errs, rt.hooks[i](hookCtx))
	}
	return errors.Join(errs...)
}

// WithHooks builds a [Runtime] with f, passing it a [HookRegistry] for
// registering cleanup of whatever it opened. If f fails, the hooks
// registered so far run before the error is returned.
func WithHooks[T Runtime](f func(context.Context, *HookRegistry) (T, error)) Builder[Runtime] {
	return BuilderFunc[Runtime](func(ctx context.Context) (Runtime, error) {
		var reg HookRegistry

		inner, err := f(ctx, &reg)
		if err != nil {
			errs := []error{err}
			for i := len(reg.hooks) - 1; i >= 0; i-- {
				errs = append(errs, reg.hooks[i](context.WithoutCancel(ctx)))
			}
			return nil, errors.Join(errs...)
		}

		return hookRuntime{inner: inner, hooks: reg.hooks}, nil
	})
}
