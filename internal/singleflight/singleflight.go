// Package singleflight shares one in-flight call between every caller asking
// for the same key. It is a typed, context-aware layer over
// golang.org/x/sync/singleflight.
package singleflight

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group manages a set of in-flight calls returning T.
type Group[T any] struct {
	g singleflight.Group
}

// New creates a new Group.
func New[T any]() *Group[T] {
	return &Group[T]{}
}

// Do runs fn unless a call for key is already in flight, in which case it
// waits for that call's result. shared reports whether the result was handed
// to more than one caller. If ctx ends first, Do returns ctx's cause and the
// in-flight call keeps running for the remaining callers.
func (g *Group[T]) Do(ctx context.Context, key string, fn func() (T, error)) (val T, shared bool, err error) {
	ch := g.g.DoChan(key, func() (any, error) {
		return fn()
	})

	select {
	case res := <-ch:
		val, _ = res.Val.(T)
		return val, res.Shared, res.Err
	case <-ctx.Done():
		return val, false, context.Cause(ctx)
	}
}

// Forget detaches the in-flight call for key so the next Do starts a new one.
// Callers already waiting still receive the detached call's result.
func (g *Group[T]) Forget(key string) {
	g.g.Forget(key)
}
