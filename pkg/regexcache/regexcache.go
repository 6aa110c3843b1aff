// Package regexcache caches compiled user-supplied patterns. Custom secret
// definitions and exclusion rules are compiled once per process even when
// several observers load the same config.
//
// Usage:
//
//	re, err := regexcache.Get(def.Pattern)
//	if err != nil {
//	    return fmt.Errorf("pattern %q: %w", def.Name, err)
//	}
package regexcache

import (
	"regexp"
	"sync"
)

var cache sync.Map

// Get returns the compiled form of pattern, compiling it on first use.
func Get(pattern string) (*regexp.Regexp, error) {
	if cached, ok := cache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	actual, _ := cache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// MustGet is like Get but panics on an invalid pattern. Only use it for
// patterns that are compile-time constants.
func MustGet(pattern string) *regexp.Regexp {
	re, err := Get(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// Validate compiles every pattern and returns the index of the first
// invalid one with its error, or -1 and nil.
func Validate(patterns ...string) (int, error) {
	for i, pattern := range patterns {
		if _, err := Get(pattern); err != nil {
			return i, err
		}
	}
	return -1, nil
}

// Size returns the number of cached patterns.
func Size() int {
	n := 0
	cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
