// Package filter decides which source paths a task backs up. Rules use
// gitignore-style globs: a plain pattern excludes, a pattern prefixed with
// "!" re-includes, and the last matching rule wins.
package filter

import (
	"fmt"
	"strings"
)

type rule struct {
	pattern *pattern
	include bool
}

// Chain is an ordered list of exclude/include rules.
type Chain struct {
	rules []rule
}

// New compiles rules into a Chain. Blank rules and rules starting with "#"
// are ignored.
func New(rules []string) (*Chain, error) {
	c := &Chain{}
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r == "" || strings.HasPrefix(r, "#") {
			continue
		}
		include := strings.HasPrefix(r, "!")
		if include {
			r = strings.TrimSpace(r[1:])
		}
		p, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("filter rule %q: %w", r, err)
		}
		c.rules = append(c.rules, rule{pattern: p, include: include})
	}
	return c, nil
}

// Empty reports whether the chain has no rules. A nil chain is empty.
func (c *Chain) Empty() bool {
	return c == nil || len(c.rules) == 0
}

// Excluded reports whether relPath (slash-separated, relative to the
// source root) is filtered out.
func (c *Chain) Excluded(relPath string, isDir bool) bool {
	if c == nil {
		return false
	}
	excluded := false
	for _, r := range c.rules {
		if r.pattern.match(relPath, isDir) {
			excluded = !r.include
		}
	}
	return excluded
}
