package expr

import (
	"container/list"
	"regexp"
	"sync"
)

const (
	maxRegexCacheEntries = 100
	maxRegexPatternLen   = 1000
)

// regexCache is a bounded, mutex-guarded LRU cache of compiled patterns,
// shared by a single Evaluator across goroutines (spec §5: "the regex
// cache is guarded by a mutex").
type regexCache struct {
	mu    sync.Mutex
	cap   int
	ll    *list.List
	items map[string]*list.Element
}

type regexCacheEntry struct {
	pattern string
	re      *regexp.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{
		cap:   maxRegexCacheEntries,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// compile returns a compiled pattern, rejecting oversized or
// catastrophically-backtracking-shaped patterns before they ever reach
// the regex engine.
func (c *regexCache) compile(pattern string) (*regexp.Regexp, error) {
	if len(pattern) > maxRegexPatternLen {
		return nil, &Error{Kind: RegexError, Message: "pattern exceeds maximum length"}
	}
	if isNestedQuantifier(pattern) {
		return nil, &Error{Kind: RegexError, Message: "pattern rejected: nested quantifier shape may cause catastrophic backtracking"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[pattern]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*regexCacheEntry).re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &Error{Kind: RegexError, Message: err.Error()}
	}

	el := c.ll.PushFront(&regexCacheEntry{pattern: pattern, re: re})
	c.items[pattern] = el
	if c.ll.Len() > c.cap {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*regexCacheEntry).pattern)
		}
	}
	return re, nil
}

// isNestedQuantifier rejects patterns of the shape (X+|*)+|* where the
// inner group itself contains a quantifier — the classic catastrophic
// backtracking shape. Go's RE2-backed regexp package never actually
// backtracks exponentially, but the spec requires these patterns be
// rejected pre-compilation regardless of engine, so a pattern that is
// rejected here behaves identically whichever engine later parses it.
func isNestedQuantifier(pattern string) bool {
	depth := 0
	groupHasQuantifier := false
	groupStart := -1

	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			i++ // skip escaped char
		case '(':
			if depth == 0 {
				groupStart = i
				groupHasQuantifier = false
			}
			depth++
		case '+', '*':
			if depth > 0 {
				groupHasQuantifier = true
			}
		case '{':
			if depth > 0 {
				groupHasQuantifier = true
			}
		case ')':
			depth--
			if depth == 0 && groupStart >= 0 && groupHasQuantifier {
				// Group just closed with an inner quantifier; check what
				// immediately follows it for an outer quantifier.
				rest := pattern[i+1:]
				if len(rest) > 0 && (rest[0] == '+' || rest[0] == '*') {
					return true
				}
			}
		}
	}
	return false
}
