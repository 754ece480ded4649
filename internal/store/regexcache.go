package store

import "regexp"

// cachedRegexp memoizes one compiled pattern. The registered `regexp`
// SQL scalar function is invoked once per row, so compiling lazily and
// reusing the result keeps a query's pattern "compiled once per SQL
// statement" as spec.md §4.2 requires, without needing SQLite's
// auxdata hook (not exposed by modernc.org/sqlite's scalar-function API).
type cachedRegexp struct {
	re *regexp.Regexp
}

func (c *regexCache) get(pattern string) (*regexp.Regexp, error) {
	c.mu.Lock()
	if entry, ok := c.cache[pattern]; ok {
		c.mu.Unlock()
		return entry.re, nil
	}
	c.mu.Unlock()

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[pattern] = &cachedRegexp{re: re}
	c.mu.Unlock()
	return re, nil
}
