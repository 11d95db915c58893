package filter

import (
	"regexp"
	"strings"
)

// pattern is a compiled glob. Patterns without a slash match the basename
// at any depth; patterns containing a slash (or starting with one) are
// anchored at the source root. A trailing slash restricts the match to
// directories.
type pattern struct {
	re      *regexp.Regexp
	dirOnly bool
}

func compile(glob string) (*pattern, error) {
	p := &pattern{}
	if strings.HasSuffix(glob, "/") {
		p.dirOnly = true
		glob = strings.TrimRight(glob, "/")
	}

	anchored := strings.Contains(glob, "/")
	glob = strings.TrimPrefix(glob, "/")

	prefix := "(^|/)"
	if anchored {
		prefix = "^"
	}
	re, err := regexp.Compile(prefix + translate(glob) + "$")
	if err != nil {
		return nil, err
	}
	p.re = re
	return p, nil
}

func (p *pattern) match(relPath string, isDir bool) bool {
	if p.dirOnly && !isDir {
		return false
	}
	return p.re.MatchString(relPath)
}

// translate turns glob syntax into a regular expression body.
//
//	**/  any number of leading directories
//	**   anything, including slashes
//	*    anything within one path segment
//	?    one character within a segment
//	[..] character class, "!" negates
func translate(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		switch c := glob[i]; c {
		case '*':
			if !strings.HasPrefix(glob[i:], "**") {
				b.WriteString("[^/]*")
				continue
			}
			if strings.HasPrefix(glob[i:], "**/") {
				b.WriteString("(.*/)?")
				i += 2
			} else {
				b.WriteString(".*")
				i++
			}
		case '?':
			b.WriteString("[^/]")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
