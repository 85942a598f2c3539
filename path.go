package lockmgr

import "strings"

// RootPath is the collection namespace root. Every valid path is "/db" or
// "/db" followed by one or more non-empty, slash-separated segments.
const RootPath = "/db"

// Canonicalize normalizes a collection path: trailing slashes are trimmed
// and the result is validated. Equality of canonical paths is plain string
// equality.
func Canonicalize(path string) (string, error) {
	if path == "" {
		return "", &PathError{Path: path, Reason: "empty path"}
	}

	trimmed := path
	for len(trimmed) > len(RootPath) && strings.HasSuffix(trimmed, "/") {
		trimmed = trimmed[:len(trimmed)-1]
	}

	if trimmed != RootPath && !strings.HasPrefix(trimmed, RootPath+"/") {
		return "", &PathError{Path: path, Reason: "path must be \"" + RootPath + "\" or start with \"" + RootPath + "/\""}
	}

	if trimmed == RootPath {
		return RootPath, nil
	}

	segments := strings.Split(trimmed[len(RootPath)+1:], "/")
	for _, seg := range segments {
		if seg == "" {
			return "", &PathError{Path: path, Reason: "empty path segment"}
		}
	}

	return trimmed, nil
}

// Ancestors returns the canonical ancestor chain of path, root first: for
// "/db/colA/colB" that is ["/db", "/db/colA", "/db/colA/colB"]. For
// path == "/db" it returns ["/db"].
func Ancestors(path string) ([]string, error) {
	canon, err := Canonicalize(path)
	if err != nil {
		return nil, err
	}

	if canon == RootPath {
		return []string{RootPath}, nil
	}

	segments := strings.Split(canon[len(RootPath)+1:], "/")
	chain := make([]string, 0, len(segments)+1)
	chain = append(chain, RootPath)

	cur := RootPath
	for _, seg := range segments {
		cur = cur + "/" + seg
		chain = append(chain, cur)
	}
	return chain, nil
}

// Parent returns the canonical parent of path, and ok=false if path is the
// root (the root has no parent).
func Parent(path string) (parent string, ok bool, err error) {
	chain, err := Ancestors(path)
	if err != nil {
		return "", false, err
	}
	if len(chain) < 2 {
		return "", false, nil
	}
	return chain[len(chain)-2], true, nil
}
