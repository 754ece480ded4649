package model

// IndexedImage is the persisted row backing one scanned path. Exactly one
// row exists per known path; it is created on first successful OCR and
// updated whenever the file's modtime changes or a rescan is forced.
type IndexedImage struct {
	ID         int64
	Path       string
	ModTime    int64
	MarkDelete bool
	Content    string
}

// OcrResult is the transient record C1 hands to C2.Save for one successful
// scan. It is never persisted as-is; Save maps it onto an IndexedImage row.
type OcrResult struct {
	Path     string
	ModTime  int64
	Contents string
}

// QueryKind selects one of the four search dialects C5 understands.
type QueryKind int

const (
	QuerySimple QueryKind = iota
	QueryMatch
	QueryGlob
	QueryRegex
)

func (k QueryKind) String() string {
	switch k {
	case QuerySimple:
		return "simple"
	case QueryMatch:
		return "match"
	case QueryGlob:
		return "glob"
	case QueryRegex:
		return "regex"
	default:
		return "unknown"
	}
}

// ParseQueryKind maps the --search-type flag value onto a QueryKind.
func ParseQueryKind(s string) (QueryKind, bool) {
	switch s {
	case "simple":
		return QuerySimple, true
	case "match":
		return QueryMatch, true
	case "glob":
		return QueryGlob, true
	case "regex":
		return QueryRegex, true
	default:
		return QuerySimple, false
	}
}

// SearchQuery is the transient input to C5.Search.
type SearchQuery struct {
	Terms       []string
	PathPrefix  string
	Limit       int
	Kind        QueryKind
	ExcludeGlob string
}

// SearchResult is one row of C5.Search output: an indexed path, its stored
// modtime, and a highlighted snippet of its OCR content.
type SearchResult struct {
	Path    string
	ModTime int64
	Snippet string
}
