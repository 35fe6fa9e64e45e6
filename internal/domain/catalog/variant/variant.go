// Package variant holds catalog item types, lookup keys and image URL rendering.
package variant

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// UIDPrefix prefixes stable variant identifiers.
const UIDPrefix = "ntr:var:"

// Row is a projected variant row keyed by column name.
type Row map[string]any

// String returns the column as a string, "" when absent or NULL.
func (r Row) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// Int64 returns the column as an integer, 0 when absent or not numeric.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int32:
		return int64(v)
	case int:
		return int64(v)
	default:
		n, err := strconv.ParseInt(r.String(col), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
}

// KeyKind selects how a lookup token is matched.
type KeyKind int

// Lookup kinds.
const (
	// ByNumber matches article_id, then the zero-padded uid, then slug.
	ByNumber KeyKind = iota
	ByUID
	BySlug
)

// Key is a parsed /v1/variants/{key} token.
type Key struct {
	kind  KeyKind
	token string
	id    int64
}

// ParseKey classifies a lookup token: all digits is numeric, anything with ':' is a uid, else a slug.
func ParseKey(token string) (Key, error) {
	if token == "" {
		return Key{}, fmt.Errorf("empty variant key")
	}
	if isDigits(token) {
		id, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			// Too many digits for an id; it can still be a slug.
			return Key{kind: BySlug, token: token}, nil
		}
		return Key{kind: ByNumber, token: token, id: id}, nil
	}
	if strings.Contains(token, ":") {
		return Key{kind: ByUID, token: token}, nil
	}
	return Key{kind: BySlug, token: token}, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Kind returns the lookup kind.
func (k Key) Kind() KeyKind { return k.kind }

// Token returns the raw token.
func (k Key) Token() string { return k.token }

// ID returns the numeric id for ByNumber keys.
func (k Key) ID() int64 { return k.id }

// UID returns the stable identifier derived from a numeric id.
func (k Key) UID() string {
	return FormatUID(k.id)
}

// FormatUID renders id as ntr:var:########.
func FormatUID(id int64) string {
	return fmt.Sprintf("%s%08d", UIDPrefix, id)
}

// Image is one stored image of a variant.
type Image struct {
	ImageID   int64
	VariantID int64
	Type      *string
	Weight    *string
	Diameter  *string
	Ordering  *int64
}

// ImageURLs renders viewer URLs for images.
type ImageURLs struct {
	Root       string // absolute site root, used when abs is requested
	ViewerPath string // e.g. /index.php?option=com_numistr&view=gorsel
}

// URL returns the viewer URL for imageID with the given watermark flag.
func (u ImageURLs) URL(imageID int64, wm int, abs bool) string {
	q := url.Values{}
	q.Set("id", strconv.FormatInt(imageID, 10))
	q.Set("wm", strconv.Itoa(wm))

	sep := "?"
	if strings.Contains(u.ViewerPath, "?") {
		sep = "&"
	}
	path := u.ViewerPath + sep + q.Encode()
	if abs {
		return strings.TrimRight(u.Root, "/") + path
	}
	return path
}

// Item is the public single-variant payload.
type Item struct {
	ArticleID      int64
	UID            string
	Slug           string
	Title          string
	Region         string
	Material       string // canonical, "" when unknown
	MaterialSource string // stored value before normalization
	Raw            Row
}

// Title picks the first non-empty title_<lang> column, else the slug.
func Title(r Row, languages []string) string {
	for _, lang := range languages {
		if t := strings.TrimSpace(r.String("title_" + lang)); t != "" {
			return r.String("title_" + lang)
		}
	}
	return r.String("slug")
}
