// Package classify determines which storage backend holds a content record's
// bytes and derives the concrete locator set to act on.
//
// Classification is a pure function of the record's locators at the moment of
// evaluation. Preview and execution share this code path, so a preview is a
// faithful forecast of what an execution run will touch: the two can never
// diverge in what they report versus what they do.
package classify

import (
	"path"
	"strings"

	"github.com/mediasweep/mediasweep/pkg/catalog"
)

// Kind is the closed set of backend classifications.
type Kind int

const (
	// KindUnknown means the record's locators match no known backend
	// shape. The engine never attempts backend mutation for Unknown.
	KindUnknown Kind = iota

	// KindContentAddressed means the locator is an immutable content hash
	// deleted via the pin backend (all-or-nothing unpin).
	KindContentAddressed

	// KindObjectStore means the locator is a hierarchical object key
	// deleted per-object or per-prefix.
	KindObjectStore
)

func (k Kind) String() string {
	switch k {
	case KindContentAddressed:
		return "content_addressed"
	case KindObjectStore:
		return "object_store"
	default:
		return "unknown"
	}
}

// ParseKind converts the wire/config spelling of a kind back to its enum.
func ParseKind(s string) Kind {
	switch s {
	case "content_addressed":
		return KindContentAddressed
	case "object_store":
		return KindObjectStore
	default:
		return KindUnknown
	}
}

// Rules holds the classification heuristics as configuration data.
//
// The hash shape and the "real object key vs bare upload-session token" rule
// are inherently approximate and tied to legacy data shapes, so they are
// deliberately overridable configuration rather than hardcoded literals.
type Rules struct {
	// HashPrefix is the required prefix of a content-address hash.
	HashPrefix string `mapstructure:"hash_prefix" yaml:"hash_prefix"`

	// HashLength is the exact length of a content-address hash.
	HashLength int `mapstructure:"hash_length" yaml:"hash_length"`

	// HashAlphabet is the allowed character set of a content-address hash.
	HashAlphabet string `mapstructure:"hash_alphabet" yaml:"hash_alphabet"`

	// SessionTokenLengths are the lengths at which a bare hex token is
	// treated as an upload-session artifact rather than a stored object.
	SessionTokenLengths []int `mapstructure:"session_token_lengths" yaml:"session_token_lengths"`

	// Resolutions are the transcode renditions the pipeline produces.
	Resolutions []string `mapstructure:"resolutions" yaml:"resolutions"`

	// PlaylistSuffix is the per-resolution playlist file extension.
	PlaylistSuffix string `mapstructure:"playlist_suffix" yaml:"playlist_suffix"`

	// ThumbnailDir is the thumbnail folder name under a record's prefix.
	ThumbnailDir string `mapstructure:"thumbnail_dir" yaml:"thumbnail_dir"`
}

// Base58 alphabet used by content-address hashes (no 0, O, I, l).
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// DefaultRules returns the rules matching the production data shapes.
func DefaultRules() Rules {
	return Rules{
		HashPrefix:          "Qm",
		HashLength:          46,
		HashAlphabet:        base58Alphabet,
		SessionTokenLengths: []int{32, 40, 64},
		Resolutions:         []string{"1080p", "720p", "480p", "360p"},
		PlaylistSuffix:      ".m3u8",
		ThumbnailDir:        "thumbs",
	}
}

// Classification is the result of classifying one record: the backend kind
// plus the concrete locator set to act on.
type Classification struct {
	// Kind is the backend holding the record's primary bytes.
	Kind Kind

	// Hashes are content-address hashes to unpin.
	Hashes []string

	// Files are individual object-store keys to delete.
	Files []string

	// Prefixes are object-store prefixes to delete recursively.
	Prefixes []string
}

// Empty reports whether the classification carries no actionable locators.
func (c *Classification) Empty() bool {
	return len(c.Hashes) == 0 && len(c.Files) == 0 && len(c.Prefixes) == 0
}

// Classify determines the backend kind for a record and derives its locator
// set. Deterministic and side-effect-free.
//
// The primary locator decides the kind. The original pre-processing source
// artifact is added to the locator set whatever the primary kind, because it
// is stored and deleted independently of the processed output: an
// encoding-failed record may have an original and nothing else.
func Classify(rec *catalog.ContentRecord, rules Rules) Classification {
	c := Classification{Kind: classifyLocator(rec.StorageLocator, rules)}

	switch c.Kind {
	case KindContentAddressed:
		c.Hashes = append(c.Hashes, rec.StorageLocator)
	case KindObjectStore:
		c.Files, c.Prefixes = deriveObjectSet(rec.StorageLocator, rules)
	}

	// The original artifact rides along independently.
	if rec.OriginalLocator != "" && rec.OriginalLocator != rec.StorageLocator {
		switch classifyLocator(rec.OriginalLocator, rules) {
		case KindContentAddressed:
			c.Hashes = append(c.Hashes, rec.OriginalLocator)
			if c.Kind == KindUnknown {
				c.Kind = KindContentAddressed
			}
		case KindObjectStore:
			c.Files = append(c.Files, rec.OriginalLocator)
			if c.Kind == KindUnknown {
				c.Kind = KindObjectStore
			}
		}
	}

	return c
}

// classifyLocator applies the kind heuristics to a single locator.
func classifyLocator(loc string, rules Rules) Kind {
	if loc == "" {
		return KindUnknown
	}

	if isContentHash(loc, rules) {
		return KindContentAddressed
	}

	// Bare fixed-length hex tokens are upload-session artifacts left behind
	// by the legacy uploader, not stored objects.
	if isSessionToken(loc, rules) {
		return KindUnknown
	}

	if strings.Contains(loc, "/") || path.Ext(loc) != "" {
		return KindObjectStore
	}

	return KindUnknown
}

// deriveObjectSet expands an object-store locator into the full set of keys
// and prefixes the transcode pipeline produced for it: each resolution's
// playlist file and segment folder, plus the thumbnail folder.
func deriveObjectSet(loc string, rules Rules) (files []string, prefixes []string) {
	base := basePrefix(loc)

	if !strings.HasSuffix(loc, "/") {
		files = append(files, loc)
	}

	if base == "" {
		// Top-level single file; nothing further to derive.
		return files, prefixes
	}

	for _, res := range rules.Resolutions {
		playlist := base + res + rules.PlaylistSuffix
		if playlist != loc {
			files = append(files, playlist)
		}
		prefixes = append(prefixes, base+res+"/")
	}

	if rules.ThumbnailDir != "" {
		prefixes = append(prefixes, base+rules.ThumbnailDir+"/")
	}

	return files, prefixes
}

// basePrefix returns the record's storage prefix (with trailing slash), or ""
// for a top-level key with no directory component.
func basePrefix(loc string) string {
	if strings.HasSuffix(loc, "/") {
		return loc
	}
	dir := path.Dir(loc)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

func isContentHash(s string, rules Rules) bool {
	if rules.HashLength > 0 && len(s) != rules.HashLength {
		return false
	}
	if !strings.HasPrefix(s, rules.HashPrefix) {
		return false
	}
	if rules.HashAlphabet == "" {
		return true
	}
	for _, r := range s {
		if !strings.ContainsRune(rules.HashAlphabet, r) {
			return false
		}
	}
	return true
}

func isSessionToken(s string, rules Rules) bool {
	lengthMatch := false
	for _, l := range rules.SessionTokenLengths {
		if len(s) == l {
			lengthMatch = true
			break
		}
	}
	if !lengthMatch {
		return false
	}
	for _, r := range s {
		if !isHexRune(r) {
			return false
		}
	}
	return true
}

func isHexRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
