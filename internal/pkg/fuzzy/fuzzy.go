// Package fuzzy scores how alike two shop names are.
//
// Names are normalized (case, domain noise, punctuation and generic retail
// words removed) and then compared with the Ratcliff/Obershelp ratio.
package fuzzy

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	AutoMergeThreshold = 98.0
	ReviewThreshold    = 70.0
)

type Band int

const (
	// BandDistinct means the names belong to different shops.
	BandDistinct Band = iota
	// BandReview means a new canonical is opened but flagged with the score.
	BandReview
	// BandAutoMerge means the names are the same shop.
	BandAutoMerge
)

func (b Band) String() string {
	switch b {
	case BandAutoMerge:
		return "auto_merge"
	case BandReview:
		return "review"
	default:
		return "distinct"
	}
}

// BandFor classifies a score.
func BandFor(score float64) Band {
	switch {
	case score >= AutoMergeThreshold:
		return BandAutoMerge
	case score >= ReviewThreshold:
		return BandReview
	default:
		return BandDistinct
	}
}

type Matcher interface {
	Normalize(name string) string
	Score(a, b string) float64
}

type Normalizer func(string) string

type matcher struct {
	normalize Normalizer
}

// New returns the default shop-name matcher.
func New() Matcher {
	return &matcher{normalize: NormalizeShopName}
}

// NewWithNormalizer swaps the normalization step.
func NewWithNormalizer(n Normalizer) Matcher {
	if n == nil {
		n = NormalizeShopName
	}
	return &matcher{normalize: n}
}

func (m *matcher) Normalize(name string) string { return m.normalize(name) }

func (m *matcher) Score(a, b string) float64 {
	return Ratio(m.normalize(a), m.normalize(b))
}

// Score compares a and b with the default matcher.
func Score(a, b string) float64 {
	return Ratio(NormalizeShopName(a), NormalizeShopName(b))
}

// Ratio is the Ratcliff/Obershelp similarity of two already normalized strings
// scaled to [0,100]. Inputs are ordered before matching so that
// Ratio(a,b) == Ratio(b,a) even when the longest-block search is ambiguous.
func Ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	if a > b {
		a, b = b, a
	}
	sm := difflib.NewMatcherWithJunk(runes(a), runes(b), false, nil)
	return sm.Ratio() * 100
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

var domainSuffixes = []string{".co.uk", ".de", ".com", ".at", ".ch", ".net", ".org", ".eu", ".shop"}

var punctuation = strings.NewReplacer(
	"-", "", "_", "", ".", "", ",", "", "&", "", "!", "", "?", "", "'", "", `"`, "",
)

var genericTokens = map[string]struct{}{
	"onlineshop": {},
	"online":     {},
	"shop":       {},
	"store":      {},
	"club":       {},
	"gmbh":       {},
	"ag":         {},
	"de":         {},
}

// NormalizeShopName folds a raw shop name to the form used for matching. A
// name made only of generic words keeps its letters rather than collapsing to
// the empty string.
func NormalizeShopName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	s = strings.TrimSuffix(s, "/")
	for _, suf := range domainSuffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}
	s = punctuation.Replace(s)
	fields := strings.Fields(s)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, generic := genericTokens[f]; generic {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return strings.Join(fields, "")
	}
	return strings.Join(kept, "")
}
