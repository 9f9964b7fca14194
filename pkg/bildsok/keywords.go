package bildsok

import (
	"sort"
	"strings"
	"unicode/utf8"

	"k8s.io/klog/v2"
)

// keywordPunct are full-width punctuation marks; tokens made up entirely of
// these are never useful search terms.
const keywordPunct = "，。、！？：；"

var phraseSplitter = strings.NewReplacer("，", " ", "。", " ")

// ExtractKeywords derives a deduplicated, ranked keyword list from a vision
// description. Longer keywords sort first (they tend to be more descriptive),
// ties break lexically, and the result is capped at the mode's limit. This
// function never fails: if extraction blows up it falls back to naive
// whole-text tokenization.
func ExtractKeywords(description string, mode Mode) (kws []string) {
	ms := mode.spec()

	defer func() {
		if r := recover(); r != nil {
			klog.Warningf("keyword extraction failed, using fallback tokenizer: %v", r)
			kws = fallbackKeywords(description, ms)
		}
	}()

	seen := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(description), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, rule := range ms.labels {
			if !strings.HasPrefix(line, rule.label) {
				continue
			}
			value := strings.TrimSpace(strings.TrimPrefix(line, rule.label))
			if value == "" || (rule.skipLiteral != "" && value == rule.skipLiteral) {
				break
			}
			if rule.split == splitPhrases {
				value = phraseSplitter.Replace(value)
			}
			for _, tok := range strings.Fields(value) {
				if utf8.RuneCountInString(tok) >= rule.minTokenLen {
					seen[tok] = true
				}
			}
			break
		}
	}

	for kw := range seen {
		if utf8.RuneCountInString(kw) < ms.minKeywordLen || punctuationOnly(kw) {
			continue
		}
		kws = append(kws, kw)
	}

	sort.Slice(kws, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(kws[i]), utf8.RuneCountInString(kws[j])
		if li != lj {
			return li > lj
		}
		return kws[i] < kws[j]
	})

	if len(kws) > ms.maxKeywords {
		kws = kws[:ms.maxKeywords]
	}
	return kws
}

// fallbackKeywords is the best-effort path: squash full-width punctuation to
// spaces and keep anything long enough.
func fallbackKeywords(description string, ms modeSpec) []string {
	r := strings.NewReplacer("，", " ", "。", " ", "：", " ")

	kws := []string{}
	for _, tok := range strings.Fields(r.Replace(description)) {
		if utf8.RuneCountInString(tok) >= ms.minKeywordLen {
			kws = append(kws, tok)
		}
	}
	if len(kws) > ms.fallbackMax {
		kws = kws[:ms.fallbackMax]
	}
	return kws
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune(keywordPunct, r) {
			return false
		}
	}
	return true
}
