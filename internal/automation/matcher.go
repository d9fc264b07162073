package automation

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMatchThreshold 低于该相似度视为未知问题
const DefaultMatchThreshold = 0.85

// Answer 标准答案
type Answer struct {
	ID        int64
	Question  string
	Answer    string
	UpdatedAt time.Time
}

// Normalize 去重音、小写、标点转空格并压缩空白
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	folded = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return ' '
		}
		return unicode.ToLower(r)
	}, folded)

	return strings.Join(strings.Fields(folded), " ")
}

// Similarity 归一化后的编辑距离相似度，范围 [0,1]
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return 1
	}
	if na == "" || nb == "" {
		return 0
	}
	return levenshtein.Similarity(na, nb, nil)
}

// Match 一次匹配结果
type Match struct {
	Answer Answer
	Score  float64
}

// BestMatch 选出相似度不低于阈值的最佳答案。
// 同分时依次比较：问题原文完全一致、更新时间更近、ID 更小
func BestMatch(question string, answers []Answer, threshold float64) (Match, bool) {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	trimmed := strings.TrimSpace(question)
	var candidates []Match
	for _, a := range answers {
		score := Similarity(question, a.Question)
		if score >= threshold {
			candidates = append(candidates, Match{Answer: a, Score: score})
		}
	}
	if len(candidates) == 0 {
		return Match{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Score != cj.Score {
			return ci.Score > cj.Score
		}
		ei := strings.TrimSpace(ci.Answer.Question) == trimmed
		ej := strings.TrimSpace(cj.Answer.Question) == trimmed
		if ei != ej {
			return ei
		}
		if !ci.Answer.UpdatedAt.Equal(cj.Answer.UpdatedAt) {
			return ci.Answer.UpdatedAt.After(cj.Answer.UpdatedAt)
		}
		return ci.Answer.ID < cj.Answer.ID
	})

	return candidates[0], true
}
