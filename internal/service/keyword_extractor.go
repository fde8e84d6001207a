package service

import (
	"context"
	"sort"
	"strings"
	"unicode"
)

// KeywordExtractor finds concepts locally from n-gram frequency. It needs no
// external service and is used when no LLM provider is configured.
//
// Unigrams, bigrams and trigrams free of stop words are counted; the most
// frequent are kept, dropping any n-gram contained in another kept one.
type KeywordExtractor struct {
	MaxConcepts int
}

var _ ConceptExtractor = KeywordExtractor{}

func (e KeywordExtractor) ExtractConcepts(_ context.Context, term string) ([]string, error) {
	limit := e.MaxConcepts
	if limit <= 0 {
		limit = defaultMaxConcepts
	}

	words := strings.Fields(strings.ToLower(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, term)))

	var (
		counts = map[string]int{}
		order  []string
	)
	add := func(gram string) {
		if _, ok := counts[gram]; !ok {
			order = append(order, gram)
		}
		counts[gram]++
	}

	for _, w := range words {
		if len([]rune(w)) > 1 && !isStopWord(w) {
			add(w)
		}
	}
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			gram := words[i : i+n]
			if anyStopWord(gram) {
				continue
			}
			add(strings.Join(gram, " "))
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit*3 {
		order = order[:limit*3]
	}

	concepts := []string{}
	for _, gram := range order {
		if !containedInOther(gram, order) {
			concepts = append(concepts, gram)
		}
		if len(concepts) == limit {
			break
		}
	}
	return concepts, nil
}

func containedInOther(gram string, all []string) bool {
	for _, other := range all {
		if other != gram && strings.Contains(other, gram) {
			return true
		}
	}
	return false
}

func anyStopWord(words []string) bool {
	for _, w := range words {
		if isStopWord(w) {
			return true
		}
	}
	return false
}

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

var stopWords = func() map[string]struct{} {
	list := strings.Fields(`
		i me my myself we our ours ourselves you your yours yourself yourselves
		he him his himself she her hers herself it its itself they them their
		theirs themselves what which who whom this that these those am is are
		was were be been being have has had having do does did doing a an the
		and but if or because as until while of at by for with about against
		between into through during before after above below to from up down in
		out on off over under again further then once here there when where why
		how all any both each few more most other some such no nor not only own
		same so than too very s t can will just don should now d ll m o re ve y
		ain aren could couldn didn doesn hadn hasn haven isn let ma might mightn
		must mustn need needn shan shouldn wasn weren won would wouldn`)
	out := make(map[string]struct{}, len(list))
	for _, w := range list {
		out[w] = struct{}{}
	}
	return out
}()
