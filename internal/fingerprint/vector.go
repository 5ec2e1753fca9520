package fingerprint

import (
	"math"
	"regexp"
	"strings"
)

// tokenPattern keeps runs of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Tokenize lowercases text and returns its word tokens.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// vector is a sparse, L2-normalized term weight vector.
type vector map[string]float64

// tfidf fits smooth IDF weights on docs, ln((1+n)/(1+df)) + 1, and returns
// one normalized raw-count TF-IDF vector per document.
func tfidf(docs []string) []vector {
	counts := make([]map[string]float64, len(docs))
	df := make(map[string]int)
	for i, doc := range docs {
		tf := make(map[string]float64)
		for _, token := range Tokenize(doc) {
			tf[token]++
		}
		for token := range tf {
			df[token]++
		}
		counts[i] = tf
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, freq := range df {
		idf[term] = math.Log((1+n)/(1+float64(freq))) + 1
	}

	vectors := make([]vector, len(docs))
	for i, tf := range counts {
		v := make(vector, len(tf))
		var norm float64
		for term, count := range tf {
			w := count * idf[term]
			v[term] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for term := range v {
				v[term] /= norm
			}
		}
		vectors[i] = v
	}
	return vectors
}

// cosine returns the similarity of two normalized vectors.
func cosine(a, b vector) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for term, w := range a {
		dot += w * b[term]
	}
	return dot
}
