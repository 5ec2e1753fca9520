// Package fingerprint attributes text to a known author by TF-IDF cosine
// similarity against per-author writing samples.
package fingerprint

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrNoFingerprints is returned when no author has any sample.
var ErrNoFingerprints = errors.New("no author fingerprints available")

// Author is a named set of writing samples.
type Author struct {
	Name    string   `yaml:"-" json:"name"`
	Samples []string `yaml:"samples" json:"samples"`
}

// AuthorScore is the mean similarity of the input to one author.
type AuthorScore struct {
	Author string  `json:"author"`
	Score  float64 `json:"score"`
}

// Result is the outcome of one match.
type Result struct {
	Author     string             `json:"author"`
	Confidence float64            `json:"confidence"`
	RawScores  map[string]float64 `json:"raw_scores"`
	Ranking    []AuthorScore      `json:"-"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Parse reads a YAML mapping of author name to {samples: [...]}. Document
// order is kept so ties resolve to the author listed first.
func Parse(data []byte) ([]Author, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fingerprints: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("parse fingerprints: top level must be a mapping of author names")
	}

	authors := make([]Author, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		var a Author
		if err := root.Content[i+1].Decode(&a); err != nil {
			return nil, fmt.Errorf("parse fingerprints: author %q: %w", root.Content[i].Value, err)
		}
		a.Name = root.Content[i].Value
		authors = append(authors, a)
	}
	return authors, nil
}

// LoadFile reads fingerprints from a YAML file. A missing file yields no authors.
func LoadFile(path string) ([]Author, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fingerprints: %w", err)
	}
	return Parse(data)
}

// Match scores text against every author's samples and returns the author
// with the highest mean similarity. Authors without samples are ignored.
func Match(text string, authors []Author) (Result, error) {
	var docs []string
	owners := make([]int, 0)
	for i, a := range authors {
		for _, sample := range a.Samples {
			docs = append(docs, sample)
			owners = append(owners, i)
		}
	}
	if len(docs) == 0 {
		return Result{}, ErrNoFingerprints
	}

	docs = append(docs, strings.ToLower(text))
	vectors := tfidf(docs)
	input := vectors[len(vectors)-1]

	sums := make([]float64, len(authors))
	counts := make([]int, len(authors))
	for j, owner := range owners {
		sums[owner] += cosine(input, vectors[j])
		counts[owner]++
	}

	result := Result{
		RawScores: make(map[string]float64, len(authors)),
		Timestamp: time.Now().UTC(),
	}
	best := -1.0
	for i, a := range authors {
		if counts[i] == 0 {
			continue
		}
		mean := sums[i] / float64(counts[i])
		result.RawScores[a.Name] = mean
		result.Ranking = append(result.Ranking, AuthorScore{Author: a.Name, Score: mean})
		if mean > best {
			best = mean
			result.Author = a.Name
		}
	}
	result.Confidence = Round(best, 4)
	return result, nil
}

// Round rounds half away from zero to the given number of decimal places.
func Round(value float64, places int32) float64 {
	rounded, _ := decimal.NewFromFloat(value).Round(places).Float64()
	return rounded
}
