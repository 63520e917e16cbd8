// Package tokenizer estimates token counts for prompt budgeting.
//
// Exact tokenization requires the provider's vocabulary, which is not
// shipped with the models' APIs. The estimating counter uses the heuristic
// DeepSeek publishes: one ASCII character is roughly 0.3 tokens and one CJK
// character roughly 0.6 tokens. That is close enough for budget checks.
package tokenizer

import (
	"fmt"
	"math"
	"sync"
	"unicode"
)

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
	// Fits reports whether text stays within a token budget.
	Fits(text string, budget int) bool
}

// EstimatingCounter approximates token counts from character classes.
type EstimatingCounter struct {
	asciiPerChar float64
	cjkPerChar   float64
}

// NewEstimatingCounter returns a counter using the DeepSeek heuristic.
func NewEstimatingCounter() *EstimatingCounter {
	return &EstimatingCounter{asciiPerChar: 0.3, cjkPerChar: 0.6}
}

func (c *EstimatingCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	var total float64
	for _, r := range text {
		if isCJK(r) {
			total += c.cjkPerChar
		} else {
			total += c.asciiPerChar
		}
	}
	n := int(math.Ceil(total))
	if n < 1 {
		n = 1
	}
	return n
}

func (c *EstimatingCounter) Fits(text string, budget int) bool {
	return c.Count(text) <= budget
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

// Service maps provider names to counters.
type Service struct {
	mu       sync.RWMutex
	counters map[string]Counter
	fallback Counter
}

// NewService creates a service with an estimating counter as fallback.
func NewService() *Service {
	return &Service{
		counters: map[string]Counter{},
		fallback: NewEstimatingCounter(),
	}
}

// Register adds a counter for a provider name.
func (s *Service) Register(name string, c Counter) {
	s.mu.Lock()
	s.counters[name] = c
	s.mu.Unlock()
}

// Get returns the counter for a provider, or the fallback when none is
// registered.
func (s *Service) Get(name string) Counter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.counters[name]; ok {
		return c
	}
	return s.fallback
}

// CheckBudget returns an error when text exceeds the provider's token budget.
func (s *Service) CheckBudget(provider, text string, budget int) error {
	if budget <= 0 {
		return nil
	}
	counter := s.Get(provider)
	if n := counter.Count(text); n > budget {
		return fmt.Errorf("prompt exceeds token budget: estimated %d > %d", n, budget)
	}
	return nil
}
