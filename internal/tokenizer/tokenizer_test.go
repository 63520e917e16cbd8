package tokenizer

import "testing"

func TestEstimatingCounter(t *testing.T) {
	c := NewEstimatingCounter()

	if got := c.Count(""); got != 0 {
		t.Errorf("empty text: %d, want 0", got)
	}
	// 5 ASCII chars * 0.3 = 1.5, ceil to 2
	if got := c.Count("hello"); got != 2 {
		t.Errorf("hello: %d, want 2", got)
	}
	// single char rounds up to the 1 minimum
	if got := c.Count("a"); got != 1 {
		t.Errorf("single char: %d, want 1", got)
	}
	// 4 CJK chars * 0.6 = 2.4, ceil to 3
	if got := c.Count("你好世界"); got != 3 {
		t.Errorf("CJK: %d, want 3", got)
	}
	// mixed: 2 CJK (1.2) + 5 ASCII (1.5) = 2.7, ceil to 3
	if got := c.Count("你好hello"); got != 3 {
		t.Errorf("mixed: %d, want 3", got)
	}
}

func TestFits(t *testing.T) {
	c := NewEstimatingCounter()
	if !c.Fits("hello", 2) {
		t.Error("hello should fit in 2 tokens")
	}
	if c.Fits("hello", 1) {
		t.Error("hello should not fit in 1 token")
	}
}

// fixedCounter always returns the same count
type fixedCounter struct{ n int }

func (f fixedCounter) Count(text string) int            { return f.n }
func (f fixedCounter) Fits(text string, budget int) bool { return f.n <= budget }

func TestServiceFallback(t *testing.T) {
	s := NewService()
	s.Register("custom", fixedCounter{n: 42})

	if got := s.Get("custom").Count("anything"); got != 42 {
		t.Errorf("registered counter: %d, want 42", got)
	}
	// Unregistered provider falls back to the estimating counter.
	if got := s.Get("unknown").Count("hello"); got != 2 {
		t.Errorf("fallback counter: %d, want 2", got)
	}
}

func TestCheckBudget(t *testing.T) {
	s := NewService()

	if err := s.CheckBudget("any", "hello", 100); err != nil {
		t.Errorf("within budget: %v", err)
	}
	if err := s.CheckBudget("any", "hello world, a longer text", 1); err == nil {
		t.Error("expected error when over budget")
	}
	// Zero budget disables the check.
	if err := s.CheckBudget("any", "hello", 0); err != nil {
		t.Errorf("zero budget should pass: %v", err)
	}
}
