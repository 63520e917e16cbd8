package core

import (
	"testing"
	"time"

	prov "github.com/deepcision/deepcision/internal/providers"
)

func TestMetrics(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordRequest(100 * time.Millisecond)
	metrics.RecordRequest(200 * time.Millisecond)
	metrics.RecordError()

	requests, errors, duration := metrics.GetStats()

	if requests != 2 {
		t.Errorf("Expected 2 requests, got %d", requests)
	}
	if errors != 1 {
		t.Errorf("Expected 1 error, got %d", errors)
	}
	if duration != 300*time.Millisecond {
		t.Errorf("Expected 300ms duration, got %v", duration)
	}
}

func BenchmarkMetricsRecording(b *testing.B) {
	metrics := NewMetrics()

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		metrics.RecordRequest(time.Millisecond)
		if i%10 == 0 {
			metrics.RecordError()
		}
	}
}

func BenchmarkKey(b *testing.B) {
	req := prov.ChatRequest{
		Model: "deepseek-chat",
		Messages: []prov.Message{
			{Role: "system", Content: "You are a helpful assistant."},
			{Role: "user", Content: "Summarize the tradeoffs of eventual consistency."},
		},
		MaxTokens: 2000,
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = Key("deepseek", "deepseek-chat", req)
	}
}

func BenchmarkChunkDocuments(b *testing.B) {
	docs := make([]string, 50)
	for i := range docs {
		docs[i] = "document body text"
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = ChunkDocuments(docs, 3)
	}
}
