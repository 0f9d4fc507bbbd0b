package extraction

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/KhushM7/UncTube/internal/media"
)

// Call records one collaborator invocation.
type Call struct {
	Method   string
	Modality media.Modality
	Input    string
}

// MockCollaborator is a deterministic offline collaborator. Zero-value fields select
// the built-in behavior; tests override them to script responses.
type MockCollaborator struct {
	TextFacts  []Fact
	FileFacts  []Fact
	Transcript string
	AnswerFunc func(question string, pack ContextPack) (Answer, error)
	MatchFunc  func(question string, inventory []string, topN int) (KeywordMatch, error)
	Err        error

	mu    sync.Mutex
	calls []Call
}

func NewMockCollaborator() *MockCollaborator {
	return &MockCollaborator{}
}

func (m *MockCollaborator) record(method string, modality media.Modality, input string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: method, Modality: modality, Input: input})
}

func (m *MockCollaborator) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockCollaborator) CallCount(method string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (m *MockCollaborator) ExtractFromText(_ context.Context, text string, modality media.Modality) ([]Fact, error) {
	m.record("ExtractFromText", modality, text)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.TextFacts != nil {
		return cloneFacts(m.TextFacts), nil
	}
	return factsFromText(text), nil
}

func (m *MockCollaborator) ExtractFromFile(_ context.Context, path, _ string, modality media.Modality) ([]Fact, error) {
	m.record("ExtractFromFile", modality, path)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FileFacts != nil {
		return cloneFacts(m.FileFacts), nil
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []Fact{{Title: name, Summary: "A " + modality.String() + " memory.", EventType: "Other"}}, nil
}

// Transcribe returns Transcript when set, otherwise the file's bytes as text.
func (m *MockCollaborator) Transcribe(_ context.Context, path, _ string, modality media.Modality) (string, error) {
	m.record("Transcribe", modality, path)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Transcript != "" {
		return m.Transcript, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (m *MockCollaborator) Answer(_ context.Context, question string, pack ContextPack) (Answer, error) {
	m.record("Answer", media.ModalityUnknown, question)
	if m.Err != nil {
		return Answer{}, m.Err
	}
	if m.AnswerFunc != nil {
		return m.AnswerFunc(question, pack)
	}
	if len(pack.Memories) == 0 {
		return Answer{Text: "I don't know."}, nil
	}
	top := pack.Memories[0]
	text := top.Summary
	if text == "" {
		text = top.Title
	}
	return Answer{Text: "I remember this: " + text, UsedIDs: []string{top.MemoryUnitID}}, nil
}

// MatchKeywords scores inventory entries that occur in the question as 9, others as 1.
func (m *MockCollaborator) MatchKeywords(_ context.Context, question string, inventory []string, _ int) (KeywordMatch, error) {
	m.record("MatchKeywords", media.ModalityUnknown, question)
	if m.Err != nil {
		return KeywordMatch{}, m.Err
	}
	if m.MatchFunc != nil {
		return m.MatchFunc(question, inventory, 0)
	}
	q := strings.ToLower(question)
	out := KeywordMatch{Matches: []Match{}, Keywords: []string{}}
	for _, kw := range inventory {
		score := 1.0
		if strings.Contains(q, strings.ToLower(kw)) {
			score = 9
			out.Keywords = append(out.Keywords, kw)
		}
		out.Matches = append(out.Matches, Match{Keyword: kw, Score: score})
	}
	return out, nil
}

// factsFromText derives one fact per paragraph: the first line is the title and
// words of four letters or more become keywords.
func factsFromText(text string) []Fact {
	facts := make([]Fact, 0)
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		title, rest, _ := strings.Cut(para, "\n")
		seen := make(map[string]struct{})
		keywords := make([]string, 0, 5)
		for _, w := range strings.FieldsFunc(strings.ToLower(para), func(r rune) bool {
			return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
		}) {
			if len(w) < 4 {
				continue
			}
			if _, ok := seen[w]; ok {
				continue
			}
			seen[w] = struct{}{}
			keywords = append(keywords, w)
			if len(keywords) == 5 {
				break
			}
		}
		summary := strings.TrimSpace(rest)
		if summary == "" {
			summary = title
		}
		facts = append(facts, Fact{Title: strings.TrimSpace(title), Summary: summary, EventType: "Other", Keywords: keywords})
	}
	return facts
}

func cloneFacts(in []Fact) []Fact {
	out := make([]Fact, len(in))
	for i, f := range in {
		f.Places = append([]string(nil), f.Places...)
		f.Dates = append([]string(nil), f.Dates...)
		f.Keywords = append([]string(nil), f.Keywords...)
		out[i] = f
	}
	return out
}
