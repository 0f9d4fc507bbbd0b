package extraction

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// decodeJSON parses the whole text, falling back to the span between the first '{'
// and the last '}'.
func decodeJSON(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}
	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, nil
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: %s", ErrMissingJSON, snippet(text))
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingJSON, snippet(text))
	}
	return payload, nil
}

var unitAliases = []string{"memory_unit", "memoryUnits", "units", "memories"}

func parseFacts(text string) ([]Fact, error) {
	payload, err := decodeJSON(text)
	if err != nil {
		return nil, err
	}

	var raw any
	switch p := payload.(type) {
	case []any:
		raw = p
	case map[string]any:
		if v, ok := p["memory_units"]; ok && v != nil {
			raw = v
		} else {
			for _, alias := range unitAliases {
				if v, ok := p[alias]; ok {
					raw = v
					break
				}
			}
		}
		if raw == nil {
			if _, hasTitle := p["title"]; hasTitle {
				raw = p
			} else if _, hasSummary := p["summary"]; hasSummary {
				raw = p
			}
		}
	}
	if single, ok := raw.(map[string]any); ok {
		raw = []any{single}
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingUnits, snippet(text))
	}

	facts := make([]Fact, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		f := Fact{
			Title:     stringField(obj["title"]),
			Summary:   stringField(obj["summary"]),
			EventType: stringField(obj["event_type"]),
			Places:    stringList(obj["places"]),
			Dates:     stringList(obj["dates"]),
			Keywords:  stringList(obj["keywords"]),
		}
		if len(f.Keywords) == 0 {
			f.Keywords = stringList(obj["keywords_array"])
		}
		if d := stringField(obj["description"]); d != "" {
			f.Description = &d
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func parseAnswer(text string) Answer {
	payload, err := decodeJSON(text)
	obj, ok := payload.(map[string]any)
	if err != nil || !ok {
		return Answer{Text: "I don't know."}
	}
	answer := Answer{Text: stringField(obj["answer_text"]), UsedIDs: stringList(obj["used_citation_ids"])}
	if answer.Text == "" {
		answer.Text = "I don't know."
	}
	return answer
}

func parseKeywordMatch(text string) KeywordMatch {
	out := KeywordMatch{Matches: []Match{}, Keywords: []string{}}
	payload, err := decodeJSON(text)
	obj, ok := payload.(map[string]any)
	if err != nil || !ok {
		return out
	}
	if kws, ok := obj["keywords"].([]any); ok {
		for _, kw := range kws {
			if s, ok := kw.(string); ok {
				out.Keywords = append(out.Keywords, s)
			}
		}
	}
	if matches, ok := obj["matches"].([]any); ok {
		for _, m := range matches {
			item, ok := m.(map[string]any)
			if !ok {
				continue
			}
			kw, _ := item["keyword"].(string)
			qk, _ := item["question_keyword"].(string)
			out.Matches = append(out.Matches, Match{Keyword: kw, Score: number(item["score"]), QuestionKeyword: qk})
		}
	}
	return out
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// stringList accepts a list or a lone string and keeps non-blank entries.
func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := stringField(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}

func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func snippet(s string) string {
	const limit = 500
	if len(s) > limit {
		return s[:limit]
	}
	return s
}
