package extraction

import "strings"

// EventTypes is the closed vocabulary for MemoryUnit.event_type.
var EventTypes = []string{
	"BirthChildhood",
	"School",
	"Graduation",
	"Career",
	"MovingMigration",
	"Relationship",
	"Marriage",
	"ChildrenFamily",
	"Travel",
	"TraditionHoliday",
	"AdviceValues",
	"FunnyAnecdote",
	"LossGrief",
	"Health",
	"HistoricalWitness",
	"HobbyPassion",
	"Other",
}

const (
	defaultTitle     = "Untitled"
	defaultEventType = "Other"
	unknownPlace     = "unknown"
	unspecifiedDate  = "unspecified"
)

func IsEventType(v string) bool {
	for _, et := range EventTypes {
		if et == v {
			return true
		}
	}
	return false
}

// Normalize fills defaults so every fact is persistable: a title, a known event type
// and non-empty places and dates. Blank list entries are dropped.
func Normalize(facts []Fact) []Fact {
	out := make([]Fact, 0, len(facts))
	for _, f := range facts {
		n := Fact{
			Title:     strings.TrimSpace(f.Title),
			Summary:   strings.TrimSpace(f.Summary),
			EventType: strings.TrimSpace(f.EventType),
			Places:    nonBlank(f.Places),
			Dates:     nonBlank(f.Dates),
			Keywords:  nonBlank(f.Keywords),
		}
		if n.Title == "" {
			n.Title = defaultTitle
		}
		if !IsEventType(n.EventType) {
			n.EventType = defaultEventType
		}
		if len(n.Places) == 0 {
			n.Places = []string{unknownPlace}
		}
		if len(n.Dates) == 0 {
			n.Dates = []string{unspecifiedDate}
		}
		if f.Description != nil {
			if d := strings.TrimSpace(*f.Description); d != "" {
				n.Description = &d
			}
		}
		out = append(out, n)
	}
	return out
}

func nonBlank(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
