package extraction

import (
	"fmt"
	"strings"

	"github.com/KhushM7/UncTube/internal/media"
)

const answerSystemPrompt = `You are a grounded, immersive narrator. Answer using ONLY the provided context pack.
- If the answer is not contained in the context, say "I don't know."
- If the context is related to the topic but does NOT answer the exact question, say: "I can't remember the answer to your exact question, but I do remember [something else relevant to the topic...]" and then include the relevant detail from the context.
- Do not invent facts or add details that are not present.
- Write in the first person, with a warm, descriptive, sensory tone while staying faithful to the facts.
- Keep it concise (2-4 sentences).
- Return JSON only with keys: answer_text, used_citation_ids.
`

const answerUserPrompt = `Question: %s

Context pack (JSON):
%s

Write a vivid, scene-like response grounded in the context pack.
Return a JSON object with:
- answer_text: string
- used_citation_ids: array of memory_unit_id values you relied on (empty when you answered "I don't know.")
`

const keywordMatchSystemPrompt = "You are a retrieval assistant. Match user questions to existing keywords. Return JSON only."

const keywordMatchUserPrompt = `Question: %s

Existing keywords (JSON array):
%s

Task:
1) Infer up to %d short keywords/phrases from the question (lowercase, 1-3 words).
2) For each existing keyword, compare it to the inferred question keywords and rate their relatedness on a 1-10 scale:
   - 1 = no relation
   - 10 = synonyms / same concept
3) Select matches where relatedness is 8 or higher.

Rules:
- Output keywords MUST be items from the existing list.
- Do NOT return broad or loosely related terms.
- Return JSON only with:
  - matches: array of objects {"keyword": "<existing keyword>", "score": <1-10>, "question_keyword": "<best-matching question keyword>"}
  - keywords: array of matched existing keywords (score >= 8)
Example: {"matches":[{"keyword":"wedding","score":9,"question_keyword":"love"}],"keywords":["wedding"]}
`

const extractionSystemPrompt = "You are a careful data extraction system. " +
	"Only use facts visible or clearly stated in the provided content. " +
	"Do not infer details that are not present. " +
	"Return only JSON with no extra text."

const transcriptPrompt = "Generate a verbatim transcript of the provided media. Return plain text only."

func extractionPrompt(modality media.Modality) string {
	var b strings.Builder
	b.WriteString("Extract grounded memory units for the database.\n")
	fmt.Fprintf(&b, "Modality: %s.\n", modality)
	b.WriteString("Rules:\n")
	b.WriteString("- No invented facts. Only use what is present or strongly implied.\n")
	if modality == media.ModalityImage {
		b.WriteString("- Return exactly 1 memory_unit.\n")
	}
	b.WriteString("- places and dates must be non-empty arrays; use 'unknown' or 'unspecified' if missing.\n")
	b.WriteString("- event_type must be one of: " + strings.Join(EventTypes, ", ") + ".\n")
	b.WriteString("- Add useful keywords/tags for retrieval (short phrases). Use keywords.\n")
	b.WriteString("Return JSON ONLY:\n")
	b.WriteString(`{"memory_units":[{"title":"","summary":"","description":null,"event_type":"Other","places":[""],"dates":[""],"keywords":[]}]}`)
	return b.String()
}

func maxTokensForExtraction(modality media.Modality) int {
	switch modality {
	case media.ModalityImage:
		return 768
	case media.ModalityText:
		return 1536
	case media.ModalityAudio, media.ModalityVideo:
		return 3072
	default:
		return 1024
	}
}

func maxTokensForTranscript(modality media.Modality) int {
	if modality == media.ModalityAudio || modality == media.ModalityVideo {
		return 8192
	}
	return 4096
}
