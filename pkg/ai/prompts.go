package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxExtractionContent caps how much converted text is sent in one
// extraction call; anything beyond it is cut off.
const maxExtractionContent = 50000

const extractionRules = `Extract ONLY:
1. Individual words (nouns, verbs, adjectives, adverbs) - extract each unique word
2. Common/important idioms (e.g., "break the ice", "hit the nail on the head") - NOT regular phrases
3. Phrasal verbs (e.g., "give up", "look after", "turn down") - verbs with prepositions that have special meaning
4. The base form of each verb: "swimming", "swam" and "swum" all become "swim"

DO NOT extract:
- Regular phrases that are not idioms or phrasal verbs
- Simple word combinations that don't have special meaning

IMPORTANT:
- Return ONLY plain text, nothing else
- No explanations, no markdown formatting, no code blocks
- One word, idiom, or phrasal verb per line`

// ExtractionPrompt builds the system and user messages for the one-shot
// vocabulary extraction call. Document-like sources (pdf, webpages,
// youtube transcripts) get an extra cleaning step; subtitle and plain
// text sources are extracted as-is.
func ExtractionPrompt(sourceType, content string) (system, user string) {
	if len(content) > maxExtractionContent {
		content = content[:maxExtractionContent]
	}

	switch sourceType {
	case "srt", "txt":
		system = "You are a vocabulary extraction tool. Return ONLY plain text, one word, idiom, or phrasal verb per line. No explanations."
		user = fmt.Sprintf("Extract vocabulary from the following text.\n\n%s\n\nText to extract from:\n%s", extractionRules, content)
	default:
		system = "You are a content cleaning and vocabulary extraction tool. First remove boilerplate (table of contents, page numbers, headers, footers, navigation, ads), then extract vocabulary from the remaining content. Return ONLY plain text, one item per line."
		user = fmt.Sprintf(`This content was converted from a document or web page. Your task has two steps:

STEP 1: Clean the content
- Remove table of contents, index, ISBN numbers, page numbers, headers, footers
- Remove navigation elements, links, advertisement text
- Keep only the main readable content

STEP 2: Extract vocabulary from the cleaned content
%s

Content:
%s`, extractionRules, content)
	}
	return system, user
}

// SourceInfoPrompt asks for a short deck title and description for a new
// source, given a content preview and optional page title / URL hints.
// The response is expected to be a JSON object with "title" and
// "description" fields.
func SourceInfoPrompt(sourceName, sourceType, contentPreview, url, pageTitle string) (system, user string) {
	system = `You name study decks. Return ONLY a JSON object {"title": "...", "description": "..."}. The title is short (under 60 characters); the description is one sentence about the content.`

	var b strings.Builder
	fmt.Fprintf(&b, "Generate a deck title and description for this learning source.\n\n")
	fmt.Fprintf(&b, "Source file/URL name: %s\nSource type: %s\n", sourceName, sourceType)
	if pageTitle != "" {
		fmt.Fprintf(&b, "Page/video title: %s\n", pageTitle)
	}
	if url != "" {
		fmt.Fprintf(&b, "URL: %s\n", url)
	}
	if contentPreview != "" {
		fmt.Fprintf(&b, "\nContent preview:\n%s\n", contentPreview)
	}
	b.WriteString("\nReturn only the JSON object, no explanations.")
	return system, b.String()
}

// WordExample is a fully-filled corpus row shown to the model as a
// format reference in column-fill prompts.
type WordExample struct {
	EnglishWord       string `json:"englishWord"`
	WordType          string `json:"wordType"`
	Translation       string `json:"translation"`
	Level             string `json:"level"`
	ExampleEn         string `json:"exampleEn"`
	ExampleTranslated string `json:"exampleTranslated"`
}

// FillColumnsPrompt builds the enrichment call for one batch of
// headwords. targetLanguage is the learner's native language for the
// translation columns.
func FillColumnsPrompt(words []string, examples []WordExample, targetLanguage string) (system, user string) {
	if targetLanguage == "" {
		targetLanguage = "Turkish"
	}
	system = "You are a database filling tool. Return only JSON arrays, no explanations. Always return a complete, valid JSON array ending with ]."

	var b strings.Builder
	fmt.Fprintf(&b, "Fill in the database columns for these English words. The translation columns are in %s.\n\n", targetLanguage)
	if len(examples) > 0 {
		exampleJSON, _ := json.MarshalIndent(examples, "", "  ")
		fmt.Fprintf(&b, "Example database records:\n%s\n\n", exampleJSON)
	}
	b.WriteString("Words to process:\n")
	for i, w := range words {
		fmt.Fprintf(&b, "%d. %s\n", i+1, w)
	}
	fmt.Fprintf(&b, `
Return ONLY a JSON array of objects with these fields:
- englishWord (string, exactly as listed above)
- wordType (string, e.g. "Noun", "Verb", "Adjective", "Phrase", "Idiom", "Phrasal Verb")
- translation (string, the %s meaning)
- level (string, one of: "A1", "A2", "B1", "B2", "C1", "C2")
- exampleEn (string, example sentence in English)
- exampleTranslated (string, the same sentence in %s)

Return only the JSON array, no explanations.`, targetLanguage, targetLanguage)
	return system, b.String()
}
