package openai

import "fmt"

const chunkResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "chunks": {
      "type": "array",
      "items": {
        "type": "string",
        "minLength": 1
      }
    }
  },
  "required": ["chunks"],
  "additionalProperties": false
}`

const chunkPromptTemplate = `Split the given document into cohesive, self-contained chunks and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Each chunk must be a self-contained unit of meaning: a reader should understand it without the surrounding text.
- Each chunk must be at most %d characters long.
- Preserve the original text verbatim. Do not paraphrase, summarize, reorder, or omit anything.
- Split at natural boundaries: headings, paragraphs, list items, table rows.
- Before returning, verify that concatenating all chunks reproduces the complete input.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

const questionResponseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "string",
        "minLength": 1
      }
    }
  },
  "required": ["questions"],
  "additionalProperties": false
}`

const questionPromptTemplate = `Generate search questions that the given content fragment answers, and return them as JSON.

Output ONLY valid JSON which complies with the schema given below. Do not include any preamble, explanation,
greeting, or acknowledgment. Start your response directly with the opening brace { and end with the closing
brace }. Your output must exactly follow this schema:

%s

Rules:
- Generate up to %d questions a user might type into a search box to find this fragment.
- Mix question types: factual (what/when/who), conceptual (why/what is), procedural (how do I), and comparative (what is the difference).
- Every question must be answerable from the fragment alone.
- Phrase questions the way a real user would, including short informal phrasings.
- If surrounding document context is provided, you may use it to disambiguate terms, but the answer must still be in the fragment.
- The JSON must parse without errors; no trailing commas, no extra keys, and no extraneous text outside the object.`

// buildChunkPrompt creates the chunk-splitting system prompt with the
// character budget embedded.
func buildChunkPrompt(maxChunkChars int) string {
	return fmt.Sprintf(chunkPromptTemplate, chunkResponseSchema, maxChunkChars)
}

// buildQuestionPrompt creates the question-generation system prompt with
// the question count embedded.
func buildQuestionPrompt(count int) string {
	return fmt.Sprintf(questionPromptTemplate, questionResponseSchema, count)
}
