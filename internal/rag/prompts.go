package rag

import "fmt"

const qaTemplate = `You are an assistant answering questions about a single uploaded document.

Guidelines:
1. Answer using only the context below. Do not rely on outside knowledge.
2. If the context does not hold enough information, say so plainly.
3. When the question asks for a particular format (JSON, a list, a quiz), follow it exactly.
   When JSON is requested, reply with the JSON alone, without markdown fences or extra prose.
4. Otherwise reply in clear Markdown.

Context:
%s

Question: %s

Answer: `

const quizTemplate = `You write objective multiple-choice exam questions. The document context below is the only
source of truth.

Rules:
- Test understanding of concepts rather than recall of specific examples.
- Do not copy examples or sentences from the document; generalize them.
- Every question has exactly 4 options, all plausible, and exactly one correct.
- "answer" is the zero-based index of the correct option; options[answer] must be the correct text.
- The "explanation" must name the correct option by repeating its text after "CORRECT OPTION:".
- No "All of the above", "None of the above" or "Both A and B" options.
- Do not test the same concept twice.
- Use only the document context. Output JSON only, with no headings or commentary.

Request:
%s

Output a JSON array in exactly this shape:
[
  {
    "question": "A concept-focused question",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "answer": 0,
    "explanation": "CORRECT OPTION: <option text>. One sentence on why it is correct."
  }
]

Context:
%s
`

// QAPrompt builds the grounded question-answering prompt.
func QAPrompt(context, question string) string {
	return fmt.Sprintf(qaTemplate, context, question)
}

// QuizPrompt builds the quiz generation prompt for request.
func QuizPrompt(context, request string) string {
	return fmt.Sprintf(quizTemplate, request, context)
}
