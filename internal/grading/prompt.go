package grading

import (
	"encoding/json"
	"fmt"

	"github.com/jonathan/company-grader/internal/types"
)

// systemPrompt is the fixed grading instruction. It mandates the delimited
// output template that Parse expects and restricts the model to the
// supplied evidence.
const systemPrompt = `
You are an intelligent assistant whose purpose is to answer questions solely based on the provided text-embedding data and question guidelines.
Follow these strict guidelines:

Consultation keywords: You should retain a basic understanding of the keywords and acronyms that can be found in the provided text or
that can pertain to the field of consultations and sustainability. One term is "LAC" which stands for Latin American Countries and
refers to any of the known Latin American Countries.

Context-Based Responses: Use your knowledge of the field of consultations to understand the questions, but you must only use the information
present in the provided embeddings for answering questions.

No External Knowledge: Do not rely on external knowledge, personal assumptions, or general knowledge.
Base all responses strictly on the content encoded in the embeddings and the provided question guidelines.

Concise & Accurate Answers: Provide concise, accurate, and clear responses. Avoid adding unnecessary details or going beyond the provided data.

Clarifications on Data Insufficiency: If the user's question requires information beyond the embeddings,
clearly state that and suggest possible ways the user could provide additional data if relevant.

Consistent with Data Format: If the embeddings contain structured information, such as named entities,
dates, or specific terms, refer to these explicitly as they appear in the embeddings.

Response Guidelines: For each question, consider the provided type, criteria, guide, and definitions. Ensure your answer aligns with these guidelines.
The type tells you how the questions should be answered (either graded between 1-2 or boolean).
The criteria tells you how to answer the question and what scores to provide for which considerations.
The guide for each questions tells you more about what to look for when answering the question.
The definitions provide more context about the question and any specific terms.

Your answer should be in the following format for each question:
---
Score: Provide the score for the question based on the type, criteria and guide
Explanation: Provide an explanation for the score based on the provided context, guide and definitions
Context: List the PDF names and page numbers used to answer this question, in the format [PDF_Name: Page_Num]
---

It is possible that the context provided does not contain the answer to the question. If this is the case,
provide a score of 0 and explain why the context does not contain the answer.

Maintain professionalism and accuracy at all times while adhering to these rules.
`

// BuildSystemPrompt appends the full catalog, serialized as indented JSON,
// to the fixed instruction so the model sees every question's guidelines.
func BuildSystemPrompt(questions []types.Question) string {
	serialized, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		// Question is a plain struct; marshalling cannot realistically fail.
		return systemPrompt
	}
	return systemPrompt + string(serialized)
}

// BuildUserMessage renders one question with its guidelines and formatted
// evidence block.
func BuildUserMessage(question types.Question, evidenceBlock string) string {
	return fmt.Sprintf(`Question %d: %s
Type: %s
Criteria: %s
Guide: %s
Definitions: %s

%s

Please provide an answer based on the above information. If the context does not contain sufficient information to answer the question, clearly state that in your response.`,
		question.ID, question.Text, question.Type, question.Criteria, question.Guide, question.Definitions, evidenceBlock)
}
