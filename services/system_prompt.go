package services

import (
	"fmt"
	"strings"
)

// DontKnowAnswer is what the model is told to say when the context does not
// hold the answer, and what the service answers when nothing was retrieved.
const DontKnowAnswer = "I don't know based on the documentation."

const answerPromptTemplate = `You are an engineering documentation assistant.
Answer ONLY using the context below.
If the answer is not present, say "%s"

Context:
%s

Question:
%s

Answer:
`

const validationPromptTemplate = `You check answers produced by a documentation assistant.
Decide whether every claim in the answer is supported by the context.
Reply with exactly one line: VALID, or INVALID: followed by a short reason.

Context:
%s

Question:
%s

Answer:
%s
`

// BuildAnswerPrompt asks the model to answer question from context only.
func BuildAnswerPrompt(context, question string) string {
	return fmt.Sprintf(answerPromptTemplate, DontKnowAnswer, context, strings.TrimSpace(question))
}

// BuildValidationPrompt asks a second model call to judge whether answer is
// grounded in context.
func BuildValidationPrompt(question, answer, context string) string {
	return fmt.Sprintf(validationPromptTemplate, context, strings.TrimSpace(question), answer)
}
