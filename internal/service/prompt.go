package service

import (
	"strings"

	"askrag/internal/llm"
)

// SystemPrompt instructs the model to stay within the retrieved context.
const SystemPrompt = "You are an intelligent assistant. Use the information provided in the context to answer the question. " +
	"If the answer cannot be determined from the context alone, say 'I don't know' instead of making up an answer."

// AssemblePrompt joins chunks with newlines in retrieval order and frames
// them with the question.
func AssemblePrompt(chunks []string, question string) llm.Prompt {
	context := strings.Join(chunks, "\n")
	return llm.Prompt{
		System:   SystemPrompt,
		User:     "Context: " + context + "\nQuestion: " + question + "\nAnswer:",
		Context:  chunks,
		Question: question,
	}
}
