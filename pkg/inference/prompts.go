package inference

import "fmt"

// PromptTemplate is a three-part conversation seed: a system instruction,
// a user turn built from the input, and an assistant turn that primes the
// shape of the reply.
type PromptTemplate struct {
	System    string
	User      string
	Assistant string
}

// Render fills the user template with the given input and returns the
// message list for a completion request.
func (p PromptTemplate) Render(input string) []Message {
	msgs := []Message{
		SystemMessage(p.System),
		UserMessage(fmt.Sprintf(p.User, input)),
	}
	if p.Assistant != "" {
		msgs = append(msgs, AssistantMessage(p.Assistant))
	}
	return msgs
}

// ErrorSummarizationPrompt asks the model to pick the most critical failures
// out of a pre-extracted error list and answer in plain text.
var ErrorSummarizationPrompt = PromptTemplate{
	System: "You are an AI assistant specializing in analyzing logs to detect failures.",
	User: "I have scanned log files and found potential error logs. Here is the list:\n\n%s\n\n" +
		"Analyze these errors further and return the most critical errors or failures.\n" +
		"Your response should be in plain text.",
	Assistant: "Sure! Here are the most relevant logs:",
}

// ErrorFilterPrompt asks the model to narrow an error list down to the five
// most critical entries, returned as a bare JSON list so the reply can be
// parsed mechanically.
var ErrorFilterPrompt = PromptTemplate{
	System: "You are an AI assistant specializing in analyzing logs to detect failures.",
	User: "I have scanned log files and found potential error logs. Here is the list:\n\n%s\n\n" +
		"Analyze these errors and return only the **top 5 most critical errors** based on severity, frequency, and impact. " +
		"Ensure that your response contains a **diverse set of failures** rather than redundant occurrences of the same error.\n" +
		"Respond **only** with a valid JSON list containing exactly 5 error messages, without any additional explanation.\n" +
		"Example response format:\n" +
		`["Error 1 description", "Error 2 description", "Error 3 description", "Error 4 description", "Error 5 description"]`,
	Assistant: "[]",
}

// GenericAppPrompt asks for a structured root-cause breakdown of an
// application failure summary.
var GenericAppPrompt = PromptTemplate{
	System: "You are an expert in diagnosing and troubleshooting application failures, logs, and errors. " +
		"Your task is to analyze log summaries from various applications, identify the root cause, " +
		"and suggest relevant fixes based on best practices. " +
		"Focus on application-specific failures rather than infrastructure or environment issues.",
	User: "Here is a log summary from an application failure:\n\n%s\n\n" +
		"Based on this summary, provide a structured breakdown of:\n" +
		"- The failing component or service\n" +
		"- The probable root cause of the failure\n" +
		"- Steps to reproduce or verify the issue\n" +
		"- Suggested resolution, including configuration changes, code fixes, or best practices.",
	Assistant: "**Failing Component:** <Identified service or component>\n\n" +
		"**Probable Root Cause:** <Describe why the failure occurred>\n\n" +
		"**Verification Steps:**\n" +
		"- <Step 1>\n" +
		"- <Step 2>\n" +
		"- <Step 3>\n\n" +
		"**Suggested Resolution:**\n" +
		"- <Code fixes or configuration updates>\n" +
		"- <Relevant logs, metrics, or monitoring tools>",
}
