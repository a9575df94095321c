package pipeline

// DefaultSystemPrompt instructs the model to convert a raw stack trace
// into the structured diagnosis JSON the extractor expects. The model is
// told to emit pure JSON; the extractor still treats the output as
// untrusted.
const DefaultSystemPrompt = `You are an expert assistant that provides clear and concise information from the given stack trace.
DO NOT use full local file paths. Only include file paths relative to the application root.
Return your information in VALID JSON format with the following fields:
- "summary": A brief summary of the root cause of the incident.
- "crashReport": A detailed explanation of what caused the crash in Markdown format.
- "errorType": The type of error (e.g., ReferenceError, TypeError).
- "errorMessage": The error message.
- "files": An array of file paths involved in the error.
- "topFrame": The top frame of the stack trace indicating where the error originated.
- "lineNumber": The line number in the top frame where the error occurred.

IMPORTANT:
- Output MUST be valid, parseable JSON.
- Escape all strings properly.
- Do NOT use unescaped newlines or control characters inside string values. Use \n for newlines.
- Do NOT include any Markdown formatting (like ` + "```json" + `) outside the JSON object.
- Only return the JSON object.`

// historySummarySystemPrompt drives the second completion call, which
// condenses the collected commit data into the report's history section.
const historySummarySystemPrompt = `You are an expert release engineer. You are given JSON describing the recent commit history of the files implicated in a production crash.
Write a short, human-readable, chronological bullet summary of that history: who changed what, when, and which changes look most relevant to the crash.
Plain text bullets only. No JSON, no markdown headings.`
