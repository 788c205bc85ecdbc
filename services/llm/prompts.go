package llm

import "fmt"

// Reply contract shared by both prompts. The parser in parser.go is the only
// consumer; changing the markers here requires changing it too.
const replyFormat = "```python\n" +
	"# python code here\n" +
	"```\n\n" +
	"DEPENDENCIES: package1,package2,package3 (write \"DEPENDENCIES: none\" if no extra packages are needed)\n\n" +
	"EXPLANATION: a brief description of what the code does and how"

func generatePrompt(request string) string {
	return fmt.Sprintf(`You are a Python code generation assistant. The user states a task and you produce the Python code for it.

Requirements:
1. The code must be complete and directly executable
2. Add comments where they help
3. If third-party libraries are needed, import them normally
4. Include appropriate error handling

User request: %s

Reply in exactly this format:

%s`, request, replyFormat)
}

func fixPrompt(req FixRequest) string {
	return fmt.Sprintf(`You are a Python code repair assistant. You previously generated code for a user request, but it failed when executed. Analyze the error and fix the code.

Original user request: %s

Previously generated code:
`+"```python\n%s\n```"+`

Error from execution:
%s

Repair requirements:
1. Read the error carefully and find the root cause
2. Produce the complete fixed code, not a diff
3. Add better error handling where it was missing
4. If a third-party library is the problem, consider an alternative or a newer API
5. Make sure the code runs

This is repair attempt %d.

Reply in exactly this format:

%s`, req.Request, req.Source, req.ErrorSummary, req.Attempt, replyFormat)
}
