package llm

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	codeFenceRe   = regexp.MustCompile("(?s)```python\\n(.*?)\\n```")
	depsLineRe    = regexp.MustCompile(`DEPENDENCIES:\s*(.+)`)
	explanationRe = regexp.MustCompile(`(?s)EXPLANATION:\s*(.+)`)
)

// ParseReply extracts the code block, dependency list, and explanation from a
// model reply following the format in prompts.go.
//
// A missing code block is an error: the caller has nothing to run. Missing
// DEPENDENCIES or EXPLANATION sections degrade gracefully since the engine
// derives dependencies from the source anyway.
func ParseReply(content string) (*GeneratedCode, error) {
	codeMatch := codeFenceRe.FindStringSubmatch(content)
	if codeMatch == nil {
		return nil, fmt.Errorf("reply contains no python code block")
	}
	code := codeMatch[1]
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("reply contains an empty python code block")
	}

	var deps []string
	if m := depsLineRe.FindStringSubmatch(content); m != nil {
		raw := strings.TrimSpace(m[1])
		if !strings.EqualFold(raw, "none") {
			for _, d := range strings.Split(raw, ",") {
				if d = strings.TrimSpace(d); d != "" {
					deps = append(deps, d)
				}
			}
		}
	}

	explanation := ""
	if m := explanationRe.FindStringSubmatch(content); m != nil {
		explanation = strings.TrimSpace(m[1])
	}

	return &GeneratedCode{
		Code:         code,
		Explanation:  explanation,
		Dependencies: deps,
	}, nil
}
