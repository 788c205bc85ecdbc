package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReply_FullReply(t *testing.T) {
	content := "Here is the code:\n\n" +
		"```python\nimport requests\nprint(requests.get('https://example.com').status_code)\n```\n\n" +
		"DEPENDENCIES: requests\n\n" +
		"EXPLANATION: Fetches the page and prints the HTTP status."

	got, err := ParseReply(content)
	require.NoError(t, err)

	assert.Equal(t, "import requests\nprint(requests.get('https://example.com').status_code)", got.Code)
	assert.Equal(t, []string{"requests"}, got.Dependencies)
	assert.Equal(t, "Fetches the page and prints the HTTP status.", got.Explanation)
}

func TestParseReply_MultipleDependencies(t *testing.T) {
	content := "```python\nprint(1)\n```\n\nDEPENDENCIES: numpy, pandas ,matplotlib\n\nEXPLANATION: ok"

	got, err := ParseReply(content)
	require.NoError(t, err)
	assert.Equal(t, []string{"numpy", "pandas", "matplotlib"}, got.Dependencies)
}

func TestParseReply_NoneDependencies(t *testing.T) {
	content := "```python\nprint(1)\n```\n\nDEPENDENCIES: none\n\nEXPLANATION: prints one"

	got, err := ParseReply(content)
	require.NoError(t, err)
	assert.Empty(t, got.Dependencies)
}

func TestParseReply_MissingSectionsDegrade(t *testing.T) {
	content := "```python\nprint('bare')\n```"

	got, err := ParseReply(content)
	require.NoError(t, err)
	assert.Equal(t, "print('bare')", got.Code)
	assert.Empty(t, got.Dependencies)
	assert.Empty(t, got.Explanation)
}

func TestParseReply_NoCodeBlock(t *testing.T) {
	_, err := ParseReply("I cannot write that code, sorry.")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no python code block")
}

func TestParseReply_EmptyCodeBlock(t *testing.T) {
	_, err := ParseReply("```python\n   \n```\n\nDEPENDENCIES: none")
	require.Error(t, err)
}

func TestParseReply_FirstCodeBlockWins(t *testing.T) {
	content := "```python\nprint('first')\n```\n\nAlternative:\n```python\nprint('second')\n```"

	got, err := ParseReply(content)
	require.NoError(t, err)
	assert.Equal(t, "print('first')", got.Code)
}

// fakeClient records fix requests for the Repairer tests.
type fakeClient struct {
	fixes []FixRequest
	reply *GeneratedCode
	err   error
}

func (f *fakeClient) GenerateCode(_ context.Context, _ string) (*GeneratedCode, error) {
	return f.reply, f.err
}

func (f *fakeClient) FixCode(_ context.Context, req FixRequest) (*GeneratedCode, error) {
	f.fixes = append(f.fixes, req)
	return f.reply, f.err
}

func TestRepairer_CarriesRequestAndCountsAttempts(t *testing.T) {
	client := &fakeClient{reply: &GeneratedCode{Code: "print(2)", Explanation: "fixed"}}
	repairer := NewRepairer(client, "print a number")

	code, explanation, err := repairer.Fix(context.Background(), "print(x)", "NameError: x")
	require.NoError(t, err)
	assert.Equal(t, "print(2)", code)
	assert.Equal(t, "fixed", explanation)

	_, _, err = repairer.Fix(context.Background(), "print(2)", "still broken")
	require.NoError(t, err)

	require.Len(t, client.fixes, 2)
	assert.Equal(t, "print a number", client.fixes[0].Request)
	assert.Equal(t, 1, client.fixes[0].Attempt)
	assert.Equal(t, 2, client.fixes[1].Attempt)
	assert.Equal(t, "NameError: x", client.fixes[0].ErrorSummary)
}

func TestRepairer_PropagatesClientError(t *testing.T) {
	client := &fakeClient{err: errors.New("rate limited")}
	repairer := NewRepairer(client, "anything")

	_, _, err := repairer.Fix(context.Background(), "print(1)", "err")
	assert.ErrorIs(t, err, client.err)
}
