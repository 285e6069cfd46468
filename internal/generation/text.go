package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkBlock = regexp.MustCompile(`(?s)<think(?:ing)?>(.*?)</think(?:ing)?>`)

// SplitThinking separates <think>...</think> blocks, as emitted inline by
// reasoning models such as DeepSeek-R1 and Qwen3, from the answer. An
// unterminated leading block is treated as reasoning that ran to the end.
func SplitThinking(text string) (answer, cot string) {
	var thoughts []string
	answer = thinkBlock.ReplaceAllStringFunc(text, func(block string) string {
		m := thinkBlock.FindStringSubmatch(block)
		if t := strings.TrimSpace(m[1]); t != "" {
			thoughts = append(thoughts, t)
		}
		return ""
	})

	trimmed := strings.TrimSpace(answer)
	for _, open := range []string{"<think>", "<thinking>"} {
		if strings.HasPrefix(trimmed, open) {
			if t := strings.TrimSpace(strings.TrimPrefix(trimmed, open)); t != "" {
				thoughts = append(thoughts, t)
			}
			trimmed = ""
			break
		}
	}

	return trimmed, strings.Join(thoughts, "\n\n")
}

var codeFence = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// ExtractJSON returns the JSON document embedded in a model answer: the
// content of the first fenced code block if there is one, otherwise the
// span from the first '{' or '[' to the matching last '}' or ']'.
func ExtractJSON(text string) (string, error) {
	answer, _ := SplitThinking(text)
	if m := codeFence.FindStringSubmatch(answer); m != nil {
		answer = m[1]
	}
	answer = strings.TrimSpace(answer)

	start := strings.IndexAny(answer, "{[")
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON found in answer", ErrInvalidResponse)
	}
	closer := byte('}')
	if answer[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(answer, closer)
	if end < start {
		return "", fmt.Errorf("%w: unterminated JSON in answer", ErrInvalidResponse)
	}

	doc := answer[start : end+1]
	if !json.Valid([]byte(doc)) {
		return "", fmt.Errorf("%w: answer is not valid JSON", ErrInvalidResponse)
	}
	return doc, nil
}

// DecodeJSON extracts the JSON document from a model answer into a T.
func DecodeJSON[T any](text string) (T, error) {
	var v T
	doc, err := ExtractJSON(text)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return v, nil
}
