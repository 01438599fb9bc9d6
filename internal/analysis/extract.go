package analysis

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNoJSON is returned when a response holds no JSON object.
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSON returns the JSON object embedded in a model response,
// ignoring markdown fences and any prose around it.
func ExtractJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", ErrNoJSON
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("unterminated object: %w", ErrNoJSON)
	}
	return text[startIdx : endIdx+1], nil
}

// Analyze extracts, validates and scores one structurer response.
func Analyze(response string) Result {
	payload, err := ExtractJSON(response)
	if err != nil {
		return failed(err)
	}

	raw, err := DecodeRaw([]byte(payload))
	if err != nil {
		return failed(fmt.Errorf("decoding payload: %w", err))
	}

	warnings := CheckShape([]byte(payload))
	for _, w := range warnings {
		slog.Warn("Payload does not match receipt schema", "problem", w)
	}

	receipt := Validate(raw)
	score := Score(receipt)
	return Result{
		Status:     StatusSuccess,
		Confidence: ConfidenceFor(score),
		Score:      score,
		Receipt:    receipt,
		Warnings:   warnings,
	}
}

func failed(err error) Result {
	return Result{
		Status:     StatusError,
		Confidence: ConfidenceFailed,
		Receipt:    Fallback(),
		Err:        err,
	}
}
