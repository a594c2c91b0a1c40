package utils

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
)

// StripCodeFence removes a surrounding markdown code fence from an LLM response.
// Models in JSON mode still occasionally wrap output in ```json blocks.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// RepairJSON attempts to fix common JSON errors from LLM outputs.
// Uses github.com/RealAlexandreAI/json-repair for intelligent repair.
// Supported repairs:
// - Missing quotes around keys
// - Single quotes instead of double quotes
// - Unclosed arrays/objects
// - TRUE/FALSE/Null instead of true/false/null
// - Trailing commas
// - Comments in JSON
// - Leading/trailing whitespace and markdown code blocks
func RepairJSON(malformedJSON string) (string, error) {
	repaired, err := jsonrepair.RepairJSON(malformedJSON)
	if err != nil {
		return "", fmt.Errorf("JSON_REPAIR_FAILED: %v", err)
	}
	return repaired, nil
}

// ParseHJSON parses Human-friendly JSON (Hjson) and returns standard JSON.
// Hjson tolerates comments, unquoted keys and missing commas, which makes it
// the most lenient fallback for model output.
func ParseHJSON(hjsonData string) (string, error) {
	var result interface{}
	err := hjson.Unmarshal([]byte(hjsonData), &result)
	if err != nil {
		return "", fmt.Errorf("HJSON_PARSE_ERROR: %v", err)
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("JSON_MARSHAL_ERROR: %v", err)
	}

	return string(jsonBytes), nil
}

// SmartParse tries multiple parsing strategies to extract valid JSON into schema.
// Order of attempts:
// 1. Standard JSON parse
// 2. JSON repair
// 3. Hjson parse (most lenient)
func SmartParse(input string, schema interface{}) (string, error) {
	input = StripCodeFence(input)

	// Try 1: Standard JSON
	if err := json.Unmarshal([]byte(input), schema); err == nil {
		return input, nil
	}

	// Try 2: JSON Repair
	repaired, err := RepairJSON(input)
	if err == nil {
		if err := json.Unmarshal([]byte(repaired), schema); err == nil {
			return repaired, nil
		}
	}

	// Try 3: Hjson (most lenient)
	hjsonResult, err := ParseHJSON(input)
	if err == nil {
		if err := json.Unmarshal([]byte(hjsonResult), schema); err == nil {
			return hjsonResult, nil
		}
	}

	return "", fmt.Errorf("SMART_PARSE_FAILED: all parsing strategies failed for input")
}
