package llm

import (
	"os"
	"strings"
)

const DefaultSystemInstruction = "You are a helpful AI assistant."

// LoadSystemInstruction reads the personality file. Any failure, including an
// empty file, yields DefaultSystemInstruction together with the cause.
func LoadSystemInstruction(path string) (string, error) {
	if path == "" {
		return DefaultSystemInstruction, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSystemInstruction, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return DefaultSystemInstruction, nil
	}
	return string(data), nil
}
