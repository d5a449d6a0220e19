package catalog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
)

const maxLineBytes = 16 * 1024 * 1024

// LoadFile reads a JSONL file into a catalog.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses JSONL, validates every line, and assigns stable ids.
// Blank lines are skipped. All invalid records are reported together.
func Load(r io.Reader) (*Catalog, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var raws []map[string]json.RawMessage
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(line, &fields); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", lineNum, err)
		}
		if fields == nil {
			return nil, fmt.Errorf("invalid JSON on line %d: expected an object", lineNum)
		}
		raws = append(raws, fields)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	if len(raws) == 0 {
		return nil, ErrEmptyCatalog
	}

	records := make([]Record, 0, len(raws))
	var invalid []RecordError
	for idx, fields := range raws {
		payload, reason := parsePayload(fields)
		if reason != "" {
			invalid = append(invalid, RecordError{Index: idx, Reason: reason})
			continue
		}
		id, err := recordID(fields, idx)
		if err != nil {
			return nil, err
		}
		records = append(records, Record{ID: id, Payload: payload, Fields: fields})
	}
	if len(invalid) > 0 {
		return nil, &ValidationError{Records: invalid}
	}

	return New(records)
}

func parsePayload(fields map[string]json.RawMessage) (Payload, string) {
	if raw, ok := fields["conversations"]; ok {
		return parseConversation(raw)
	}

	for _, name := range []string{"id", "source_text", "pidgin_translation"} {
		if _, ok := fields[name]; !ok {
			return nil, "record must have either 'conversations' field or 'id', 'source_text', 'pidgin_translation' fields"
		}
	}
	var legacy Legacy
	if err := json.Unmarshal(fields["source_text"], &legacy.Source); err != nil {
		return nil, "source_text must be a string"
	}
	if err := json.Unmarshal(fields["pidgin_translation"], &legacy.Translation); err != nil {
		return nil, "pidgin_translation must be a string"
	}
	return legacy, ""
}

func parseConversation(raw json.RawMessage) (Payload, string) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, "conversations must be a list"
	}
	if len(items) == 0 {
		return nil, "conversations list cannot be empty"
	}

	turns := make([]Turn, 0, len(items))
	for i, item := range items {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			return nil, fmt.Sprintf("conversation %d must be a dictionary", i)
		}
		rawRole, hasRole := obj["role"]
		rawContent, hasContent := obj["content"]
		if !hasRole || !hasContent {
			return nil, fmt.Sprintf("conversation %d must have 'role' and 'content' fields", i)
		}
		var turn Turn
		if err := json.Unmarshal(rawRole, &turn.Role); err != nil ||
			(turn.Role != RoleUser && turn.Role != RoleAssistant) {
			return nil, fmt.Sprintf("conversation %d role must be 'user' or 'assistant'", i)
		}
		if err := json.Unmarshal(rawContent, &turn.Content); err != nil {
			return nil, fmt.Sprintf("conversation %d content must be a string", i)
		}
		turns = append(turns, turn)
	}
	return Conversation{Turns: turns}, ""
}

// recordID keeps an existing id, otherwise derives one from the record's
// canonical JSON so reloading the same file yields the same id.
func recordID(fields map[string]json.RawMessage, index int) (string, error) {
	if raw, ok := fields["id"]; ok && string(raw) != "null" {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, nil
		}
		return strings.TrimSpace(string(raw)), nil
	}

	canonical, err := canonicalJSON(fields)
	if err != nil {
		return "", fmt.Errorf("hashing record %d: %w", index, err)
	}
	sum := fmt.Sprintf("%016x", xxh3.Hash(canonical))
	return fmt.Sprintf("record_%d_%s", index, sum[:12]), nil
}

// canonicalJSON re-encodes through generic values so object keys come out sorted.
func canonicalJSON(fields map[string]json.RawMessage) ([]byte, error) {
	generic := make(map[string]any, len(fields))
	for k, v := range fields {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return nil, err
		}
		generic[k] = val
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}
