// Package extract recovers a JSON object from free-form model output.
//
// Judges are asked for JSON but routinely answer with markdown fences,
// leading prose, trailing commentary, or truncated objects. Extract tries a
// fixed chain of strategies and always returns a mapping: when nothing can
// be decoded the mapping carries the (truncated) input under "content" and
// a description under "error".
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Strategy names the step of the chain that produced a Result.
type Strategy string

// Extraction strategies in the order they are attempted.
const (
	StrategyTypeGuard Strategy = "type_guard"
	StrategyEmpty     Strategy = "empty"
	StrategyStrict    Strategy = "strict"
	StrategyPartial   Strategy = "partial"
	StrategyBraceScan Strategy = "brace_scan"
	StrategyFallback  Strategy = "fallback"
)

// Keys used in diagnostic mappings.
const (
	KeyContent = "content"
	KeyError   = "error"
)

// SnippetLength is the maximum number of characters of the input kept in a
// diagnostic mapping.
const SnippetLength = 200

var (
	// ErrNotText is reported when the input is not a string.
	ErrNotText = errors.New("input is not text")

	// ErrEmptyInput is reported for empty or whitespace-only input.
	ErrEmptyInput = errors.New("empty response")

	// ErrNoObject is reported when no strategy could decode an object.
	ErrNoObject = errors.New("failed to parse JSON after multiple strategies")
)

// fencePattern matches a markdown code fence with an optional language tag.
var fencePattern = regexp.MustCompile("(?i)```(?:json\\b|[a-z0-9_+.-]+[ \\t]*\\r?\\n)?\\s*([\\s\\S]*?)```")

// Result is the outcome of an extraction.
type Result struct {
	// Value is never nil.
	Value map[string]any

	// Strategy is the step that produced Value.
	Strategy Strategy

	// Err is non-nil when Value is a diagnostic mapping.
	Err error
}

// OK reports whether a JSON value was actually decoded.
func (r Result) OK() bool { return r.Err == nil }

// Extractor runs the strategy chain. The zero value is not usable; build
// one with New.
type Extractor struct {
	logger *zap.Logger
}

// New returns an Extractor that reports strategy fallbacks to logger.
// A nil logger disables logging.
func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

var defaultExtractor = New(nil)

// Extract runs the strategy chain on text with a silent Extractor.
func Extract(text string) Result { return defaultExtractor.Extract(text) }

// ExtractValue runs the strategy chain on an arbitrary value with a silent
// Extractor.
func ExtractValue(v any) Result { return defaultExtractor.ExtractValue(v) }

// ExtractValue accepts any value. Strings and byte slices go through the
// full chain; everything else yields a diagnostic mapping.
func (e *Extractor) ExtractValue(v any) Result {
	switch t := v.(type) {
	case string:
		return e.Extract(t)
	case []byte:
		return e.Extract(string(t))
	case json.RawMessage:
		return e.Extract(string(t))
	}

	err := fmt.Errorf("%w: got %T", ErrNotText, v)
	e.logger.Error("expected text for extraction", zap.String("type", fmt.Sprintf("%T", v)))
	return Result{
		Value:    diagnostic(fmt.Sprint(v), err),
		Strategy: StrategyTypeGuard,
		Err:      err,
	}
}

// Extract returns the first JSON object found in text. It never panics.
func (e *Extractor) Extract(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("extraction panicked: %v", r)
			e.logger.Error("extraction panicked", zap.Any("panic", r))
			res = Result{Value: diagnostic(text, err), Strategy: StrategyFallback, Err: err}
		}
	}()

	if strings.TrimSpace(text) == "" {
		e.logger.Warn("received empty response")
		return Result{
			Value:    map[string]any{KeyContent: "", KeyError: ErrEmptyInput.Error()},
			Strategy: StrategyEmpty,
			Err:      ErrEmptyInput,
		}
	}

	cleaned := StripFences(text)
	if strings.TrimSpace(cleaned) != strings.TrimSpace(text) {
		e.logger.Debug("stripped markdown code fences before decoding")
	}

	if v, ok := decodeStrict(cleaned); ok {
		return Result{Value: v, Strategy: StrategyStrict}
	}

	if v, ok := decodePartial(cleaned); ok {
		e.logger.Debug("decoded leading JSON value, ignoring trailing text")
		return Result{Value: wrap(v), Strategy: StrategyPartial}
	}

	if v, ok := scanObjects(cleaned); ok {
		e.logger.Debug("decoded JSON object embedded in text")
		return Result{Value: v, Strategy: StrategyBraceScan}
	}

	e.logger.Warn("failed to decode JSON from response",
		zap.String("snippet", Truncate(cleaned, SnippetLength)),
	)
	return Result{
		Value:    diagnostic(cleaned, ErrNoObject),
		Strategy: StrategyFallback,
		Err:      ErrNoObject,
	}
}

// StripFences replaces every fenced code block in text with its body.
func StripFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	return fencePattern.ReplaceAllString(text, "${1}")
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func diagnostic(text string, err error) map[string]any {
	return map[string]any{
		KeyContent: Truncate(text, SnippetLength),
		KeyError:   err.Error(),
	}
}

// wrap turns a decoded JSON value into a mapping.
func wrap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{KeyContent: v}
}

func decodeStrict(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return wrap(v), true
}

func decodePartial(s string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// scanObjects tries every '{' in s as the start of an object, in order,
// and returns the first balanced span that gjson accepts as an object.
// Brace positions are matched once and reused across starts, so input
// full of unclosed braces is scanned in linear time. Only a '{' that sat
// inside a string literal during an earlier walk needs a walk of its own.
func scanObjects(s string) (map[string]any, bool) {
	b := []byte(s)
	closes := make(map[int]int)
	for start := bytes.IndexByte(b, '{'); start >= 0; {
		end, seen := closes[start]
		if !seen {
			matchBraces(b, start, closes)
			end = closes[start]
		}
		if end > start {
			candidate := b[start : end+1]
			if gjson.ValidBytes(candidate) {
				if m, ok := gjson.ParseBytes(candidate).Value().(map[string]any); ok {
					return m, true
				}
			}
		}
		next := bytes.IndexByte(b[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBraces walks b from the '{' at start until that brace is closed or
// the input ends. Every '{' passed outside a string literal is recorded in
// closes with the index of its matching '}', or -1 when it is never closed.
// A walk begun at any of those braces would see the same string state, so
// the recorded match is the one it would find.
func matchBraces(b []byte, start int, closes map[int]int) {
	var open []int
	inString := false
	escaped := false
	for i := start; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			open = append(open, i)
		case '}':
			top := len(open) - 1
			closes[open[top]] = i
			open = open[:top]
			if len(open) == 0 {
				return
			}
		}
	}
	for _, o := range open {
		closes[o] = -1
	}
}
