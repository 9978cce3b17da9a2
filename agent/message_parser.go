package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrOracleDecode matches every DecodeError.
var ErrOracleDecode = errors.New("oracle output could not be decoded")

// DecodeError reports oracle output that is not a well-formed action.
type DecodeError struct {
	Output string
	Reason string
}

func (e *DecodeError) Error() string {
	return "oracle decode: " + e.Reason
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrOracleDecode
}

// Tags understood in oracle output.
const (
	tagReasoning   = "REASONING"
	tagAction      = "ACTION"
	tagActionInput = "ACTION_INPUT"
	tagAnswer      = "ANSWER"
)

var knownTags = map[string]bool{
	tagReasoning:   true,
	tagAction:      true,
	tagActionInput: true,
	tagAnswer:      true,
}

// DecodeAction turns one oracle response into an Action. The response is a
// sequence of tagged blocks separated only by whitespace:
//
//	<REASONING>...</REASONING>            optional
//	<ACTION>tool</ACTION>
//	<ACTION_INPUT>{...}</ACTION_INPUT>    or
//	<ANSWER>...</ANSWER>
//
// Anything else, including text outside the blocks, a repeated block, or both
// an action and an answer, is a DecodeError.
func DecodeAction(output string) (Action, error) {
	fail := func(format string, args ...any) (Action, error) {
		return Action{}, &DecodeError{Output: output, Reason: fmt.Sprintf(format, args...)}
	}

	blocks, err := splitBlocks(output)
	if err != nil {
		return fail("%v", err)
	}

	reasoning := blocks[tagReasoning]
	name, hasAction := blocks[tagAction]
	input, hasInput := blocks[tagActionInput]
	answer, hasAnswer := blocks[tagAnswer]

	switch {
	case hasAction && hasAnswer:
		return fail("response contains both ACTION and ANSWER")
	case hasAnswer:
		if hasInput {
			return fail("ACTION_INPUT without ACTION")
		}
		if answer == "" {
			return fail("ANSWER is empty")
		}
		return Action{Kind: FinalAnswer, Reasoning: reasoning, Text: answer}, nil
	case hasAction:
		if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			return fail("ACTION must be a single tool name, got %q", name)
		}
		if !hasInput {
			return fail("ACTION %s has no ACTION_INPUT", name)
		}
		args := map[string]any{}
		if input != "" {
			dec := json.NewDecoder(strings.NewReader(input))
			if err := dec.Decode(&args); err != nil {
				return fail("ACTION_INPUT is not a JSON object: %v", err)
			}
			if dec.More() {
				return fail("ACTION_INPUT has trailing data")
			}
			if args == nil {
				return fail("ACTION_INPUT is not a JSON object")
			}
		}
		return Action{Kind: ToolCall, Reasoning: reasoning, Tool: name, Input: args}, nil
	case hasInput:
		return fail("ACTION_INPUT without ACTION")
	default:
		return fail("response has neither ACTION nor ANSWER")
	}
}

// splitBlocks scans "<TAG>body</TAG>" blocks, returning trimmed bodies by tag.
func splitBlocks(output string) (map[string]string, error) {
	blocks := map[string]string{}
	rest := output
	for {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		if rest == "" {
			return blocks, nil
		}
		if rest[0] != '<' {
			return nil, fmt.Errorf("unexpected text outside tags: %q", preview(rest))
		}
		end := strings.IndexByte(rest, '>')
		if end < 0 {
			return nil, fmt.Errorf("unterminated tag: %q", preview(rest))
		}
		tag := rest[1:end]
		if !knownTags[tag] {
			return nil, fmt.Errorf("unknown tag <%s>", tag)
		}
		if _, dup := blocks[tag]; dup {
			return nil, fmt.Errorf("tag <%s> appears more than once", tag)
		}
		rest = rest[end+1:]

		closing := "</" + tag + ">"
		stop := strings.Index(rest, closing)
		if stop < 0 {
			return nil, fmt.Errorf("tag <%s> is not closed", tag)
		}
		blocks[tag] = strings.TrimSpace(rest[:stop])
		rest = rest[stop+len(closing):]
	}
}

func preview(s string) string {
	const n = 40
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
