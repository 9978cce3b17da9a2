package finance

import (
	"context"
	"errors"
	"math"
	"strings"

	"nlcp/aitools"
)

// Handler is one statically registered query operation. It implements
// aitools.Tool so the same value serves in-process and behind a provider.
type Handler struct {
	Name        string
	Description string
	Schema      aitools.Schema
	Run         func(ctx context.Context, args Args) (any, error)
}

var _ aitools.Tool = (*Handler)(nil)

func (h *Handler) ToolName() string                  { return h.Name }
func (h *Handler) ToolDescription() string           { return h.Description }
func (h *Handler) ToolPayloadSchema() aitools.Schema { return h.Schema }

// Call validates the payload and runs the handler. Every failure is returned
// as a structured result; nothing panics across the tool boundary.
func (h *Handler) Call(ctx context.Context, payload string) (res aitools.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = aitools.Fail(aitools.Errorf(aitools.KindInternal, "%s: %v", h.Name, r))
		}
	}()

	raw, err := aitools.ParsePayload(payload)
	if err != nil {
		return aitools.Fail(err)
	}
	args := h.Schema.ApplyDefaults(raw)
	if err := h.Schema.Validate(args); err != nil {
		return aitools.Fail(err)
	}

	out, err := h.Run(ctx, Args(args))
	if err != nil {
		return aitools.Fail(classify(err))
	}
	return aitools.OK(out)
}

// classify maps a handler error onto the tool error taxonomy. Undecodable
// records are internal errors; anything else unclassified came from a store.
func classify(err error) error {
	var te *aitools.ToolError
	if errors.As(err, &te) {
		return te
	}
	if errors.Is(err, ErrInvalidRecord) {
		return aitools.Errorf(aitools.KindInternal, "%v", err)
	}
	return aitools.Errorf(aitools.KindStoreUnavailable, "%v", err)
}

// Args are validated tool arguments.
type Args map[string]any

// Text returns a required string argument.
func (a Args) Text(name string) (string, error) {
	v, ok := a[name].(string)
	if !ok {
		return "", aitools.Errorf(aitools.KindInvalidArgument, "argument %q must be a string", name)
	}
	return v, nil
}

// NonEmpty returns a required string argument that must not be blank.
func (a Args) NonEmpty(name string) (string, error) {
	v, err := a.Text(name)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", aitools.Errorf(aitools.KindInvalidArgument, "argument %q must not be empty", name)
	}
	return v, nil
}

// maxLimit caps top-N requests.
const maxLimit = 10000

// Limit returns a top-N count. Fractional values truncate toward zero.
func (a Args) Limit(name string) (int, error) {
	f, ok := aitools.AsFloat(a[name])
	if !ok {
		return 0, aitools.Errorf(aitools.KindInvalidArgument, "argument %q must be a number", name)
	}
	n := math.Trunc(f)
	if n > maxLimit {
		n = maxLimit
	}
	if n < 0 {
		n = 0
	}
	return int(n), nil
}

// Date returns an optional YYYY-MM-DD argument, nil when absent.
func (a Args) Date(name string) (*Date, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, aitools.Errorf(aitools.KindInvalidArgument, "argument %q must be a YYYY-MM-DD string", name)
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := ParseDate(s)
	if err != nil {
		return nil, aitools.Errorf(aitools.KindInvalidArgument, "argument %q must be a YYYY-MM-DD date, got %q", name, s)
	}
	return &d, nil
}

func stringProp(desc string) aitools.Property {
	return aitools.Property{Type: aitools.TypeString, Description: desc}
}

func object(props aitools.PropertyMap, required ...string) aitools.Schema {
	if props == nil {
		props = aitools.PropertyMap{}
	}
	return aitools.Schema{Type: aitools.TypeObject, Properties: props, Required: required}
}
