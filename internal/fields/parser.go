package fields

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avafields/internal/observability"
	"github.com/vyrodovalexey/avafields/internal/schema"
)

const fieldsTracerName = "avafields/fields"

// Parse modes and results used in metrics and spans.
const (
	modeSchemaless = "schemaless"
	modeSchema     = "schema"

	resultSuccess         = "success"
	resultSyntaxError     = "syntax_error"
	resultValidationError = "validation_error"
)

// Parser turns fields expressions into Fields trees. A Parser is immutable
// and safe for concurrent use.
type Parser struct {
	logger       observability.Logger
	presets      Presets
	unexcludable nameSet
	resolver     SchemaResolver
	maxLength    int
}

// ParserOption is a functional option for configuring the parser.
type ParserOption func(*Parser)

// WithLogger sets the logger for the parser.
func WithLogger(logger observability.Logger) ParserOption {
	return func(p *Parser) {
		p.logger = logger
	}
}

// WithPresets replaces the preset table. The wildcard preset is always kept.
func WithPresets(presets Presets) ParserOption {
	return func(p *Parser) {
		p.presets = make(Presets, len(presets)+1)
		for name, preset := range presets {
			p.presets[name] = preset
		}
		p.presets[AllToken] = allPreset
	}
}

// WithSchemaResolver sets the child-schema lookup used by schema-aware parsing.
func WithSchemaResolver(resolver SchemaResolver) ParserOption {
	return func(p *Parser) {
		p.resolver = resolver
	}
}

// WithMaxLength rejects expressions longer than n bytes. Zero disables the limit.
func WithMaxLength(n int) ParserOption {
	return func(p *Parser) {
		p.maxLength = n
	}
}

// NewParser creates a parser with the default presets.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		logger:  observability.NopLogger(),
		presets: DefaultPresets(),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = observability.NopLogger()
	}
	if p.resolver == nil {
		p.resolver = func(*schema.Schema, string) *schema.Schema { return nil }
	}
	p.unexcludable = p.presets.unexcludable()

	return p
}

var defaultParser = NewParser()

// Parse parses input without schema knowledge using a default parser.
func Parse(input string) (*Fields, error) {
	return defaultParser.Parse(context.Background(), input)
}

// Presets returns the parser's preset table.
func (p *Parser) Presets() Presets {
	return p.presets
}

// Parse parses input without schema knowledge: presets are ordinary names and
// no path expansion happens. Transformations are still validated.
func (p *Parser) Parse(ctx context.Context, input string) (*Fields, error) {
	return p.parse(ctx, input, nil, modeSchemaless)
}

// ParseSchema parses input for objects of schema s, expanding presets and
// reference/complex paths. A nil schema behaves like Parse.
func (p *Parser) ParseSchema(ctx context.Context, input string, s *schema.Schema) (*Fields, error) {
	if s == nil {
		return p.Parse(ctx, input)
	}
	return p.parse(ctx, input, s, modeSchema)
}

func (p *Parser) parse(ctx context.Context, input string, s *schema.Schema, mode string) (*Fields, error) {
	_, span := otel.Tracer(fieldsTracerName).Start(ctx, "fields.parse",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("fields.mode", mode),
			attribute.Int("fields.length", len(input)),
		),
	)
	defer span.End()

	start := time.Now()
	f, err := p.build(input, s)
	result := resultFor(err)
	GetMetrics().RecordParse(mode, result, time.Since(start).Seconds())

	span.SetAttributes(attribute.String("fields.result", result))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.WithContext(ctx).Debug("fields expression rejected",
			observability.String("mode", mode),
			observability.String("fields", input),
			observability.Error(err))
		return nil, err
	}

	return f, nil
}

func (p *Parser) build(input string, s *schema.Schema) (*Fields, error) {
	if p.maxLength > 0 && len(input) > p.maxLength {
		return nil, newSyntaxError(input, p.maxLength, "expression exceeds maximum length")
	}

	root, err := parseTokens(input, Tokenize(input), p.unexcludable)
	if err != nil {
		return nil, err
	}

	if s != nil {
		expandPresets(root, s, p.resolver, p.presets)
		expandPaths(root, s, p.resolver)
	}

	return materialize(root)
}

func resultFor(err error) string {
	switch {
	case err == nil:
		return resultSuccess
	case errors.Is(err, ErrSyntax):
		return resultSyntaxError
	default:
		return resultValidationError
	}
}
