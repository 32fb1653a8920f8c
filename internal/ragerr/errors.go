// Package ragerr provides coded errors for the ask pipeline.
//
// Codes follow an area.operation.reason layout. The reason segment decides
// how an error is reported: invalid input is shown to the caller, anything
// else is logged with its kind and surfaced as a generic failure.
package ragerr

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeQuestionInvalid Code = "ask.question.invalid"

	CodeConfigReadFailure  Code = "config.load.read.failure"
	CodeConfigInvalidValue Code = "config.validate.invalid_value"

	CodeSourceReadFailure   Code = "source.read.failure"
	CodeSourceEmpty         Code = "source.read.empty"
	CodeIndexBuildFailure   Code = "index.build.failure"
	CodeIndexLoadFailure    Code = "index.load.failure"
	CodeEmbeddingFailure    Code = "embedding.upstream.failure"
	CodeVectorSearchFailure Code = "vectorstore.search.failure"

	CodeModelFailure Code = "model.upstream.failure"
)

// Kind groups codes into the classes that callers act on.
type Kind string

const (
	KindInput      Kind = "input_error"
	KindDependency Kind = "dependency_unavailable"
	KindModel      Kind = "model_error"
	KindInternal   Kind = "internal_error"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func FieldModel(value string) Attr {
	return Field("model", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).Wrapf(err, format, args...)
}

// CodeOf returns the innermost code in the chain, or "" for uncoded errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}
	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}
	if oopsErr.Code() == nil {
		return ""
	}
	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value"
}

// KindOf classifies err. Uncoded errors are internal.
func KindOf(err error) Kind {
	code := CodeOf(err)
	switch {
	case code == "":
		return KindInternal
	case IsInvalidInput(err):
		return KindInput
	case strings.HasPrefix(string(code), "model."):
		return KindModel
	case strings.HasPrefix(string(code), "index."),
		strings.HasPrefix(string(code), "source."),
		strings.HasPrefix(string(code), "embedding."),
		strings.HasPrefix(string(code), "vectorstore."):
		return KindDependency
	default:
		return KindInternal
	}
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}
	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
