package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// maxLoggedBody caps how much of an undecodable message is logged.
const maxLoggedBody = 500

// requestValidator reports fields by their JSON names.
var requestValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRequest decodes and validates an analysis request. Errors wrap
// domain.ErrMalformedMessage.
func DecodeRequest(body []byte) (domain.AnalysisRequest, error) {
	var req domain.AnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: invalid JSON: %w", domain.ErrMalformedMessage, err)
	}
	if err := requestValidator.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %s", domain.ErrMalformedMessage, describeValidation(err))
	}
	return req, nil
}

// describeValidation lists the missing fields by their JSON names.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Field()
	}
	return "missing required fields: " + strings.Join(fields, ", ")
}

// salvageIDs recovers request and correlation ids from a message that did
// not decode into a valid request. Both camelCase and snake_case keys are
// accepted; missing ids are returned empty.
func salvageIDs(body []byte) (requestID, correlationID string) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", ""
	}
	return firstString(raw, "requestId", "request_id"), firstString(raw, "correlationId", "correlation_id")
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// malformedResponse builds the FAILED response for an undecodable request.
func malformedResponse(body []byte, cause error) *domain.AnalysisResponse {
	requestID, correlationID := salvageIDs(body)
	resp := domain.NewFailedResponse(requestID, correlationID, cause.Error())
	resp.Message = "Processing failed: " + cause.Error()
	return resp
}

func truncate(body []byte) string {
	if len(body) <= maxLoggedBody {
		return string(body)
	}
	return string(body[:maxLoggedBody])
}
