package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const planDeltaSchemaURL = "https://relay.schemas.local/progress/plan_delta.schema.json"

const planDeltaSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["decision"],
  "properties": {
    "decision": {"enum": ["proceed", "retry", "amended", "abort"]},
    "amended_plan": {},
    "evidence": {
      "type": ["object", "null"],
      "properties": {
        "retry_count": {"type": ["integer", "null"], "minimum": 0},
        "max_retries": {"type": ["integer", "null"], "minimum": 0}
      }
    }
  }
}`

var (
	planDeltaOnce     sync.Once
	planDeltaCompiled *jsonschema.Schema
	planDeltaErr      error
)

func compiledPlanDeltaSchema() (*jsonschema.Schema, error) {
	planDeltaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(planDeltaSchemaURL, strings.NewReader(planDeltaSchema)); err != nil {
			planDeltaErr = fmt.Errorf("progress: plan delta schema load failed: %w", err)
			return
		}
		planDeltaCompiled, planDeltaErr = c.Compile(planDeltaSchemaURL)
		if planDeltaErr != nil {
			planDeltaErr = fmt.Errorf("progress: plan delta schema compile failed: %w", planDeltaErr)
		}
	})
	return planDeltaCompiled, planDeltaErr
}

// ParsePlanDelta validates a raw JSON plan delta and decodes it.
func ParsePlanDelta(raw []byte) (PlanDelta, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return PlanDelta{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "progress: malformed plan delta").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.RelayErrorBadInput)
	}
	return DecodePlanDelta(value)
}

// DecodePlanDelta validates an already decoded JSON value, such as the
// plan_delta field of a progress payload.
func DecodePlanDelta(value any) (PlanDelta, error) {
	schema, err := compiledPlanDeltaSchema()
	if err != nil {
		return PlanDelta{}, goerrors.Wrap(err, goerrors.CategoryInternal, "progress: plan delta schema unavailable").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.RelayErrorInternal)
	}
	if err := schema.Validate(value); err != nil {
		return PlanDelta{}, schemaValidationError(err)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return PlanDelta{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "progress: malformed plan delta").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.RelayErrorBadInput)
	}
	var delta PlanDelta
	if err := json.Unmarshal(raw, &delta); err != nil {
		var rich *goerrors.Error
		if goerrors.As(err, &rich) {
			return PlanDelta{}, rich
		}
		return PlanDelta{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "progress: malformed plan delta").
			WithCode(http.StatusBadRequest).
			WithTextCode(core.RelayErrorBadInput)
	}
	return delta, nil
}

func schemaValidationError(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return decisionError(err.Error())
	}
	fields := make([]goerrors.FieldError, 0, 1)
	collectFieldErrors(verr, &fields)
	if len(fields) == 0 {
		fields = append(fields, goerrors.FieldError{Field: "plan_delta", Message: verr.Message})
	}
	return goerrors.NewValidation("progress: invalid plan delta", fields...).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RelayErrorInvalidDecision).
		WithSeverity(goerrors.SeverityError).
		WithMetadata(map[string]any{"allowed": AllowedDecisions})
}

func collectFieldErrors(verr *jsonschema.ValidationError, out *[]goerrors.FieldError) {
	if verr == nil {
		return
	}
	if len(verr.Causes) == 0 {
		field := strings.Trim(strings.ReplaceAll(verr.InstanceLocation, "/", "."), ".")
		if field == "" {
			field = "plan_delta"
		}
		*out = append(*out, goerrors.FieldError{Field: field, Message: verr.Message})
		return
	}
	for _, cause := range verr.Causes {
		collectFieldErrors(cause, out)
	}
}
