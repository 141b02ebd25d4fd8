package progress

import (
	"encoding/json"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
)

// Decision is the closed set of plan outcomes a progress source may
// propose. The zero value is not a valid decision; ParseDecision is the only
// way to build one from a string.
type Decision int

const (
	decisionInvalid Decision = iota
	DecisionProceed
	DecisionRetry
	DecisionAmended
	DecisionAbort
)

var decisionNames = map[Decision]string{
	DecisionProceed: "proceed",
	DecisionRetry:   "retry",
	DecisionAmended: "amended",
	DecisionAbort:   "abort",
}

// AllowedDecisions lists the wire values accepted by ParseDecision.
var AllowedDecisions = []string{"proceed", "retry", "amended", "abort"}

func ParseDecision(value string) (Decision, error) {
	if value == "" {
		return decisionInvalid, decisionError("decision is required")
	}
	for decision, name := range decisionNames {
		if name == value {
			return decision, nil
		}
	}
	return decisionInvalid, decisionError(fmt.Sprintf("invalid decision %q", value))
}

func (d Decision) Valid() bool {
	_, ok := decisionNames[d]
	return ok
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return "invalid"
}

func (d Decision) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, decisionError("decision is required")
	}
	return json.Marshal(d.String())
}

func (d *Decision) UnmarshalJSON(data []byte) error {
	var value *string
	if err := json.Unmarshal(data, &value); err != nil {
		return decisionError("decision must be a string")
	}
	if value == nil {
		return decisionError("decision is required")
	}
	parsed, err := ParseDecision(*value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func decisionError(message string) *goerrors.Error {
	return goerrors.NewValidation("progress: invalid plan delta", goerrors.FieldError{
		Field:   "decision",
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.RelayErrorInvalidDecision).
		WithSeverity(goerrors.SeverityError).
		WithMetadata(map[string]any{"allowed": AllowedDecisions})
}
