package ingestion

import (
	"context"
	"fmt"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/internal/logger"
	"fanout/pkg/cel"
	"fanout/pkg/models"
)

type Validator struct {
	typeField string
	allowed   map[string]struct{}
	rules     []*cel.Rule
	logger    logger.Logger
}

// NewValidator compiles the configured rules. A rule that does not compile
// is a configuration error.
func NewValidator(cfg config.PipelineConfig, log logger.Logger) (*Validator, error) {
	if len(cfg.AllowedTypes) == 0 {
		return nil, fmt.Errorf("%w: no allowed types configured", ErrConfiguration)
	}

	typeField := cfg.TypeField
	if typeField == "" {
		typeField = constants.DefaultTypeField
	}

	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[t] = struct{}{}
	}

	v := &Validator{typeField: typeField, allowed: allowed, logger: log}
	if len(cfg.Rules) == 0 {
		return v, nil
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}
	for _, rc := range cfg.Rules {
		rule, err := evaluator.CompileRule(rc.Name, rc.Expression)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
		v.rules = append(v.rules, rule)
	}
	return v, nil
}

// Validate stops at the first failed check.
func (v *Validator) Validate(ctx context.Context, env models.NotificationEnvelope, payload models.DomainPayload, messageID string) error {
	if payload == nil {
		return validationFailed(constants.StageValidate, "payload is null")
	}

	typeTag, ok := payload.TypeTag(v.typeField)
	if !ok {
		return validationFailed(constants.StageValidate, "type is missing")
	}

	if _, ok := v.allowed[typeTag]; !ok {
		return validationFailed(constants.StageValidate, "unrecognized type")
	}

	for _, rule := range v.rules {
		passed, err := rule.Evaluate(ctx, cel.Input{
			Payload:    payload,
			Attributes: env.Attributes,
			MessageID:  messageID,
			TopicID:    env.TopicID,
		})
		if err != nil {
			v.logger.WarnwCtx(ctx, "Rule evaluation error, rejecting payload",
				"rule_name", rule.Name,
				"error", err,
			)
		}
		if err != nil || !passed {
			return validationFailed(constants.StageValidate, fmt.Sprintf("rule %s rejected payload", rule.Name))
		}
	}

	return nil
}
