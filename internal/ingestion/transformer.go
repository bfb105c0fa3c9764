package ingestion

import (
	"encoding/json"
	"fmt"
	"strconv"

	"fanout/internal/config"
	"fanout/internal/constants"
	"fanout/pkg/models"
)

// Transformer derives the persistence record from a validated payload. The
// key is copied from a payload field, so identical payloads always produce
// identical records.
type Transformer struct {
	keyField       string
	keySourceField string
}

func NewTransformer(cfg config.PipelineConfig) *Transformer {
	t := &Transformer{keyField: cfg.KeyField, keySourceField: cfg.KeySourceField}
	if t.keyField == "" {
		t.keyField = constants.DefaultKeyField
	}
	if t.keySourceField == "" {
		t.keySourceField = constants.DefaultKeySourceField
	}
	return t
}

func (t *Transformer) Transform(payload models.DomainPayload) (models.PersistenceRecord, error) {
	key, ok := scalarKey(payload[t.keySourceField])
	if !ok {
		return models.PersistenceRecord{}, validationFailed(constants.StageTransform,
			fmt.Sprintf("key source field %s missing", t.keySourceField))
	}

	item := stripNulls(map[string]interface{}(payload))
	item[t.keyField] = key

	return models.PersistenceRecord{Key: key, KeyField: t.keyField, Item: item}, nil
}

func scalarKey(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), val != ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	default:
		return "", false
	}
}

// stripNulls returns a deep copy of m without nil values.
func stripNulls(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = stripValue(v)
	}
	return out
}

func stripValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return stripNulls(val)
	case []interface{}:
		out := make([]interface{}, 0, len(val))
		for _, e := range val {
			if e == nil {
				continue
			}
			out = append(out, stripValue(e))
		}
		return out
	default:
		return v
	}
}
