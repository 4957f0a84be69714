package extract

import (
	"strconv"
	"strings"

	"github.com/sells-group/diligence-cli/internal/model"
)

// normalizeValue coerces a raw JSON value into the closed MetricValue variant
// declared by the registry. The declared type always wins; a value that
// cannot be coerced is rejected rather than guessed at.
func normalizeValue(kind model.ValueKind, raw any) (model.MetricValue, bool) {
	switch kind {
	case model.ValueScalar:
		n, ok := toFloat(raw)
		if !ok {
			return model.MetricValue{}, false
		}
		return model.MetricValue{Kind: model.ValueScalar, Numeric: &n}, true

	case model.ValueText:
		s, ok := raw.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return model.MetricValue{}, false
		}
		return model.MetricValue{Kind: model.ValueText, Text: s}, true

	case model.ValueBoolean:
		b, ok := toBool(raw)
		if !ok {
			return model.MetricValue{}, false
		}
		n := 0.0
		text := "No"
		if b {
			n = 1.0
			text = "Yes"
		}
		return model.MetricValue{Kind: model.ValueBoolean, Numeric: &n, Text: text}, true

	case model.ValueRecordList:
		list, ok := raw.([]any)
		if !ok {
			return model.MetricValue{}, false
		}
		records := make([]map[string]any, 0, len(list))
		for _, item := range list {
			rec, ok := item.(map[string]any)
			if !ok {
				return model.MetricValue{}, false
			}
			records = append(records, rec)
		}
		return model.MetricValue{Kind: model.ValueRecordList, Records: records}, true

	case model.ValueTimeSeries:
		obj, ok := raw.(map[string]any)
		if !ok {
			return model.MetricValue{}, false
		}
		series := make(map[string]float64, len(obj))
		for k, v := range obj {
			n, ok := toFloat(v)
			if !ok {
				return model.MetricValue{}, false
			}
			series[k] = n
		}
		return model.MetricValue{Kind: model.ValueTimeSeries, Series: series}, true
	}
	return model.MetricValue{}, false
}

// toFloat accepts JSON numbers and numeric strings, tolerating currency
// symbols, commas, and a trailing percent sign.
func toFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		s := strings.TrimSpace(v)
		s = strings.TrimPrefix(s, "$")
		s = strings.TrimSuffix(s, "%")
		s = strings.ReplaceAll(s, ",", "")
		n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return n, err == nil
	}
	return 0, false
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y":
			return true, true
		case "false", "no", "n":
			return false, true
		}
	}
	return false, false
}
