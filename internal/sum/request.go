package sum

import (
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"strings"
)

var requiredParams = []string{"a", "b", "batch_id"}

// Request は POST /sum の検証済みリクエストです。
type Request struct {
	A       *big.Int
	B       *big.Int
	BatchID string

	// Payload はキューに積む内容です。未知のキーもそのまま保持します。
	Payload map[string]any
}

// ParseRequest は JSON ボディを読み取り、必須パラメータと型を検証します。
func ParseRequest(body io.Reader) (*Request, error) {
	if body == nil {
		return nil, validationError("request body must be a JSON object")
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, validationError(msgRequiredMissing)
		}
		return nil, validationError("request body must be a JSON object")
	}
	return ValidateParams(raw)
}

// ValidateParams はデコード済みのパラメータを検証します。
func ValidateParams(raw map[string]any) (*Request, error) {
	for _, key := range requiredParams {
		if _, ok := raw[key]; !ok {
			return nil, validationError(msgRequiredMissing)
		}
	}

	a, okA := integerValue(raw["a"])
	b, okB := integerValue(raw["b"])
	if !okA || !okB {
		return nil, validationError(msgTypeMismatch)
	}

	batchID, ok := raw["batch_id"].(string)
	if !ok {
		return nil, validationError(msgBatchIDType)
	}
	if strings.TrimSpace(batchID) == "" {
		return nil, validationError(msgRequiredMissing)
	}

	payload := make(map[string]any, len(raw))
	for k, v := range raw {
		payload[k] = v
	}
	payload["a"] = a
	payload["b"] = b

	return &Request{
		A:       a,
		B:       b,
		BatchID: batchID,
		Payload: payload,
	}, nil
}

// integerValue は JSON 数値が整数リテラルの場合に値を返します。桁数の上限はありません。
// 2.0 や 1e3 のような表記は整数とみなしません。
func integerValue(v any) (*big.Int, bool) {
	switch n := v.(type) {
	case json.Number:
		return new(big.Int).SetString(n.String(), 10)
	case *big.Int:
		if n == nil {
			return nil, false
		}
		return new(big.Int).Set(n), true
	case int64:
		return big.NewInt(n), true
	case int:
		return big.NewInt(int64(n)), true
	default:
		return nil, false
	}
}
