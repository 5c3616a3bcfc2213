// Package responseformat writes API responses as JSON or MessagePack.
package responseformat

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"

	"github.com/vmihailenco/msgpack/v5"
)

// Formatter handles encoding and writing responses in JSON or MessagePack format
type Formatter struct{}

// NewFormatter creates a new response formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

// WriteResponse writes data with the given status code. JSON is the default
// format; MessagePack is used when format=msgpack is specified. Missing (NaN)
// values are written as JSON null and kept as floats in MessagePack.
func (f *Formatter) WriteResponse(w http.ResponseWriter, req *http.Request, status int, data any) error {
	// Always set CORS header
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if req.URL.Query().Get("format") == "msgpack" {
		return f.writeMsgPack(w, status, data)
	}
	return f.writeJSON(w, status, data)
}

func (f *Formatter) writeJSON(w http.ResponseWriter, status int, data any) error {
	safe, err := JSONSafe(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(safe)
}

func (f *Formatter) writeMsgPack(w http.ResponseWriter, status int, data any) error {
	b, err := marshalMsgPack(data)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/x-msgpack")
	w.WriteHeader(status)
	_, err = w.Write(b)
	return err
}

func marshalMsgPack(data any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := msgpack.NewEncoder(&buf)
	encoder.SetCustomStructTag("json") // Use json tags for MessagePack
	if err := encoder.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// JSONSafe returns a generic copy of data in which every NaN or infinite
// float is replaced by nil, so encoding/json can write it. The copy goes
// through MessagePack, which carries NaN natively.
func JSONSafe(data any) (any, error) {
	b, err := marshalMsgPack(data)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := msgpack.Unmarshal(b, &generic); err != nil {
		return nil, err
	}
	return scrub(generic), nil
}

func scrub(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return nil
		}
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
	case map[string]any:
		for k := range t {
			t[k] = scrub(t[k])
		}
	}
	return v
}
