package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// ExtractPrice reads a positive price at path in the JSON document read from r.
func ExtractPrice(r io.Reader, path string) (decimal.Decimal, error) {
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid document: %w", err)
	}
	return Price(doc, path)
}

// ExtractFile is like ExtractPrice on the content of a file.
func ExtractFile(name, path string) (decimal.Decimal, error) {
	r, err := os.Open(name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer r.Close()
	return ExtractPrice(r, path)
}

// Price evaluates path on a decoded JSON document and reads the result as a price.
// Providers return numbers or strings, sometimes with a decimal comma.
func Price(doc any, path string) (decimal.Decimal, error) {
	jval, err := jsonpath.Get(path, doc)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("error evaluating %q: %w", path, err)
	}
	// jsonpath returns either a single answer or a list of answers depending
	// on the expression: keep the first one if any
	if jlist, ok := jval.([]any); ok {
		if len(jlist) == 0 {
			return decimal.Decimal{}, fmt.Errorf("no value at %q", path)
		}
		jval = jlist[0]
	}

	var val decimal.Decimal
	switch v := jval.(type) {
	case float64:
		val = decimal.NewFromFloat(v)
	case string:
		s := strings.ReplaceAll(strings.ReplaceAll(v, ",", "."), " ", "")
		if val, err = decimal.NewFromString(s); err != nil {
			return decimal.Decimal{}, fmt.Errorf("value at %q is an invalid string %q", path, v)
		}
	default:
		return decimal.Decimal{}, fmt.Errorf("value at %q is neither a number nor a string: %v", path, jval)
	}
	if !val.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("value at %q is not a positive price: %v", path, val)
	}
	return val, nil
}
