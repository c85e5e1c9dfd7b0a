// package rewrite provides the request body transformation applied to
// intercepted product authorization requests: the ordered product code
// is swapped for a fixed target product and everything else in the
// body is forwarded untouched
package rewrite

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/kava-labs/body-rewrite-proxy/logging"
)

const (
	ProductIDField   = "PRODUCT_ID"
	ProductNameField = "PRODUCT_NAME"

	DefaultTargetProductID   = "4900725000"
	DefaultTargetProductName = "新会员产品"
)

// Config wraps the values the rewriter substitutes into matching bodies,
// empty values fall back to the package defaults
type Config struct {
	TargetProductID   string
	TargetProductName string
}

// Rewriter rewrites request bodies, it holds no per request
// state and is safe for concurrent use
type Rewriter struct {
	targetProductID   string
	targetProductName string

	*logging.ServiceLogger
}

// New returns a new Rewriter using the provided config and logger
func New(config Config, logger *logging.ServiceLogger) *Rewriter {
	targetProductID := config.TargetProductID
	if targetProductID == "" {
		targetProductID = DefaultTargetProductID
	}

	targetProductName := config.TargetProductName
	if targetProductName == "" {
		targetProductName = DefaultTargetProductName
	}

	return &Rewriter{
		targetProductID:   targetProductID,
		targetProductName: targetProductName,
		ServiceLogger:     logger,
	}
}

// TargetProductID returns the product code bodies are rewritten to
func (r *Rewriter) TargetProductID() string {
	return r.targetProductID
}

// Rewrite decodes rawBody and, if it orders a product other than the
// target product, replaces PRODUCT_ID and PRODUCT_NAME with the target values.
// Bodies that can't be decoded are never an error for the caller,
// they produce a pass through result so the original request is forwarded as is.
func (r *Rewriter) Rewrite(rawBody []byte) Result {
	if !gjson.ValidBytes(rawBody) {
		return r.passThrough(fmt.Errorf("%w: %d byte body failed to parse", ErrMalformedBody, len(rawBody)))
	}

	if !utf8.Valid(rawBody) {
		return r.passThrough(fmt.Errorf("%w: %d byte body is not valid UTF-8", ErrMalformedBody, len(rawBody)))
	}

	root := gjson.ParseBytes(rawBody)

	// a null document has no fields to look up
	if root.Type == gjson.Null {
		return r.passThrough(fmt.Errorf("%w: top level value is null", ErrMalformedBody))
	}

	body, collapsed := collapseDuplicateKeys(root)
	if !collapsed {
		body = pretty.Ugly(rawBody)
	}

	if !root.IsObject() {
		return Rewritten(body)
	}

	productID := gjson.GetBytes(body, ProductIDField)

	if !isTruthy(productID) || isTargetProductID(productID, r.targetProductID) {
		return Rewritten(body)
	}

	previousProductID := productID.Raw
	if productID.Type == gjson.String {
		previousProductID = productID.Str
	}

	body, err := sjson.SetBytes(body, ProductIDField, r.targetProductID)
	if err != nil {
		return r.passThrough(fmt.Errorf("%w: can't set %s: %v", ErrMalformedBody, ProductIDField, err))
	}

	body, err = sjson.SetBytes(body, ProductNameField, r.targetProductName)
	if err != nil {
		return r.passThrough(fmt.Errorf("%w: can't set %s: %v", ErrMalformedBody, ProductNameField, err))
	}

	r.Info().
		Str("old_product_id", previousProductID).
		Str("new_product_id", r.targetProductID).
		Msg(fmt.Sprintf("%s changed from %s to %s", ProductIDField, previousProductID, r.targetProductID))

	result := Rewritten(pretty.Ugly(body))
	result.ProductIDReplaced = true
	result.PreviousProductID = previousProductID
	result.NewProductID = r.targetProductID

	return result
}

func (r *Rewriter) passThrough(err error) Result {
	r.Info().Err(err).Msg("failed to parse request body as JSON, forwarding original request")

	return PassThrough(err)
}

// isTruthy reports whether a looked up field holds a value that
// counts as set: present and not null, false, zero or the empty string
func isTruthy(value gjson.Result) bool {
	switch value.Type {
	case gjson.String:
		return value.Str != ""
	case gjson.Number:
		return value.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

// isTargetProductID uses strict equality, a numeric product code
// never equals the target string
func isTargetProductID(value gjson.Result, target string) bool {
	return value.Type == gjson.String && value.Str == target
}

// collapseDuplicateKeys re-encodes value with every repeated object key
// reduced to one member, which keeps the position of the key's first
// occurrence and the value of its last. The returned bool is false
// when no object at any depth repeats a key.
func collapseDuplicateKeys(value gjson.Result) ([]byte, bool) {
	var (
		buf       bytes.Buffer
		collapsed bool
	)

	switch {
	case value.IsObject():
		var (
			keys    []string
			rawKeys = map[string]string{}
			members = map[string][]byte{}
		)

		value.ForEach(func(key, member gjson.Result) bool {
			encoded, memberCollapsed := collapseDuplicateKeys(member)
			collapsed = collapsed || memberCollapsed

			if _, seen := members[key.Str]; seen {
				collapsed = true
			} else {
				keys = append(keys, key.Str)
				rawKeys[key.Str] = key.Raw
			}
			members[key.Str] = encoded

			return true
		})

		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(rawKeys[key])
			buf.WriteByte(':')
			buf.Write(members[key])
		}
		buf.WriteByte('}')
	case value.IsArray():
		buf.WriteByte('[')
		for i, element := range value.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			encoded, elementCollapsed := collapseDuplicateKeys(element)
			collapsed = collapsed || elementCollapsed
			buf.Write(encoded)
		}
		buf.WriteByte(']')
	default:
		buf.WriteString(value.Raw)
	}

	return buf.Bytes(), collapsed
}
