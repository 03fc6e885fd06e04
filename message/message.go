// Package message defines the request and response records exchanged with a
// unixctl daemon.
//
// Requests and responses travel as bare JSON objects with no delimiter and no
// length prefix; the JSON grammar itself marks where one message ends.
//
//	-> {"method":"version","params":[],"id":1}
//	<- {"result":"ovs-vswitchd (Open vSwitch) 3.2.1","error":null,"id":1}
package message

import (
	"encoding/json"
	"strings"
)

// Request is a single command invocation.
//
// ID is assigned by the client, never by the caller.
type Request struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     uint64   `json:"id"`
}

// NewRequest builds a request, normalizing nil params to an empty array
// so the wire form is always "params":[].
func NewRequest(method string, params []string, id uint64) *Request {
	if params == nil {
		params = []string{}
	}
	return &Request{Method: method, Params: params, ID: id}
}

// JoinedParams renders the params the way error messages report them.
func (r *Request) JoinedParams() string {
	return strings.Join(r.Params, ", ")
}

// Response is the daemon's answer to a Request.
//
//   - Result is the raw JSON result, nil or "null" when absent.
//   - Error is set iff the remote call failed.
//   - ID is nil when the peer omitted it or sent null.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
	ID     *uint64         `json:"id,omitempty"`
}

// HasResult reports whether the response carries a non-null result.
func (r *Response) HasResult() bool {
	return len(r.Result) > 0 && string(r.Result) != "null"
}

// ErrorText returns the error text, or "" when none was sent.
func (r *Response) ErrorText() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// DecodeResult unmarshals the result into v. It reports false, leaving v
// untouched, when the response has no result.
func (r *Response) DecodeResult(v any) (bool, error) {
	if !r.HasResult() {
		return false, nil
	}
	if err := json.Unmarshal(r.Result, v); err != nil {
		return true, err
	}
	return true, nil
}
