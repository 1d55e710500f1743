package rpc

import (
	"bytes"
	"encoding/json"
)

// Version JSON-RPC 协议版本
const Version = "2.0"

// 标准错误码
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	// CodeServerError 实现自定义的服务端错误（-32000..-32099 区间）
	CodeServerError = -32000
)

// nullID 缺省 id 时回显 null
var nullID = json.RawMessage("null")

// Request 单条 JSON-RPC 请求。ID 保留原始字节，响应原样回显（类型不变）。
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  map[string]any  `json:"params"` // nil: params 存在但不是对象
}

// Error JSON-RPC 错误对象
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Response 单条 JSON-RPC 响应，result 与 error 二者恰有其一。
type Response struct {
	ID     json.RawMessage
	Result any
	Error  *Error
}

// MarshalJSON 按 error 是否存在输出 result 或 error。result 为 nil 时输出 null。
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = nullID
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{Version, id, r.Error})
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  any             `json:"result"`
	}{Version, id, r.Result})
}

// UnmarshalJSON 解析响应（客户端与测试使用）
func (r *Response) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID     json.RawMessage `json:"id"`
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.Error = raw.Error
	r.Result = nil
	if len(raw.Result) > 0 {
		var v any
		rdec := json.NewDecoder(bytes.NewReader(raw.Result))
		rdec.UseNumber()
		if err := rdec.Decode(&v); err != nil {
			return err
		}
		r.Result = v
	}
	return nil
}

// NewResult 创建成功响应
func NewResult(id json.RawMessage, result any) Response {
	return Response{ID: id, Result: result}
}

// NewError 创建错误响应
func NewError(id json.RawMessage, code int, message string) Response {
	return Response{ID: id, Error: &Error{Code: code, Message: message}}
}
