// Package rpc serves the chain over JSON-RPC 2.0: transaction submission,
// reads of games, stakes, balances, badges and names, plus a websocket feed
// of committed events.
package rpc

import "encoding/json"

// Request is a JSON-RPC 2.0 call. Params is decoded per method.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response carries either Result or Error, never both.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603

	// CodeUnauthorized: missing or wrong bearer token.
	CodeUnauthorized = -32000
	// CodeNotFound: the game, player, receipt, badge or name does not exist.
	CodeNotFound = -32001
	// CodeTxRejected: the transaction failed its envelope checks (chain id,
	// signature, id or nonce) and was not executed. A transaction that
	// executes and fails still gets a receipt with ok=false instead.
	CodeTxRejected = -32002
)

func errResponse(id any, code int, msg string) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: msg}}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}
