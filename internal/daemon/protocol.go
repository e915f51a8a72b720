// Package daemon implements the orchestrator server (spec section 4.6
// "Daemon server"): a unix-socket process that owns the single
// scheduler loop and answers RPC requests from the `skein` CLI. The
// wire protocol is length-prefixed JSON, matching spec section 4.6
// verbatim so a hand-written client (or a debugging `nc`-style probe)
// can speak it without a generated stub.
package daemon

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cosmix/skein/internal/orchestrator"
)

// maxMessageSize guards against a corrupt or hostile length prefix
// driving an unbounded allocation.
const maxMessageSize = 16 << 20

// RequestKind names one of the supported request verbs (spec 4.6).
type RequestKind string

const (
	ReqStatus          RequestKind = "status"
	ReqSubscribeStatus RequestKind = "subscribe_status"
	ReqSubscribeLog    RequestKind = "subscribe_log"
	ReqStop            RequestKind = "stop"
	ReqStageComplete   RequestKind = "stage_complete"
	ReqStageBlock      RequestKind = "stage_block"
	ReqStageReset      RequestKind = "stage_reset"
	ReqStageRetry      RequestKind = "stage_retry"
	ReqMergeComplete   RequestKind = "merge_complete"
	ReqStageHold       RequestKind = "stage_hold"
	ReqStageRelease    RequestKind = "stage_release"
	ReqDisputeCriteria RequestKind = "dispute_criteria"
	ReqStageVerify     RequestKind = "stage_verify"
	ReqApproveReview   RequestKind = "approve_review"
	ReqRejectReview    RequestKind = "reject_review"
	ReqForceComplete   RequestKind = "force_complete"
	ReqResume          RequestKind = "resume"
)

// Request is one client message. Fields not used by Kind are ignored.
type Request struct {
	Kind         RequestKind `json:"kind"`
	StageID      string      `json:"stage_id,omitempty"`
	Commit       string      `json:"commit,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	AssumeMerged bool        `json:"assume_merged,omitempty"`
}

// ResponseKind distinguishes the payload carried by a Response.
type ResponseKind string

const (
	RespOk           ResponseKind = "ok"
	RespError        ResponseKind = "error"
	RespStatusUpdate ResponseKind = "status_update"
	RespLogLine      ResponseKind = "log_line"
)

// Response is one server message. A subscription request yields many
// Responses on the same connection until the client disconnects or
// sends Stop.
type Response struct {
	Kind    ResponseKind               `json:"kind"`
	Message string                     `json:"message,omitempty"`
	Status  *orchestrator.StatusUpdate `json:"status,omitempty"`
	Log     *orchestrator.LogLine      `json:"log,omitempty"`
}

// WriteMessage frames v as a 4-byte big-endian length prefix followed
// by its JSON encoding.
func WriteMessage(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if len(body) > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", len(body))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write length prefix: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write message body: %w", err)
	}
	return nil
}

// ReadMessage reads one length-prefixed JSON message into v.
func ReadMessage(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxMessageSize {
		return fmt.Errorf("message too large: %d bytes", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return fmt.Errorf("read message body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
