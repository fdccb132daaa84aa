package protocol

import "github.com/chordring/overlay/internal/routingstate"

// ChordRequest is the sum type of every inbound Chord control-plane
// request a node can receive.
type ChordRequest struct {
	Kind          ChordRequestKind
	TargetNode    routingstate.Node // FindSuccessorOfNode
	NotifyingNode routingstate.Node // NotificationBy
}

// ChordRequestKind discriminates the ChordRequest variants.
type ChordRequestKind int

const (
	FindSuccessorOfNode ChordRequestKind = iota
	GetSuccessorList
	GetPredecessor
	NotificationBy
	CheckNode
)

// ChordResponse is the sum type of every Chord control-plane response.
type ChordResponse struct {
	Kind          ChordResponseKind
	Successor     routingstate.Node
	SuccessorList [routingstate.SuccessorListLength]routingstate.Node
	Predecessor   *routingstate.Node // nil means NONE
	ErrorMessage  string
}

// ChordResponseKind discriminates the ChordResponse variants.
type ChordResponseKind int

const (
	RespSuccessor ChordResponseKind = iota
	RespSuccessorList
	RespPredecessor
	RespActive
	RespError
)

// SuccessorResponse builds a SUCCESSOR response.
func SuccessorResponse(n routingstate.Node) ChordResponse {
	return ChordResponse{Kind: RespSuccessor, Successor: n}
}

// SuccessorListResponse builds a SUCCESSOR_LIST response.
func SuccessorListResponse(list [routingstate.SuccessorListLength]routingstate.Node) ChordResponse {
	return ChordResponse{Kind: RespSuccessorList, SuccessorList: list}
}

// PredecessorResponse builds a PREDECESSOR response; p may be nil.
func PredecessorResponse(p *routingstate.Node) ChordResponse {
	return ChordResponse{Kind: RespPredecessor, Predecessor: p}
}

// ActiveResponse builds an ACTIVE response.
func ActiveResponse() ChordResponse {
	return ChordResponse{Kind: RespActive}
}

// ErrorResponse builds an ERROR response carrying msg.
func ErrorResponse(msg string) ChordResponse {
	return ChordResponse{Kind: RespError, ErrorMessage: msg}
}

// GossipRequest is the sum type of gossip control-plane requests.
type GossipRequest struct {
	Kind    GossipRequestKind
	Payload string                    // UpdateData
	Shared  *routingstate.GossipState // ShareData, nil means NONE
}

// GossipRequestKind discriminates the GossipRequest variants.
type GossipRequestKind int

const (
	UpdateData GossipRequestKind = iota
	ShareData
)

// GossipResponse is the sum type of gossip control-plane responses.
type GossipResponse struct {
	Kind  GossipResponseKind
	Value routingstate.GossipState
}

// GossipResponseKind discriminates the GossipResponse variants.
type GossipResponseKind int

const (
	RespIgnore GossipResponseKind = iota
	RespWithData
)

// IgnoreResponse builds a RESPONSE=IGNORE gossip response.
func IgnoreResponse() GossipResponse {
	return GossipResponse{Kind: RespIgnore}
}

// WithDataResponse builds a RESPONSE=[payload][timestamp] gossip response.
func WithDataResponse(s routingstate.GossipState) GossipResponse {
	return GossipResponse{Kind: RespWithData, Value: s}
}
