// Package protocol implements the line-oriented, ASCII-framed Chord
// and Gossip wire messages: one request or response per TCP
// connection, terminated by `;`, with no length prefix — the sender
// half-closes its write side to delimit the message and the receiver
// reads to EOF.
package protocol

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/chordring/overlay/internal/identifier"
	"github.com/chordring/overlay/internal/routingstate"
)

const protocolErrorMsg = "invalid request/response (protocol error)"

var (
	findSuccessorRe = regexp.MustCompile(`^FIND_SUCCESSOR_OF_NODE=\[([0-9a-f]{32})\]\[(.+)\];$`)
	notificationRe  = regexp.MustCompile(`^NOTIFICATION_BY=\[([0-9a-f]{32})\]\[(.+)\];$`)

	successorRe     = regexp.MustCompile(`^SUCCESSOR=\[([0-9a-f]{32})\]\[(.+)\];$`)
	successorListRe = regexp.MustCompile(`^SUCCESSOR_LIST=\{(.+)\};$`)
	predecessorRe   = regexp.MustCompile(`^PREDECESSOR=\[([0-9a-f]{32})\]\[(.+)\];$`)
	errorRe         = regexp.MustCompile(`^ERROR=\[(.+)\];$`)

	updateDataRe = regexp.MustCompile(`^UPDATE_DATA=\[([^\]]+)\];$`)
	shareDataRe  = regexp.MustCompile(`^SHARE_DATA=\[([^\]]+)\]\[(\d+)\];$`)
	responseRe   = regexp.MustCompile(`^RESPONSE=\[([^\]]+)\]\[(\d+)\];$`)

	nodeEntryRe = regexp.MustCompile(`^\[([0-9a-f]{32})\]\[(.+)\]$`)
)

func parseSockAddr(s string) (*net.TCPAddr, error) {
	addr, err := net.ResolveTCPAddr("tcp", s)
	if err != nil {
		return nil, fmt.Errorf("invalid request/response (invalid socket address)")
	}
	return addr, nil
}

func parseNode(idHex, addrStr string) (routingstate.Node, error) {
	id, err := identifier.FromHex(idHex)
	if err != nil {
		return routingstate.Node{}, fmt.Errorf(protocolErrorMsg)
	}
	addr, err := parseSockAddr(addrStr)
	if err != nil {
		return routingstate.Node{}, err
	}
	return routingstate.Node{ID: id, PublicAddr: addr}, nil
}

func formatNode(n routingstate.Node) string {
	return fmt.Sprintf("[%s][%s]", n.ID, n.PublicAddr.String())
}

// ParseChordRequest parses a single Chord request message.
func ParseChordRequest(raw string) (ChordRequest, error) {
	switch {
	case raw == "GET_SUCCESSOR_LIST;":
		return ChordRequest{Kind: GetSuccessorList}, nil
	case raw == "GET_PREDECESSOR;":
		return ChordRequest{Kind: GetPredecessor}, nil
	case raw == "CHECK_NODE;":
		return ChordRequest{Kind: CheckNode}, nil
	}

	if m := findSuccessorRe.FindStringSubmatch(raw); m != nil {
		n, err := parseNode(m[1], m[2])
		if err != nil {
			return ChordRequest{}, err
		}
		return ChordRequest{Kind: FindSuccessorOfNode, TargetNode: n}, nil
	}

	if m := notificationRe.FindStringSubmatch(raw); m != nil {
		n, err := parseNode(m[1], m[2])
		if err != nil {
			return ChordRequest{}, err
		}
		return ChordRequest{Kind: NotificationBy, NotifyingNode: n}, nil
	}

	return ChordRequest{}, fmt.Errorf(protocolErrorMsg)
}

// String serializes a ChordRequest back into its wire form.
func (r ChordRequest) String() string {
	switch r.Kind {
	case FindSuccessorOfNode:
		return fmt.Sprintf("FIND_SUCCESSOR_OF_NODE=%s;", formatNode(r.TargetNode))
	case GetSuccessorList:
		return "GET_SUCCESSOR_LIST;"
	case GetPredecessor:
		return "GET_PREDECESSOR;"
	case NotificationBy:
		return fmt.Sprintf("NOTIFICATION_BY=%s;", formatNode(r.NotifyingNode))
	case CheckNode:
		return "CHECK_NODE;"
	default:
		return ""
	}
}

// ParseChordResponse parses a single Chord response message.
func ParseChordResponse(raw string) (ChordResponse, error) {
	switch {
	case raw == "ACTIVE;":
		return ActiveResponse(), nil
	case raw == "PREDECESSOR=NONE;":
		return PredecessorResponse(nil), nil
	}

	if m := successorRe.FindStringSubmatch(raw); m != nil {
		n, err := parseNode(m[1], m[2])
		if err != nil {
			return ChordResponse{}, err
		}
		return SuccessorResponse(n), nil
	}

	if m := predecessorRe.FindStringSubmatch(raw); m != nil {
		n, err := parseNode(m[1], m[2])
		if err != nil {
			return ChordResponse{}, err
		}
		return PredecessorResponse(&n), nil
	}

	if m := successorListRe.FindStringSubmatch(raw); m != nil {
		entries := strings.Split(m[1], ",")
		if len(entries) != routingstate.SuccessorListLength {
			return ChordResponse{}, fmt.Errorf(protocolErrorMsg)
		}

		var list [routingstate.SuccessorListLength]routingstate.Node
		for i, entry := range entries {
			em := nodeEntryRe.FindStringSubmatch(entry)
			if em == nil {
				return ChordResponse{}, fmt.Errorf(protocolErrorMsg)
			}
			n, err := parseNode(em[1], em[2])
			if err != nil {
				return ChordResponse{}, err
			}
			list[i] = n
		}
		return SuccessorListResponse(list), nil
	}

	if m := errorRe.FindStringSubmatch(raw); m != nil {
		return ErrorResponse(m[1]), nil
	}

	return ChordResponse{}, fmt.Errorf(protocolErrorMsg)
}

// String serializes a ChordResponse back into its wire form.
func (r ChordResponse) String() string {
	switch r.Kind {
	case RespSuccessor:
		return fmt.Sprintf("SUCCESSOR=%s;", formatNode(r.Successor))
	case RespSuccessorList:
		parts := make([]string, len(r.SuccessorList))
		for i, n := range r.SuccessorList {
			parts[i] = formatNode(n)
		}
		return fmt.Sprintf("SUCCESSOR_LIST={%s};", strings.Join(parts, ","))
	case RespPredecessor:
		if r.Predecessor == nil {
			return "PREDECESSOR=NONE;"
		}
		return fmt.Sprintf("PREDECESSOR=%s;", formatNode(*r.Predecessor))
	case RespActive:
		return "ACTIVE;"
	case RespError:
		return fmt.Sprintf("ERROR=[%s];", r.ErrorMessage)
	default:
		return ""
	}
}

// ParseGossipRequest parses a single Gossip request message.
func ParseGossipRequest(raw string) (GossipRequest, error) {
	if raw == "SHARE_DATA=NONE;" {
		return GossipRequest{Kind: ShareData, Shared: nil}, nil
	}

	if m := updateDataRe.FindStringSubmatch(raw); m != nil {
		return GossipRequest{Kind: UpdateData, Payload: m[1]}, nil
	}

	if m := shareDataRe.FindStringSubmatch(raw); m != nil {
		ts, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return GossipRequest{}, fmt.Errorf(protocolErrorMsg)
		}
		return GossipRequest{
			Kind:   ShareData,
			Shared: &routingstate.GossipState{Data: m[1], TimestampMillis: ts},
		}, nil
	}

	return GossipRequest{}, fmt.Errorf(protocolErrorMsg)
}

// String serializes a GossipRequest back into its wire form.
func (r GossipRequest) String() string {
	switch r.Kind {
	case UpdateData:
		return fmt.Sprintf("UPDATE_DATA=[%s];", r.Payload)
	case ShareData:
		if r.Shared == nil {
			return "SHARE_DATA=NONE;"
		}
		return fmt.Sprintf("SHARE_DATA=[%s][%d];", r.Shared.Data, r.Shared.TimestampMillis)
	default:
		return ""
	}
}

// ParseGossipResponse parses a single Gossip response message.
func ParseGossipResponse(raw string) (GossipResponse, error) {
	if raw == "RESPONSE=IGNORE;" {
		return IgnoreResponse(), nil
	}

	if m := responseRe.FindStringSubmatch(raw); m != nil {
		ts, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			return GossipResponse{}, fmt.Errorf(protocolErrorMsg)
		}
		return WithDataResponse(routingstate.GossipState{Data: m[1], TimestampMillis: ts}), nil
	}

	return GossipResponse{}, fmt.Errorf(protocolErrorMsg)
}

// String serializes a GossipResponse back into its wire form.
func (r GossipResponse) String() string {
	switch r.Kind {
	case RespIgnore:
		return "RESPONSE=IGNORE;"
	case RespWithData:
		return fmt.Sprintf("RESPONSE=[%s][%d];", r.Value.Data, r.Value.TimestampMillis)
	default:
		return ""
	}
}
