package mirror

import (
	"github.com/TylerJayP/Orchestrator/internal/logbook"
	"github.com/TylerJayP/Orchestrator/internal/protocol"
	"github.com/TylerJayP/Orchestrator/internal/session"
)

type MessageType string

const (
	MsgSnapshot   MessageType = "snapshot"
	MsgStatus     MessageType = "status"
	MsgChoices    MessageType = "choices"
	MsgGating     MessageType = "gating"
	MsgConnection MessageType = "connection"
	MsgPeer       MessageType = "peer"
	MsgLog        MessageType = "log"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

type SnapshotPayload struct {
	State    session.State    `json:"state"`
	Mode     session.Mode     `json:"mode"`
	Gating   GatingPayload    `json:"gating"`
	Controls session.Controls `json:"controls"`
	Log      []logbook.Entry  `json:"log"`
}

type ChoicesPayload struct {
	Choices   []protocol.Choice `json:"choices"`
	Selection int               `json:"selection"`
}

type GatingPayload struct {
	Context        session.GatingContext `json:"context"`
	Awaiting       session.InputKind     `json:"awaiting"`
	MinigameActive bool                  `json:"minigameActive"`
}

type ConnectionPayload struct {
	Connected bool `json:"connected"`
}
