package tiles

// TileMessage is the envelope stamped onto every pipeline message.
type TileMessage struct {
	Key TileKey    `json:"key"`
	Gen Generation `json:"gen"`
}

// MessageKind tags a TilePipelineMessage.
type MessageKind int

const (
	MessageLoad MessageKind = iota + 1
	MessageUnload
	MessageUpdate
)

func (k MessageKind) String() string {
	switch k {
	case MessageLoad:
		return "LOAD"
	case MessageUnload:
		return "UNLOAD"
	case MessageUpdate:
		return "UPDATE"
	}
	return "INVALID"
}

// TilePipelineMessage is the tagged union flowing between stages:
// Load carries content, Update carries a metadata snapshot, Unload
// carries only the envelope.
type TilePipelineMessage struct {
	Kind    MessageKind  `json:"kind"`
	Msg     TileMessage  `json:"msg"`
	Content *TileContent `json:"content,omitempty"`
	Info    *TileInfo    `json:"info,omitempty"`
}

func LoadMessage(msg TileMessage, content *TileContent) TilePipelineMessage {
	return TilePipelineMessage{Kind: MessageLoad, Msg: msg, Content: content}
}

func UnloadMessage(msg TileMessage) TilePipelineMessage {
	return TilePipelineMessage{Kind: MessageUnload, Msg: msg}
}

func UpdateMessage(msg TileMessage, info *TileInfo) TilePipelineMessage {
	return TilePipelineMessage{Kind: MessageUpdate, Msg: msg, Info: info}
}
