package script

// The effect queues are the engine's only channel to the outside world.
// Nothing here touches the network or terminal; the host drains each
// queue once per loop iteration and applies entries in FIFO order.

// PendingSend is a line of text destined for a world. An empty World
// means the session's current world.
type PendingSend struct {
	World string
	Text  string
}

// WorldOpKind distinguishes queued world operations.
type WorldOpKind int

const (
	WorldOpAdd WorldOpKind = iota
	WorldOpEdit
	WorldOpConnect
	WorldOpDisconnect
)

// WorldOp asks the host to create, edit, or change the connection state
// of a world definition.
type WorldOp struct {
	Kind     WorldOpKind
	Name     string
	Host     string
	Port     int
	User     string
	Password string
	TLS      bool
}

// KeyEditKind distinguishes queued keyboard-buffer edits.
type KeyEditKind int

const (
	KeyInsert  KeyEditKind = iota // insert Text at the cursor
	KeyDelete                     // delete N runes at the cursor
	KeySetLine                    // replace the whole buffer with Text
	KeyGoto                       // move the cursor to Pos
)

// KeyEdit is a pending edit to the host's input buffer.
type KeyEdit struct {
	Kind KeyEditKind
	Text string
	N    int
	Pos  int
}

// Effects accumulates every outward effect produced during one call into
// the engine. Effects become visible to the host only after the call
// that enqueued them returns.
type Effects struct {
	sends    []PendingSend
	echoes   []string
	subs     []string
	worldOps []WorldOp
	keyEdits []KeyEdit
}

// NewEffects creates an empty effect set.
func NewEffects() *Effects { return &Effects{} }

// QueueSend appends a pending world send.
func (fx *Effects) QueueSend(world, text string) {
	fx.sends = append(fx.sends, PendingSend{World: world, Text: text})
}

// QueueEcho appends a line for the host to display locally.
func (fx *Effects) QueueEcho(text string) {
	fx.echoes = append(fx.echoes, text)
}

// QueueSubstitution appends replacement text for the line currently
// being matched by a trigger.
func (fx *Effects) QueueSubstitution(text string) {
	fx.subs = append(fx.subs, text)
}

// QueueWorldOp appends a world create/edit/connect request.
func (fx *Effects) QueueWorldOp(op WorldOp) {
	fx.worldOps = append(fx.worldOps, op)
}

// QueueKeyEdit appends a keyboard-buffer edit.
func (fx *Effects) QueueKeyEdit(ed KeyEdit) {
	fx.keyEdits = append(fx.keyEdits, ed)
}

// DrainSends returns and clears the pending sends.
func (fx *Effects) DrainSends() []PendingSend {
	out := fx.sends
	fx.sends = nil
	return out
}

// DrainEchoes returns and clears the pending echoes.
func (fx *Effects) DrainEchoes() []string {
	out := fx.echoes
	fx.echoes = nil
	return out
}

// DrainSubstitutions returns and clears the pending line substitutions.
func (fx *Effects) DrainSubstitutions() []string {
	out := fx.subs
	fx.subs = nil
	return out
}

// DrainWorldOps returns and clears the pending world operations.
func (fx *Effects) DrainWorldOps() []WorldOp {
	out := fx.worldOps
	fx.worldOps = nil
	return out
}

// DrainKeyEdits returns and clears the pending keyboard edits.
func (fx *Effects) DrainKeyEdits() []KeyEdit {
	out := fx.keyEdits
	fx.keyEdits = nil
	return out
}

// Empty reports whether every queue is drained.
func (fx *Effects) Empty() bool {
	return len(fx.sends) == 0 && len(fx.echoes) == 0 && len(fx.subs) == 0 &&
		len(fx.worldOps) == 0 && len(fx.keyEdits) == 0
}
