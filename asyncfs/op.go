package asyncfs

// Op names the stage a Driver is in. The driver's actual state is the
// tagged-sum step below; Op is its projection, kept only so logs and tests
// can name a stage the way spec.md §3's current_op tag did.
type Op int

const (
	OpIdle Op = iota
	OpMount
	OpFormat // reserved: no entry point constructs a step for it (spec.md §4.G)
	OpOpen
	OpOpenWriteClose
	OpWriteStep
	OpCloseStep
)

func (o Op) String() string {
	switch o {
	case OpIdle:
		return "Idle"
	case OpMount:
		return "Mount"
	case OpFormat:
		return "Format"
	case OpOpen:
		return "Open"
	case OpOpenWriteClose:
		return "OpenWriteClose"
	case OpWriteStep:
		return "WriteStep"
	case OpCloseStep:
		return "CloseStep"
	default:
		return "Unknown"
	}
}
