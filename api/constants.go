package api

const (
	LocalSwitchAgentBase = 40
)

const (
	// DefaultConfigLocalSwitchAgentAddress marks an organization whose agent runs in-process.
	DefaultConfigLocalSwitchAgentAddress = "inproc"
)

const (
	DefaultBarrierPort      = 45207
	DefaultBarrierDelimiter = "-"

	BarrierMessageRequest  = "request"
	BarrierMessageComplete = "complete"
)

const (
	StatusSuccess = 200
	StatusFailure = 500
)
