package defs

// Common labels for logging
const (
	LabelComponent = "component"
	LabelName      = "name"
	LabelPart      = "part"

	LabelRequest = "request"
	LabelWorker  = "worker"
	LabelCookie  = "cookie"
	LabelSource  = "source"
)
