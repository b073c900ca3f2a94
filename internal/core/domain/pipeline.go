package domain

// PipelineSpec is a fully-built transcoder invocation. Args may embed source
// credentials; the spec must never be logged or serialized whole.
type PipelineSpec struct {
	Args      []string
	OutputDir string
	// ReadyFile is the output artifact whose appearance marks the pipeline
	// as started (playlist for HLS, stream file for MJPEG).
	ReadyFile string
	// SourceURL is kept only so supervision can scrub it from diagnostics.
	SourceURL string
	// Fallback is set when the requested protocol was substituted with
	// another pipeline (currently webrtc -> hls).
	Fallback bool
}
