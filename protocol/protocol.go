// Package protocol defines the line-oriented messages exchanged between
// an algorithm client and the sandbox driver over the downward and upward
// pipes, plus the file names used by the handshake.
package protocol

import "path/filepath"

// RequestKind is the second line of an outbound frame.
type RequestKind string

const (
	RequestCall RequestKind = "call"
	RequestWait RequestKind = "wait"
	RequestExit RequestKind = "exit"
)

// FrameMarker opens every call and exit frame.
const FrameMarker = "request"

// InvocationKind tells the driver whether a call produces a return value.
type InvocationKind int

const (
	Procedure InvocationKind = 0
	Function  InvocationKind = 1
)

func (k InvocationKind) String() string {
	switch k {
	case Function:
		return "function"
	case Procedure:
		return "procedure"
	default:
		return "unknown"
	}
}

// ArgType is the type tag written before each argument value.
type ArgType int

const (
	ArgScalar ArgType = 0
	// Reserved wire values; this client never encodes them.
	ArgArray    ArgType = 1
	ArgCallback ArgType = 2
)

// NoCallbacks is the callback count sent with every call.
const NoCallbacks = 0

// Handshake files, relative to the sandbox base directory.
const (
	LanguageNamePipe      = "language_name.pipe"
	SourcePathPipe        = "source_path.pipe"
	InterfacePathPipe     = "interface_path.pipe"
	SandboxProcessDirPipe = "sandbox_process_dir.pipe"
)

// Per-process streams, relative to the sandbox process directory.
const (
	DriverDownwardPipe = "driver_downward.pipe"
	DriverUpwardPipe   = "driver_upward.pipe"
)

// Environment variables read by the harness.
const (
	EnvSandboxDir       = "TURINGARENA_SANDBOX_DIR"
	EnvSubmissionPrefix = "SUBMISSION_FILE_"
)

func HandshakePath(sandboxDir, name string) string {
	return filepath.Join(sandboxDir, name)
}

// ProcessDir resolves the directory announced by the driver. Relative
// names are taken as relative to the sandbox base directory.
func ProcessDir(sandboxDir, announced string) string {
	if filepath.IsAbs(announced) {
		return filepath.Clean(announced)
	}
	return filepath.Join(sandboxDir, announced)
}

func DownwardPath(processDir string) string {
	return filepath.Join(processDir, DriverDownwardPipe)
}

func UpwardPath(processDir string) string {
	return filepath.Join(processDir, DriverUpwardPipe)
}
