package config

const SourceFileExt = ".js"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".js", ".mjs", ".fjs"}

// ImageFileExt is the extension build gives compiled images.
const ImageFileExt = ".fsc"

// Config file names, in lookup order within one directory.
var ConfigFileNames = []string{"funscript.yaml", "funscript.yml", "funscript.toml"}

// Built-in global names. The interpreter interns them first, in this order.
const (
	PrintFuncName          = "print"
	EvalFuncName           = "eval"
	QueueMicrotaskFuncName = "queueMicrotask"
	NaNName                = "NaN"
	InfinityName           = "Infinity"
)

// Engine limits.
const (
	DefaultMaxDepth = 4096
	DefaultCacheDB  = "programs.db"
)

// Version is reported by the CLI.
const Version = "0.1.0"
