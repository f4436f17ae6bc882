package logging

import "go.uber.org/zap"

var (
	SourceAPI     = zap.String("source", "api")
	SourceWatcher = zap.String("source", "watcher")
	SourceStore   = zap.String("source", "store")
	SourceS3      = zap.String("source", "s3")
	SourceCLI     = zap.String("source", "cli")
)
