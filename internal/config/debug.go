package config

import "os"

func IsDebug() bool {
	return os.Getenv("LILY_DEBUG") == "1"
}

func IsJSONLogs() bool {
	return os.Getenv("LILY_LOG_FORMAT") == "json"
}
