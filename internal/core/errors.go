package core

import "errors"

var (
	ErrUnknownTool           = errors.New("unknown tool")
	ErrToolNotPermitted      = errors.Join(ErrUnknownTool, errors.New("tool not permitted for this profile"))
	ErrInvalidArguments      = errors.New("invalid arguments")
	ErrToolExecution         = errors.New("tool execution failed")
	ErrMemoryNotFound        = errors.New("memory not found")
	ErrDuplicateFact         = errors.New("similar fact already exists")
	ErrLLMProtocol           = errors.New("unexpected model output")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrHistory               = errors.New("history unavailable")
)
