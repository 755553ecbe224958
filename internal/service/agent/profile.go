package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/lilybot/internal/config"
	"github.com/sandevgo/lilybot/internal/core"
	"github.com/sandevgo/lilybot/internal/service/tools"
)

// PersonaRule returns the seed system messages for a requester.
type PersonaRule func(req core.Requester, now time.Time) []core.Message

// MessageTransform rewrites the raw user message before it enters history.
type MessageTransform func(req core.Requester, message string) string

// Profile is the data that distinguishes one orchestrator deployment from
// another. The pipeline itself never branches on anything else.
type Profile struct {
	Name string
	// Allowlist names every tool the profile may use. Nil means the whole catalog.
	Allowlist []string
	// LoopExcluded tools are hidden from the tool loop but stay available to
	// memory reconcile.
	LoopExcluded       []string
	RunMemoryReconcile bool
	MaxToolCalls       int
	ReconcileAttempts  int
	Persona            PersonaRule
	Transform          MessageTransform
}

func (p Profile) validate() error {
	if p.MaxToolCalls < 1 {
		return fmt.Errorf("profile %s: max tool calls must be at least 1", p.Name)
	}
	if p.RunMemoryReconcile && p.ReconcileAttempts < 1 {
		return fmt.Errorf("profile %s: reconcile attempts must be at least 1", p.Name)
	}
	if p.Persona == nil {
		return fmt.Errorf("profile %s: no persona rule", p.Name)
	}
	return nil
}

func ChatboxProfile(s config.ChatboxSettings) Profile {
	return Profile{
		Name:               "chatbox",
		LoopExcluded:       tools.LoopHiddenTools,
		RunMemoryReconcile: s.RunReconcile == nil || *s.RunReconcile,
		MaxToolCalls:       s.MaxToolCalls,
		ReconcileAttempts:  s.ReconcileAttempts,
		Persona:            FixedPersona(s.Persona),
		Transform:          Identity,
	}
}

func ChannelProfile(s config.ChannelSettings) Profile {
	return Profile{
		Name:               "channel",
		Allowlist:          s.Allowlist,
		LoopExcluded:       tools.LoopHiddenTools,
		RunMemoryReconcile: s.RunReconcile != nil && *s.RunReconcile,
		MaxToolCalls:       s.MaxToolCalls,
		ReconcileAttempts:  s.ReconcileAttempts,
		Persona:            IdentityPersona(s.MasterPersona, s.StrangerPersona),
		Transform:          NamePrefix,
	}
}

func FixedPersona(text string) PersonaRule {
	return func(core.Requester, time.Time) []core.Message {
		return []core.Message{core.SystemMessage(text)}
	}
}

// IdentityPersona picks the master or stranger text and adds a message with
// who is talking and when. {name} in the stranger text is replaced with the
// requester's display name.
func IdentityPersona(master, stranger string) PersonaRule {
	return func(req core.Requester, now time.Time) []core.Message {
		persona := master
		if !req.IsMaster {
			persona = strings.ReplaceAll(stranger, "{name}", displayName(req))
		}
		return []core.Message{
			core.SystemMessage(persona),
			core.SystemMessage(requesterContext(req, now)),
		}
	}
}

func Identity(_ core.Requester, message string) string {
	return message
}

func NamePrefix(req core.Requester, message string) string {
	return displayName(req) + ": " + message
}

func requesterContext(req core.Requester, now time.Time) string {
	master := "no"
	if req.IsMaster {
		master = "yes"
	}
	return fmt.Sprintf(
		"Current time: %s\nSpeaking with: %s\nUser ID: %s\nIs master: %s",
		now.Format("Monday, 2 January 2006 15:04 MST"), displayName(req), req.ID, master,
	)
}

func displayName(req core.Requester) string {
	if req.Name != "" {
		return req.Name
	}
	if req.ID != "" {
		return req.ID
	}
	return "someone"
}
