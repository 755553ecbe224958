package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultChatboxPersona = "You are Lily, a warm and curious assistant. " +
		"Answer concisely, use what you remember about the user, and never invent facts."
	DefaultMasterPersona = "You are Lily. The person talking to you is your master, the one who built you. " +
		"Be affectionate, candid and a little playful."
	// DefaultStrangerPersona is a template; {name} is replaced with the requester's display name.
	DefaultStrangerPersona = "You are Lily. You are chatting with {name}, who is not your master. " +
		"Be friendly and helpful but keep personal details about your master private."
)

type ChatboxSettings struct {
	Persona           string `yaml:"persona"`
	MaxToolCalls      int    `yaml:"max_tool_calls"`
	ReconcileAttempts int    `yaml:"reconcile_attempts"`
	RunReconcile      *bool  `yaml:"memory_reconcile"`
}

type ChannelSettings struct {
	MasterPersona     string   `yaml:"master_persona"`
	StrangerPersona   string   `yaml:"stranger_persona"`
	MaxToolCalls      int      `yaml:"max_tool_calls"`
	ReconcileAttempts int      `yaml:"reconcile_attempts"`
	RunReconcile      *bool    `yaml:"memory_reconcile"`
	Allowlist         []string `yaml:"allowlist"`
}

type ProfilesConfig struct {
	Chatbox ChatboxSettings `yaml:"chatbox"`
	Channel ChannelSettings `yaml:"channel"`
}

func DefaultProfilesConfig() *ProfilesConfig {
	on, off := true, false
	return &ProfilesConfig{
		Chatbox: ChatboxSettings{
			Persona:           DefaultChatboxPersona,
			MaxToolCalls:      5,
			ReconcileAttempts: 2,
			RunReconcile:      &on,
		},
		Channel: ChannelSettings{
			MasterPersona:     DefaultMasterPersona,
			StrangerPersona:   DefaultStrangerPersona,
			MaxToolCalls:      3,
			ReconcileAttempts: 2,
			RunReconcile:      &off,
			Allowlist:         []string{"fetch_memory", "search_web", "get_current_time"},
		},
	}
}

// LoadProfiles reads path over the defaults. A missing file yields the defaults.
func LoadProfiles(path string) (*ProfilesConfig, error) {
	cfg := DefaultProfilesConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse profiles %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profiles %s: %w", path, err)
	}
	return cfg, nil
}

func (p *ProfilesConfig) Validate() error {
	if p.Chatbox.Persona == "" {
		return errors.New("chatbox.persona is empty")
	}
	if p.Channel.MasterPersona == "" || p.Channel.StrangerPersona == "" {
		return errors.New("channel personas must both be set")
	}
	if err := validateBudget("chatbox", p.Chatbox.MaxToolCalls, p.Chatbox.ReconcileAttempts); err != nil {
		return err
	}
	return validateBudget("channel", p.Channel.MaxToolCalls, p.Channel.ReconcileAttempts)
}

func validateBudget(name string, calls, attempts int) error {
	if calls < 1 || calls > 10 {
		return fmt.Errorf("%s.max_tool_calls must be in [1,10], got %d", name, calls)
	}
	if attempts < 1 || attempts > 5 {
		return fmt.Errorf("%s.reconcile_attempts must be in [1,5], got %d", name, attempts)
	}
	return nil
}
