// Package prompt holds the named system-prompt presets a translation
// request can select from.
package prompt

import (
	"fmt"
	"strings"
	"sync"
)

type Preset struct {
	Name   string `yaml:"name" json:"name"`
	System string `yaml:"system" json:"system"`
}

// Registry maps preset ids to presets. Custom presets registered at
// runtime shadow the built-in defaults.
type Registry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Preset)}
	for id, p := range defaults() {
		r.presets[id] = p
	}
	return r
}

func (r *Registry) Register(id string, p Preset) {
	id = strings.ToLower(strings.TrimSpace(id))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presets[id] = p
}

func (r *Registry) Get(id string) (Preset, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	r.mu.RLock()
	p, ok := r.presets[id]
	r.mu.RUnlock()
	if !ok {
		return Preset{}, fmt.Errorf("prompt preset %q not found", id)
	}
	return p, nil
}

func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.presets))
	for id := range r.presets {
		out = append(out, id)
	}
	return out
}

func defaults() map[string]Preset {
	return map[string]Preset{
		"general": {
			Name:   "General translation",
			System: "Translate this text into clear, correct English, preserving the meaning of the original. Return only the translated text without any additions of your own.",
		},
		"twitter": {
			Name:   "Twitter style",
			System: "Translate this text to English in a casual Twitter style. Keep it concise, use common abbreviations where appropriate, and maintain the original tone. Return only the translated text.",
		},
		"formal": {
			Name:   "Formal style",
			System: "Translate this text into formal, professional English suitable for business correspondence. Maintain proper grammar and formal vocabulary. Return only the translated text.",
		},
		"academic": {
			Name:   "Academic style",
			System: "Translate this text into academic English with precise terminology and formal structure. Ensure clarity and scholarly tone. Return only the translated text.",
		},
		"creative": {
			Name:   "Creative style",
			System: "Translate this text into English with creative flair, maintaining the emotional impact and artistic expression of the original. Return only the translated text.",
		},
	}
}
