package rag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/manifoldco/promptui"
)

// Profile holds the assistant's persona. Admins shape how the assistant
// speaks without touching the grounding rules, which always apply.
type Profile struct {
	Name         string `json:"name,omitempty"`
	Persona      string `json:"persona,omitempty"`
	Tone         string `json:"tone,omitempty"`
	Audience     string `json:"audience,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// groundingRules is always appended to the system prompt. The assistant must
// never answer from model memory when the knowledge base is silent.
const groundingRules = `Answer using ONLY the information in the provided context.
If the context does not contain the answer, say you do not know and suggest uploading relevant documents.
Cite the source file names that support your answer.
Never invent facts, names, numbers, or policies.`

// DefaultProfile returns the assistant persona used when no profile file exists.
func DefaultProfile() *Profile {
	return &Profile{
		Name:     "GK Chatty",
		Persona:  "a helpful assistant that answers questions from the team's knowledge base",
		Tone:     "friendly and concise",
		Audience: "team members of all technical levels",
	}
}

// LoadProfile reads a Profile from a JSON file. Returns the default profile
// and no error if the file does not exist.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProfile(), nil
		}
		return nil, fmt.Errorf("reading profile file: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile file: %w", err)
	}

	if p.IsEmpty() {
		return DefaultProfile(), nil
	}
	return &p, nil
}

// Save writes the Profile to a JSON file, creating parent directories as needed.
func (p *Profile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profile file: %w", err)
	}
	return nil
}

// IsEmpty returns true if no fields are populated.
func (p *Profile) IsEmpty() bool {
	return p.Name == "" &&
		p.Persona == "" &&
		p.Tone == "" &&
		p.Audience == "" &&
		p.Instructions == ""
}

// SystemPrompt renders the profile plus the grounding rules as the system
// message for every chat completion.
func (p *Profile) SystemPrompt() string {
	var b strings.Builder

	name := p.Name
	if name == "" {
		name = "the assistant"
	}
	persona := p.Persona
	if persona == "" {
		persona = "a helpful assistant that answers questions from a curated knowledge base"
	}
	fmt.Fprintf(&b, "You are %s, %s.\n", name, persona)

	if p.Tone != "" {
		fmt.Fprintf(&b, "Keep your tone %s.\n", p.Tone)
	}
	if p.Audience != "" {
		fmt.Fprintf(&b, "You are answering %s.\n", p.Audience)
	}
	if p.Instructions != "" {
		fmt.Fprintf(&b, "%s\n", p.Instructions)
	}

	b.WriteString("\n")
	b.WriteString(groundingRules)
	return b.String()
}

// CollectProfileInteractive runs an interactive prompt session to shape the
// assistant profile. All questions are optional; pressing Enter keeps the
// current value.
func CollectProfileInteractive(current *Profile) (*Profile, error) {
	if current == nil {
		current = DefaultProfile()
	}

	fmt.Println("Shape the assistant's persona. Press Enter to keep the current value.")
	fmt.Println()

	p := &Profile{}

	name, err := askWithDefault("Assistant name", current.Name)
	if err != nil {
		return nil, fmt.Errorf("name prompt: %w", err)
	}
	p.Name = name

	persona, err := askWithDefault("Who is the assistant? (one line)", current.Persona)
	if err != nil {
		return nil, fmt.Errorf("persona prompt: %w", err)
	}
	p.Persona = persona

	tone, err := askWithDefault("Tone", current.Tone)
	if err != nil {
		return nil, fmt.Errorf("tone prompt: %w", err)
	}
	p.Tone = tone

	audience, err := askWithDefault("Who asks the questions?", current.Audience)
	if err != nil {
		return nil, fmt.Errorf("audience prompt: %w", err)
	}
	p.Audience = audience

	instructions, err := askWithDefault("Extra instructions", current.Instructions)
	if err != nil {
		return nil, fmt.Errorf("instructions prompt: %w", err)
	}
	p.Instructions = instructions

	return p, nil
}

func askWithDefault(label, def string) (string, error) {
	prompt := promptui.Prompt{
		Label:     label,
		Default:   def,
		AllowEdit: true,
	}
	result, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return result, nil
}
