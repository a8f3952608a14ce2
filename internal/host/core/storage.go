package core

type PromptStore interface {
	SavePrompt(prompt *Prompt) error
	UpdatePrompt(prompt *Prompt) error
	// GetPrompt returns ErrPromptNotFound for unknown ids.
	GetPrompt(id string) (*Prompt, error)
	// History returns finished prompts, oldest completion first. A positive
	// maxItems keeps only the most recent ones.
	History(maxItems int) ([]*Prompt, error)
	ClearHistory() error
}
