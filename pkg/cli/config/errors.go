package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrInvalidConfig    = goerr.New("invalid configuration")
	ErrMissingFirestore = goerr.New("firestore-project-id is required when using firestore backend")
	ErrMissingGemini    = goerr.New("gemini-project is required for the gemini vectorizer and chat")
)

// Context keys for error values
const (
	BackendKey    = "backend"
	VectorizerKey = "vectorizer"
)
